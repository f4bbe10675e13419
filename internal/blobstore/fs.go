package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const metaSuffix = ".meta.json"

// FSStore stores objects as files under a root directory.
type FSStore struct {
	root string
}

// NewFSStore creates the root directory if needed and returns a store rooted there.
func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory %s: %w", root, err)
	}
	return &FSStore{root: root}, nil
}

// Put writes r to a temporary file, fsyncs it and renames it over the final path.
// The metadata sidecar is written the same way after the content is in place.
func (s *FSStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (*Info, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp blob: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hasher), &ctxReader{ctx: ctx, r: r})
	if err != nil {
		return nil, fmt.Errorf("failed to write blob %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		return nil, fmt.Errorf("failed to sync blob %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close blob %s: %w", key, err)
	}

	info := &Info{
		Key:         key,
		Size:        size,
		ContentType: contentType,
		SHA256:      hex.EncodeToString(hasher.Sum(nil)),
		CreatedAt:   time.Now().UTC(),
	}

	if err := os.Rename(tmpPath, s.dataPath(key)); err != nil {
		return nil, fmt.Errorf("failed to commit blob %s: %w", key, err)
	}
	committed = true

	if err := s.writeMeta(info); err != nil {
		return nil, err
	}

	return info, nil
}

// Open returns the object content as an [*os.File].
func (s *FSStore) Open(ctx context.Context, key string) (*Object, error) {
	info, err := s.Stat(ctx, key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(s.dataPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound(key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open blob %s: %w", key, err)
	}

	return &Object{Info: *info, Body: f}, nil
}

// Stat reads the metadata sidecar.
func (s *FSStore) Stat(ctx context.Context, key string) (*Info, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.metaPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound(key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob metadata %s: %w", key, err)
	}

	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse blob metadata %s: %w", key, err)
	}
	return &info, nil
}

// Delete removes the sidecar first so the object disappears before its bytes do.
func (s *FSStore) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	for _, p := range []string{s.metaPath(key), s.dataPath(key)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete blob %s: %w", key, err)
		}
	}
	return nil
}

func (s *FSStore) writeMeta(info *Info) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to encode blob metadata: %w", err)
	}

	tmp, err := os.CreateTemp(s.root, ".meta-*")
	if err != nil {
		return fmt.Errorf("failed to create blob metadata: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write blob metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close blob metadata: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.metaPath(info.Key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to commit blob metadata: %w", err)
	}
	return nil
}

func (s *FSStore) dataPath(key string) string { return filepath.Join(s.root, key) }
func (s *FSStore) metaPath(key string) string { return filepath.Join(s.root, key+metaSuffix) }

// ctxReader stops a copy once ctx is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
