package blobstore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"
)

// DefaultChunkSize matches the GridFS default of 255 KiB.
const DefaultChunkSize = 255 * 1024

// SQLiteStore stores objects as ordered chunks in the blobs and blob_chunks tables.
type SQLiteStore struct {
	db        *sql.DB
	chunkSize int
}

// NewSQLiteStore returns a store writing chunks of chunkSize bytes (or [DefaultChunkSize] when not positive).
// The tables come from the shared migrations.
func NewSQLiteStore(db *sql.DB, chunkSize int) *SQLiteStore {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &SQLiteStore{db: db, chunkSize: chunkSize}
}

// Put replaces any existing object under key inside a single transaction.
func (s *SQLiteStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (*Info, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin blob transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM blob_chunks WHERE blob_key = ?`, key); err != nil {
		return nil, fmt.Errorf("failed to clear chunks for %s: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM blobs WHERE blob_key = ?`, key); err != nil {
		return nil, fmt.Errorf("failed to clear blob %s: %w", key, err)
	}

	hasher := sha256.New()
	buf := make([]byte, s.chunkSize)
	var size int64

	for n := 0; ; n++ {
		read, readErr := io.ReadFull(r, buf)
		if read > 0 {
			chunk := buf[:read]
			hasher.Write(chunk)
			size += int64(read)
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO blob_chunks (blob_key, n, data) VALUES (?, ?, ?)`,
				key, n, chunk,
			); err != nil {
				return nil, fmt.Errorf("failed to write chunk %d of %s: %w", n, key, err)
			}
		}
		if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("failed to read blob %s: %w", key, readErr)
		}
	}

	info := &Info{
		Key:         key,
		Size:        size,
		ContentType: contentType,
		SHA256:      hex.EncodeToString(hasher.Sum(nil)),
		CreatedAt:   time.Now().UTC(),
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO blobs (blob_key, content_type, size_bytes, chunk_size, sha256, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		info.Key, info.ContentType, info.Size, s.chunkSize, info.SHA256, info.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to write blob %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit blob %s: %w", key, err)
	}

	return info, nil
}

// Open returns a seekable reader that loads chunks lazily.
func (s *SQLiteStore) Open(ctx context.Context, key string) (*Object, error) {
	info, chunkSize, err := s.stat(ctx, key)
	if err != nil {
		return nil, err
	}

	return &Object{
		Info: *info,
		Body: &chunkReader{ctx: ctx, db: s.db, key: key, size: info.Size, chunkSize: int64(chunkSize), chunk: -1},
	}, nil
}

// Stat reads the object row.
func (s *SQLiteStore) Stat(ctx context.Context, key string) (*Info, error) {
	info, _, err := s.stat(ctx, key)
	return info, err
}

// Delete removes the object row and its chunks.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin blob transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM blobs WHERE blob_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM blob_chunks WHERE blob_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete chunks for %s: %w", key, err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) stat(ctx context.Context, key string) (*Info, int, error) {
	if err := validateKey(key); err != nil {
		return nil, 0, err
	}

	var (
		info      Info
		chunkSize int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT blob_key, content_type, size_bytes, chunk_size, sha256, created_at FROM blobs WHERE blob_key = ?`,
		key,
	).Scan(&info.Key, &info.ContentType, &info.Size, &chunkSize, &info.SHA256, &info.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, notFound(key)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to stat blob %s: %w", key, err)
	}
	return &info, chunkSize, nil
}

// chunkReader reads an object chunk by chunk and supports seeking.
type chunkReader struct {
	ctx       context.Context
	db        *sql.DB
	key       string
	size      int64
	chunkSize int64

	offset int64
	chunk  int64
	data   []byte
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if c.offset >= c.size {
		return 0, io.EOF
	}

	n := c.offset / c.chunkSize
	if n != c.chunk {
		if err := c.load(n); err != nil {
			return 0, err
		}
	}

	start := c.offset - n*c.chunkSize
	if start >= int64(len(c.data)) {
		return 0, io.ErrUnexpectedEOF
	}
	copied := copy(p, c.data[start:])
	c.offset += int64(copied)
	return copied, nil
}

func (c *chunkReader) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = c.offset + offset
	case io.SeekEnd:
		abs = c.size + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("negative position %d", abs)
	}
	c.offset = abs
	return abs, nil
}

func (c *chunkReader) Close() error {
	c.data = nil
	return nil
}

func (c *chunkReader) load(n int64) error {
	var data []byte
	err := c.db.QueryRowContext(c.ctx,
		`SELECT data FROM blob_chunks WHERE blob_key = ? AND n = ?`, c.key, n,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("blob %s is missing chunk %d: %w", c.key, n, io.ErrUnexpectedEOF)
	}
	if err != nil {
		return fmt.Errorf("failed to read chunk %d of %s: %w", n, c.key, err)
	}
	c.chunk = n
	c.data = data
	return nil
}
