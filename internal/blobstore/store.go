package blobstore

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/desertthunder/ytaudio/internal/shared"
)

// Info describes a stored object.
type Info struct {
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	SHA256      string    `json:"sha256"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Object is an open stored object. Callers must close Body.
type Object struct {
	Info
	Body io.ReadCloser
}

// ReadSeekCloser is implemented by object bodies from every driver in this package.
type ReadSeekCloser interface {
	io.ReadSeeker
	io.Closer
}

// Store is the durable blob storage capability.
type Store interface {
	// Put stores everything read from r under key, replacing any existing object.
	// The object becomes visible only once it is complete.
	Put(ctx context.Context, key string, r io.Reader, contentType string) (*Info, error)

	// Open returns the object stored under key, or an error wrapping [shared.ErrNotFound].
	Open(ctx context.Context, key string) (*Object, error)

	// Stat returns the object's metadata without opening its content.
	Stat(ctx context.Context, key string) (*Info, error)

	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Open constructs the driver selected by the storage configuration.
func Open(cfg shared.StorageConfig, db *sql.DB) (Store, error) {
	switch cfg.Driver {
	case shared.StorageDriverFS:
		return NewFSStore(cfg.BlobDir)
	case shared.StorageDriverSQLite:
		if db == nil {
			return nil, fmt.Errorf("%w: sqlite storage driver requires a database", shared.ErrInvalidConfig)
		}
		return NewSQLiteStore(db, cfg.ChunkSize), nil
	default:
		return nil, fmt.Errorf("%w: unknown storage driver %q", shared.ErrInvalidConfig, cfg.Driver)
	}
}

func validateKey(key string) error {
	if err := shared.ValidateFilename(key); err != nil {
		return fmt.Errorf("invalid blob key: %w", err)
	}
	return nil
}

func notFound(key string) error {
	return fmt.Errorf("blob %s: %w", key, shared.ErrNotFound)
}
