// package testing contains shared testing utilities
package testing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/ytaudio/internal/blobstore"
	"github.com/desertthunder/ytaudio/internal/models"
	"github.com/desertthunder/ytaudio/internal/services"
	"github.com/desertthunder/ytaudio/internal/shared"
)

// FakeExecutor is a test double for [services.Executor].
//
// When Gate is non-nil Execute blocks until it is closed or receives, which lets tests observe the
// starting phase. Err makes the conversion fail without writing anything.
type FakeExecutor struct {
	Content     []byte
	Metadata    *models.Metadata
	MetadataErr error
	Err         error
	Gate        chan struct{}

	calls atomic.Int32
}

// Execute implements [services.Executor].
func (f *FakeExecutor) Execute(ctx context.Context, sourceURL, destPath string) (*services.ExecResult, error) {
	f.calls.Add(1)

	if f.Gate != nil {
		select {
		case <-f.Gate:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", shared.ErrExecutorFailure, ctx.Err())
		}
	}

	if f.Err != nil {
		return nil, f.Err
	}

	if err := os.WriteFile(destPath, f.Content, 0644); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrExecutorFailure, err)
	}

	res := &services.ExecResult{LocalPath: destPath, Metadata: f.Metadata, MetadataErr: f.MetadataErr}
	if res.Metadata == nil && res.MetadataErr == nil {
		res.MetadataErr = shared.ErrMetadataUnavailable
	}
	return res, nil
}

// Calls reports how many times Execute ran.
func (f *FakeExecutor) Calls() int { return int(f.calls.Load()) }

// PanicExecutor panics from Execute.
type PanicExecutor struct{}

func (PanicExecutor) Execute(ctx context.Context, sourceURL, destPath string) (*services.ExecResult, error) {
	panic("executor exploded")
}

// GatedStore wraps a [blobstore.Store], optionally holding Put on Gate and failing it with PutErr.
type GatedStore struct {
	blobstore.Store
	Gate   chan struct{}
	PutErr error

	mu   sync.Mutex
	puts []string
}

// Put implements [blobstore.Store].
func (g *GatedStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (*blobstore.Info, error) {
	g.mu.Lock()
	g.puts = append(g.puts, key)
	g.mu.Unlock()

	if g.Gate != nil {
		select {
		case <-g.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if g.PutErr != nil {
		return nil, g.PutErr
	}
	return g.Store.Put(ctx, key, r, contentType)
}

// Puts returns the keys passed to Put so far.
func (g *GatedStore) Puts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.puts...)
}

// NewTestDB opens a migrated SQLite database in a temp directory.
//
// A file database is used instead of :memory: so every pooled connection sees the same data.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// NewTestStore returns a filesystem blob store in a temp directory.
func NewTestStore(t *testing.T) *blobstore.FSStore {
	t.Helper()

	store, err := blobstore.NewFSStore(filepath.Join(t.TempDir(), "blobs"))
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}
	return store
}

// WaitFor polls cond until it holds or timeout elapses.
func WaitFor(t *testing.T, timeout time.Duration, desc string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertNoFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("File should not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
