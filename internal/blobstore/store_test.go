package blobstore

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/ytaudio/internal/shared"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(filepath.Join(t.TempDir(), "blobs.db"))
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

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("failed to generate bytes: %v", err)
	}
	return b
}

// drivers returns one fresh instance of every driver.
func drivers(t *testing.T) map[string]Store {
	t.Helper()

	fsStore, err := NewFSStore(filepath.Join(t.TempDir(), "blobs"))
	if err != nil {
		t.Fatalf("failed to create fs store: %v", err)
	}

	return map[string]Store{
		"fs":     fsStore,
		"sqlite": NewSQLiteStore(setupTestDB(t), 1000),
	}
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	for name := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("Put and Open", func(t *testing.T) {
				store := drivers(t)[name]
				content := randomBytes(t, 4321)

				info, err := store.Put(ctx, "yt-1.mp3", bytes.NewReader(content), "audio/mpeg")
				if err != nil {
					t.Fatalf("Put failed: %v", err)
				}
				if info.Size != int64(len(content)) {
					t.Errorf("expected size %d, got %d", len(content), info.Size)
				}
				if info.SHA256 == "" {
					t.Error("expected sha256 to be recorded")
				}

				obj, err := store.Open(ctx, "yt-1.mp3")
				if err != nil {
					t.Fatalf("Open failed: %v", err)
				}
				defer obj.Body.Close()

				got, err := io.ReadAll(obj.Body)
				if err != nil {
					t.Fatalf("failed to read object: %v", err)
				}
				if !bytes.Equal(got, content) {
					t.Errorf("content mismatch: got %d bytes, want %d", len(got), len(content))
				}
				if obj.ContentType != "audio/mpeg" {
					t.Errorf("expected audio/mpeg, got %s", obj.ContentType)
				}
			})

			t.Run("Empty object", func(t *testing.T) {
				store := drivers(t)[name]

				if _, err := store.Put(ctx, "empty.mp3", bytes.NewReader(nil), "audio/mpeg"); err != nil {
					t.Fatalf("Put failed: %v", err)
				}

				obj, err := store.Open(ctx, "empty.mp3")
				if err != nil {
					t.Fatalf("Open failed: %v", err)
				}
				defer obj.Body.Close()

				got, _ := io.ReadAll(obj.Body)
				if len(got) != 0 || obj.Size != 0 {
					t.Errorf("expected empty object, got %d bytes", len(got))
				}
			})

			t.Run("Put replaces", func(t *testing.T) {
				store := drivers(t)[name]

				store.Put(ctx, "yt-1.mp3", strings.NewReader("first version that is longer"), "audio/mpeg")
				if _, err := store.Put(ctx, "yt-1.mp3", strings.NewReader("second"), "audio/mpeg"); err != nil {
					t.Fatalf("Put failed: %v", err)
				}

				obj, err := store.Open(ctx, "yt-1.mp3")
				if err != nil {
					t.Fatalf("Open failed: %v", err)
				}
				defer obj.Body.Close()

				got, _ := io.ReadAll(obj.Body)
				if string(got) != "second" {
					t.Errorf("expected replaced content, got %q", got)
				}
			})

			t.Run("Seek", func(t *testing.T) {
				store := drivers(t)[name]
				content := randomBytes(t, 2500)
				store.Put(ctx, "yt-1.mp3", bytes.NewReader(content), "audio/mpeg")

				obj, err := store.Open(ctx, "yt-1.mp3")
				if err != nil {
					t.Fatalf("Open failed: %v", err)
				}
				defer obj.Body.Close()

				seeker, ok := obj.Body.(io.ReadSeeker)
				if !ok {
					t.Fatal("expected object body to be seekable")
				}

				if _, err := seeker.Seek(1990, io.SeekStart); err != nil {
					t.Fatalf("Seek failed: %v", err)
				}
				buf := make([]byte, 20)
				if _, err := io.ReadFull(seeker, buf); err != nil {
					t.Fatalf("read after seek failed: %v", err)
				}
				if !bytes.Equal(buf, content[1990:2010]) {
					t.Error("bytes after seek do not match")
				}

				end, err := seeker.Seek(0, io.SeekEnd)
				if err != nil || end != int64(len(content)) {
					t.Errorf("SeekEnd = %d, %v", end, err)
				}
			})

			t.Run("Open missing", func(t *testing.T) {
				store := drivers(t)[name]

				if _, err := store.Open(ctx, "missing.mp3"); !errors.Is(err, shared.ErrNotFound) {
					t.Errorf("expected ErrNotFound, got %v", err)
				}
				if _, err := store.Stat(ctx, "missing.mp3"); !errors.Is(err, shared.ErrNotFound) {
					t.Errorf("expected ErrNotFound from Stat, got %v", err)
				}
			})

			t.Run("Delete", func(t *testing.T) {
				store := drivers(t)[name]
				store.Put(ctx, "yt-1.mp3", strings.NewReader("bytes"), "audio/mpeg")

				if err := store.Delete(ctx, "yt-1.mp3"); err != nil {
					t.Fatalf("Delete failed: %v", err)
				}
				if _, err := store.Open(ctx, "yt-1.mp3"); !errors.Is(err, shared.ErrNotFound) {
					t.Errorf("expected ErrNotFound after delete, got %v", err)
				}
				if err := store.Delete(ctx, "yt-1.mp3"); err != nil {
					t.Errorf("deleting a missing key should succeed, got %v", err)
				}
			})

			t.Run("Invalid keys", func(t *testing.T) {
				store := drivers(t)[name]

				for _, key := range []string{"", "../escape.mp3", "a/b.mp3", ".hidden"} {
					if _, err := store.Put(ctx, key, strings.NewReader("x"), "audio/mpeg"); !errors.Is(err, shared.ErrInvalidInput) {
						t.Errorf("Put(%q): expected ErrInvalidInput, got %v", key, err)
					}
				}
			})

			t.Run("Failed reader leaves nothing behind", func(t *testing.T) {
				store := drivers(t)[name]

				_, err := store.Put(ctx, "yt-1.mp3", io.MultiReader(strings.NewReader("partial"), &failingReader{}), "audio/mpeg")
				if err == nil {
					t.Fatal("expected Put to fail")
				}
				if _, err := store.Open(ctx, "yt-1.mp3"); !errors.Is(err, shared.ErrNotFound) {
					t.Errorf("partial object must not be visible, got %v", err)
				}
			})
		})
	}
}

func TestFSStoreCleansTempFiles(t *testing.T) {
	root := filepath.Join(t.TempDir(), "blobs")
	store, err := NewFSStore(root)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	store.Put(context.Background(), "yt-1.mp3", io.MultiReader(strings.NewReader("x"), &failingReader{}), "audio/mpeg")
	store.Put(context.Background(), "yt-2.mp3", strings.NewReader("ok"), "audio/mpeg")

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("failed to read blob dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			t.Errorf("temporary file left behind: %s", e.Name())
		}
	}
	if len(entries) != 2 {
		t.Errorf("expected data and metadata files for one blob, got %d entries", len(entries))
	}
}

func TestPutCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store, err := NewFSStore(filepath.Join(t.TempDir(), "blobs"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if _, err := store.Put(ctx, "yt-1.mp3", strings.NewReader("bytes"), "audio/mpeg"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestOpenDriver(t *testing.T) {
	cfg := shared.DefaultConfig().Storage
	cfg.BlobDir = filepath.Join(t.TempDir(), "blobs")

	store, err := Open(cfg, nil)
	if err != nil {
		t.Fatalf("failed to open fs driver: %v", err)
	}
	if _, ok := store.(*FSStore); !ok {
		t.Errorf("expected *FSStore, got %T", store)
	}

	cfg.Driver = shared.StorageDriverSQLite
	if _, err := Open(cfg, nil); !errors.Is(err, shared.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig without database, got %v", err)
	}

	store, err = Open(cfg, setupTestDB(t))
	if err != nil {
		t.Fatalf("failed to open sqlite driver: %v", err)
	}
	if _, ok := store.(*SQLiteStore); !ok {
		t.Errorf("expected *SQLiteStore, got %T", store)
	}

	cfg.Driver = "s3"
	if _, err := Open(cfg, nil); !errors.Is(err, shared.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for unknown driver, got %v", err)
	}
}

type failingReader struct{}

func (f *failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("read failed")
}
