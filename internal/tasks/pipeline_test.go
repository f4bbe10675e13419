package tasks

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/ytaudio/internal/blobstore"
	"github.com/desertthunder/ytaudio/internal/models"
	"github.com/desertthunder/ytaudio/internal/repositories"
	"github.com/desertthunder/ytaudio/internal/services"
	"github.com/desertthunder/ytaudio/internal/shared"
	tu "github.com/desertthunder/ytaudio/internal/testing"
)

type fixture struct {
	jobs     *repositories.JobRepository
	library  *repositories.LibraryRepository
	store    *tu.GatedStore
	pipeline *Pipeline
	progress chan ProgressUpdate
	tempDir  string
}

func newFixture(t *testing.T, exec services.Executor) *fixture {
	t.Helper()

	db := tu.NewTestDB(t)
	f := &fixture{
		jobs:     repositories.NewJobRepository(db),
		library:  repositories.NewLibraryRepository(db),
		store:    &tu.GatedStore{Store: tu.NewTestStore(t)},
		progress: make(chan ProgressUpdate, 16),
		tempDir:  filepath.Join(t.TempDir(), "tmp"),
	}
	f.pipeline = NewPipeline(f.jobs, f.library, f.store, exec, f.tempDir, shared.NewLogger(io.Discard)).
		WithProgress(f.progress)
	return f
}

func (f *fixture) create(t *testing.T, filename string) Request {
	t.Helper()
	if err := f.jobs.Create(models.NewJob(filename, "https://example.com/watch?v="+filename)); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	return Request{Filename: filename, SourceURL: "https://example.com/watch?v=" + filename}
}

func (f *fixture) phase(t *testing.T, filename string) models.Phase {
	t.Helper()
	job, err := f.jobs.Get(filename)
	if err != nil {
		t.Fatalf("failed to get job: %v", err)
	}
	return job.Phase()
}

func (f *fixture) drain() []models.Phase {
	var phases []models.Phase
	for {
		select {
		case u := <-f.progress:
			phases = append(phases, u.Phase)
		default:
			return phases
		}
	}
}

// stuckTempStore replaces the uploaded temp file with a non-empty directory so it cannot be removed.
type stuckTempStore struct {
	blobstore.Store
	tempPath string
}

func (s *stuckTempStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (*blobstore.Info, error) {
	info, err := s.Store.Put(ctx, key, r, contentType)
	if err != nil {
		return nil, err
	}
	if err := os.Remove(s.tempPath); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.tempPath, 0755); err != nil {
		return nil, err
	}
	return info, os.WriteFile(filepath.Join(s.tempPath, "held"), []byte("x"), 0644)
}

// finalFlipLedger rejects the downloaded to uploaded transition.
type finalFlipLedger struct {
	*repositories.JobRepository
}

func (l finalFlipLedger) Transition(filename string, from, to models.Phase, reason string) error {
	if from == models.PhaseDownloaded && to == models.PhaseUploaded {
		return errors.New("database is locked")
	}
	return l.JobRepository.Transition(filename, from, to, reason)
}

func TestPipeline_Run(t *testing.T) {
	content := []byte("converted audio bytes")
	duration := 61.5

	t.Run("Success", func(t *testing.T) {
		exec := &tu.FakeExecutor{Content: content, Metadata: &models.Metadata{Title: "A Song", Duration: &duration}}
		f := newFixture(t, exec)
		req := f.create(t, "yt-1.mp3")

		if err := f.pipeline.Run(context.Background(), req); err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		job, _ := f.jobs.Get("yt-1.mp3")
		if job.Phase() != models.PhaseUploaded || !job.Ready() {
			t.Errorf("expected uploaded and ready, got %s ready=%v", job.Phase(), job.Ready())
		}
		if job.ErrorMessage() != "" {
			t.Errorf("expected no error, got %q", job.ErrorMessage())
		}

		entry, err := f.library.Get("yt-1.mp3")
		if err != nil {
			t.Fatalf("expected library entry: %v", err)
		}
		if !entry.Ready() || entry.Title() != "A Song" || entry.ContentType() != "audio/mpeg" {
			t.Errorf("unexpected entry ready=%v title=%q type=%q", entry.Ready(), entry.Title(), entry.ContentType())
		}
		if entry.Duration() == nil || *entry.Duration() != duration {
			t.Error("expected duration to be recorded")
		}
		if entry.SizeBytes() != int64(len(content)) {
			t.Errorf("expected size %d, got %d", len(content), entry.SizeBytes())
		}

		obj, err := f.store.Open(context.Background(), "yt-1.mp3")
		if err != nil {
			t.Fatalf("expected stored object: %v", err)
		}
		defer obj.Body.Close()
		stored, _ := io.ReadAll(obj.Body)
		if !bytes.Equal(stored, content) {
			t.Error("stored bytes differ from executor output")
		}

		tu.AssertNoFile(t, f.pipeline.TempPath("yt-1.mp3"))

		phases := f.drain()
		if len(phases) != 2 || phases[0] != models.PhaseDownloaded || phases[1] != models.PhaseUploaded {
			t.Errorf("expected downloaded then uploaded, got %v", phases)
		}
	})

	t.Run("Metadata Unavailable Falls Back To Filename", func(t *testing.T) {
		f := newFixture(t, &tu.FakeExecutor{Content: content})
		req := f.create(t, "yt-2.mp3")

		if err := f.pipeline.Run(context.Background(), req); err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		entry, err := f.library.Get("yt-2.mp3")
		if err != nil {
			t.Fatalf("expected library entry: %v", err)
		}
		if entry.Title() != "yt-2.mp3" {
			t.Errorf("expected filename as title, got %q", entry.Title())
		}
		if entry.Duration() != nil {
			t.Error("expected nil duration")
		}
	})

	t.Run("Executor Failure", func(t *testing.T) {
		exec := &tu.FakeExecutor{Err: errors.Join(shared.ErrExecutorFailure, errors.New("unsupported URL"))}
		f := newFixture(t, exec)
		req := f.create(t, "yt-3.mp3")

		err := f.pipeline.Run(context.Background(), req)
		if !errors.Is(err, shared.ErrExecutorFailure) {
			t.Fatalf("expected ErrExecutorFailure, got %v", err)
		}

		job, _ := f.jobs.Get("yt-3.mp3")
		if job.Phase() != models.PhaseFailed {
			t.Errorf("expected failed, got %s", job.Phase())
		}
		if !strings.Contains(job.ErrorMessage(), "unsupported URL") {
			t.Errorf("expected recorded cause, got %q", job.ErrorMessage())
		}
		if _, err := f.library.Get("yt-3.mp3"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected no library entry, got %v", err)
		}
		if len(f.store.Puts()) != 0 {
			t.Error("store must not be touched after executor failure")
		}
	})

	t.Run("Upload Failure", func(t *testing.T) {
		f := newFixture(t, &tu.FakeExecutor{Content: content})
		f.store.PutErr = errors.New("bucket unavailable")
		req := f.create(t, "yt-4.mp3")

		err := f.pipeline.Run(context.Background(), req)
		if !errors.Is(err, shared.ErrStorageFailure) {
			t.Fatalf("expected ErrStorageFailure, got %v", err)
		}

		job, _ := f.jobs.Get("yt-4.mp3")
		if job.Phase() != models.PhaseFailed || !strings.Contains(job.ErrorMessage(), "bucket unavailable") {
			t.Errorf("unexpected job %s %q", job.Phase(), job.ErrorMessage())
		}
		if _, err := f.library.Get("yt-4.mp3"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected no library entry, got %v", err)
		}

		phases := f.drain()
		if len(phases) != 2 || phases[0] != models.PhaseDownloaded || phases[1] != models.PhaseFailed {
			t.Errorf("expected downloaded then failed, got %v", phases)
		}
		tu.AssertNoFile(t, f.pipeline.TempPath("yt-4.mp3"))
	})

	t.Run("Temp Removal Failure Is Not Escalated", func(t *testing.T) {
		f := newFixture(t, &tu.FakeExecutor{Content: content})
		req := f.create(t, "yt-6.mp3")
		tempPath := f.pipeline.TempPath("yt-6.mp3")
		store := &stuckTempStore{Store: f.store, tempPath: tempPath}
		p := NewPipeline(f.jobs, f.library, store, f.pipeline.executor, f.tempDir, shared.NewLogger(io.Discard))

		if err := p.Run(context.Background(), req); err != nil {
			t.Fatalf("expected success despite leftover temp path, got %v", err)
		}
		if got := f.phase(t, "yt-6.mp3"); got != models.PhaseUploaded {
			t.Errorf("expected uploaded, got %s", got)
		}
		if _, err := f.library.Get("yt-6.mp3"); err != nil {
			t.Errorf("expected library entry: %v", err)
		}
		tu.AssertFileExists(t, filepath.Join(tempPath, "held"))
	})

	t.Run("Final Transition Failure Discards Output", func(t *testing.T) {
		f := newFixture(t, &tu.FakeExecutor{Content: content})
		req := f.create(t, "yt-7.mp3")
		p := NewPipeline(finalFlipLedger{f.jobs}, f.library, f.store, f.pipeline.executor, f.tempDir, shared.NewLogger(io.Discard))

		err := p.Run(context.Background(), req)
		if err == nil || !strings.Contains(err.Error(), "database is locked") {
			t.Fatalf("expected transition error, got %v", err)
		}

		job, _ := f.jobs.Get("yt-7.mp3")
		if job.Phase() != models.PhaseFailed || job.Ready() {
			t.Errorf("expected failed and not ready, got %s ready=%v", job.Phase(), job.Ready())
		}
		if _, err := f.library.Get("yt-7.mp3"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected library entry to be removed, got %v", err)
		}
		if _, err := f.store.Stat(context.Background(), "yt-7.mp3"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected stored object to be removed, got %v", err)
		}
		tu.AssertNoFile(t, p.TempPath("yt-7.mp3"))
	})

	t.Run("Panic Is Recorded", func(t *testing.T) {
		f := newFixture(t, tu.PanicExecutor{})
		req := f.create(t, "yt-5.mp3")

		err := f.pipeline.Run(context.Background(), req)
		if err == nil {
			t.Fatal("expected an error")
		}

		job, _ := f.jobs.Get("yt-5.mp3")
		if job.Phase() != models.PhaseFailed || !strings.Contains(job.ErrorMessage(), "executor exploded") {
			t.Errorf("unexpected job %s %q", job.Phase(), job.ErrorMessage())
		}
	})

	t.Run("Unknown Job", func(t *testing.T) {
		f := newFixture(t, &tu.FakeExecutor{Content: content})

		err := f.pipeline.Run(context.Background(), Request{Filename: "ghost.mp3", SourceURL: "https://example.com"})
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if _, err := f.library.Get("ghost.mp3"); !errors.Is(err, shared.ErrNotFound) {
			t.Error("no library entry may exist for an unknown job")
		}
	})
}

func TestPipeline_PhasesAreObservable(t *testing.T) {
	content := []byte("observable bytes")
	exec := &tu.FakeExecutor{Content: content, Gate: make(chan struct{})}
	f := newFixture(t, exec)
	f.store.Gate = make(chan struct{})
	req := f.create(t, "yt-6.mp3")

	done := make(chan error, 1)
	go func() { done <- f.pipeline.Run(context.Background(), req) }()

	tu.WaitFor(t, 2*time.Second, "executor to start", func() bool { return exec.Calls() == 1 })
	if got := f.phase(t, "yt-6.mp3"); got != models.PhaseStarting {
		t.Fatalf("expected starting while executor runs, got %s", got)
	}

	close(exec.Gate)
	tu.WaitFor(t, 2*time.Second, "downloaded phase", func() bool { return f.phase(t, "yt-6.mp3") == models.PhaseDownloaded })

	if got := tu.MustReadFile(t, f.pipeline.TempPath("yt-6.mp3")); got != string(content) {
		t.Errorf("temp file should hold converted bytes, got %q", got)
	}
	if _, err := f.library.Get("yt-6.mp3"); !errors.Is(err, shared.ErrNotFound) {
		t.Error("library entry must not exist before upload completes")
	}

	close(f.store.Gate)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not finish")
	}

	if got := f.phase(t, "yt-6.mp3"); got != models.PhaseUploaded {
		t.Errorf("expected uploaded, got %s", got)
	}
	if _, err := f.library.Get("yt-6.mp3"); err != nil {
		t.Errorf("uploaded job must have a library entry: %v", err)
	}
}

func TestPipeline_TempPath(t *testing.T) {
	p := NewPipeline(nil, nil, nil, nil, "/data/tmp", nil)
	if got := p.TempPath("yt-1.mp3"); got != filepath.Join("/data/tmp", "yt-1.mp3") {
		t.Errorf("unexpected temp path %s", got)
	}
}

var _ blobstore.Store = (*tu.GatedStore)(nil)
