package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/desertthunder/ytaudio/internal/blobstore"
	"github.com/desertthunder/ytaudio/internal/models"
	"github.com/desertthunder/ytaudio/internal/shared"
)

// Source names where a stream's bytes come from.
type Source string

const (
	SourceTemp      Source = "temp"
	SourcePermanent Source = "permanent"
)

// Stream is an open byte stream for one filename. Callers must close Body.
type Stream struct {
	Source      Source
	Filename    string
	ContentType string
	Size        int64
	ModTime     time.Time
	Body        io.ReadCloser
}

// JobReader is the job ledger lookup used for source selection.
type JobReader interface {
	Get(filename string) (*models.Job, error)
}

// Resolver decides whether a filename is served from the transient file or the blob store.
// It reflects the ledger at the moment of the call and never waits for a phase change.
type Resolver struct {
	jobs    JobReader
	library LibraryReader
	store   blobstore.Store
	tempDir string
}

// NewResolver creates a Resolver reading transient files from tempDir.
func NewResolver(jobs JobReader, library LibraryReader, store blobstore.Store, tempDir string) *Resolver {
	return &Resolver{jobs: jobs, library: library, store: store, tempDir: tempDir}
}

// Resolve opens filename from the source its job phase allows:
//
//   - uploaded, or no job but a ready library entry : blob store
//   - downloaded : transient file, falling back to the blob store if the job flipped to uploaded meanwhile
//   - anything else : an error wrapping [shared.ErrNotFound]
func (r *Resolver) Resolve(ctx context.Context, filename string) (*Stream, error) {
	if err := shared.ValidateFilename(filename); err != nil {
		return nil, err
	}

	job, err := r.jobs.Get(filename)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		entry, err := r.library.Get(filename)
		if err != nil {
			return nil, err
		}
		if !entry.Ready() {
			return nil, notAvailable(filename, "library entry is not ready")
		}
		return r.OpenPermanent(ctx, filename)
	case err != nil:
		return nil, err
	}

	switch job.Phase() {
	case models.PhaseUploaded:
		return r.OpenPermanent(ctx, filename)
	case models.PhaseDownloaded:
		stream, err := r.OpenTemp(ctx, filename)
		if !errors.Is(err, shared.ErrNotFound) {
			return stream, err
		}
		if job, jerr := r.jobs.Get(filename); jerr == nil && job.Phase() == models.PhaseUploaded {
			return r.OpenPermanent(ctx, filename)
		}
		return nil, err
	default:
		return nil, notAvailable(filename, fmt.Sprintf("job is %s", job.Phase()))
	}
}

// OpenTemp opens the transient file only.
func (r *Resolver) OpenTemp(ctx context.Context, filename string) (*Stream, error) {
	if err := shared.ValidateFilename(filename); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(r.tempDir, filename))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notAvailable(filename, "no transient file")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open transient file %s: %w", filename, err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat transient file %s: %w", filename, err)
	}
	if !fi.Mode().IsRegular() {
		f.Close()
		return nil, notAvailable(filename, "not a regular file")
	}

	return &Stream{
		Source:      SourceTemp,
		Filename:    filename,
		ContentType: shared.ContentTypeFor(filepath.Ext(filename)),
		Size:        fi.Size(),
		ModTime:     fi.ModTime(),
		Body:        f,
	}, nil
}

// OpenPermanent opens the blob store object only.
func (r *Resolver) OpenPermanent(ctx context.Context, filename string) (*Stream, error) {
	if err := shared.ValidateFilename(filename); err != nil {
		return nil, err
	}

	obj, err := r.store.Open(ctx, filename)
	if err != nil {
		return nil, err
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = shared.ContentTypeFor(filepath.Ext(filename))
	}

	return &Stream{
		Source:      SourcePermanent,
		Filename:    filename,
		ContentType: contentType,
		Size:        obj.Size,
		ModTime:     obj.CreatedAt,
		Body:        obj.Body,
	}, nil
}

func notAvailable(filename, reason string) error {
	return fmt.Errorf("%s: %s: %w", filename, reason, shared.ErrNotFound)
}
