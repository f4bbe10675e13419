// package tasks implements the conversion pipeline and the worker pool that runs it.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytaudio/internal/blobstore"
	"github.com/desertthunder/ytaudio/internal/models"
	"github.com/desertthunder/ytaudio/internal/services"
	"github.com/desertthunder/ytaudio/internal/shared"
)

// JobLedger is the write side of the job ledger used by the pipeline.
type JobLedger interface {
	Transition(filename string, from, to models.Phase, reason string) error
}

// LibraryIndex records durably stored items.
type LibraryIndex interface {
	Upsert(entry *models.LibraryEntry) error
	Delete(filename string) error
}

// Request identifies one job to convert.
type Request struct {
	Filename  string
	SourceURL string
}

// Pipeline converts one job at a time: executor, then blob store, then library index.
type Pipeline struct {
	jobs     JobLedger
	library  LibraryIndex
	store    blobstore.Store
	executor services.Executor
	tempDir  string
	logger   *log.Logger
	progress chan<- ProgressUpdate
}

// NewPipeline creates a Pipeline writing transient files under tempDir.
func NewPipeline(jobs JobLedger, library LibraryIndex, store blobstore.Store, executor services.Executor, tempDir string, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Pipeline{
		jobs:     jobs,
		library:  library,
		store:    store,
		executor: executor,
		tempDir:  tempDir,
		logger:   logger,
	}
}

// WithProgress publishes every transition on ch.
func (p *Pipeline) WithProgress(ch chan<- ProgressUpdate) *Pipeline {
	p.progress = ch
	return p
}

// TempPath is the well-known transient location for filename.
func (p *Pipeline) TempPath(filename string) string {
	return filepath.Join(p.tempDir, filename)
}

// Run drives req from starting to a terminal phase. The returned error is the job's failure cause
// and has already been recorded in the ledger.
func (p *Pipeline) Run(ctx context.Context, req Request) (err error) {
	logger := shared.WithLogger(p.logger, "filename", req.Filename)
	phase := models.PhaseStarting
	tempPath := p.TempPath(req.Filename)

	defer func() {
		if r := recover(); r != nil {
			p.removeTemp(logger, tempPath)
			err = p.fail(logger, req.Filename, phase, fmt.Errorf("conversion crashed: %v", r))
		}
	}()

	logger.Info("converting", "url", req.SourceURL)

	if err := os.MkdirAll(p.tempDir, 0755); err != nil {
		return p.fail(logger, req.Filename, phase, fmt.Errorf("%w: failed to create temp directory: %v", shared.ErrExecutorFailure, err))
	}

	res, err := p.executor.Execute(ctx, req.SourceURL, tempPath)
	if err != nil {
		p.removeTemp(logger, tempPath)
		return p.fail(logger, req.Filename, phase, err)
	}
	if res.MetadataErr != nil {
		logger.Warn("metadata unavailable, using filename as title", "error", res.MetadataErr)
	}

	if err := p.advance(logger, req.Filename, models.PhaseStarting, models.PhaseDownloaded); err != nil {
		p.removeTemp(logger, tempPath)
		return p.fail(logger, req.Filename, phase, err)
	}
	phase = models.PhaseDownloaded
	sendProgress(p.progress, downloadedUpdate(req.Filename, res.Title(req.Filename)))

	info, err := p.upload(ctx, req.Filename, tempPath)
	if err != nil {
		p.removeTemp(logger, tempPath)
		return p.fail(logger, req.Filename, phase, err)
	}

	entry := models.NewLibraryEntry(req.Filename, req.SourceURL, res.Metadata, info.ContentType, info.Size)
	if err := p.library.Upsert(entry); err != nil {
		p.removeTemp(logger, tempPath)
		return p.fail(logger, req.Filename, phase, fmt.Errorf("%w: failed to index %s: %v", shared.ErrStorageFailure, req.Filename, err))
	}

	if err := p.advance(logger, req.Filename, models.PhaseDownloaded, models.PhaseUploaded); err != nil {
		p.discard(ctx, logger, req.Filename)
		p.removeTemp(logger, tempPath)
		return p.fail(logger, req.Filename, phase, err)
	}
	phase = models.PhaseUploaded
	sendProgress(p.progress, uploadedUpdate(req.Filename, info.Size))

	p.removeTemp(logger, tempPath)
	return nil
}

func (p *Pipeline) upload(ctx context.Context, filename, tempPath string) (*blobstore.Info, error) {
	f, err := os.Open(tempPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open converted file: %v", shared.ErrStorageFailure, err)
	}
	defer f.Close()

	info, err := p.store.Put(ctx, filename, f, shared.ContentTypeFor(filepath.Ext(filename)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStorageFailure, err)
	}
	return info, nil
}

func (p *Pipeline) advance(logger *log.Logger, filename string, from, to models.Phase) error {
	if err := p.jobs.Transition(filename, from, to, ""); err != nil {
		return fmt.Errorf("failed to record %s: %w", to, err)
	}
	logger.Info("phase changed", "phase", to)
	return nil
}

// fail records the failed phase. A ledger error is logged and joined onto cause.
func (p *Pipeline) fail(logger *log.Logger, filename string, from models.Phase, cause error) error {
	logger.Error("conversion failed", "phase", from, "error", cause)

	if from.IsTerminal() {
		return cause
	}
	if err := p.jobs.Transition(filename, from, models.PhaseFailed, cause.Error()); err != nil {
		logger.Error("failed to record failure", "error", err)
		return errors.Join(cause, err)
	}
	sendProgress(p.progress, failedUpdate(filename, cause))
	return cause
}

// discard removes the index row and stored object of a job that could not be marked uploaded.
// A failed job keeps neither. Failures are logged.
func (p *Pipeline) discard(ctx context.Context, logger *log.Logger, filename string) {
	if err := p.library.Delete(filename); err != nil {
		logger.Warn("failed to remove library entry", "error", err)
	}
	if err := p.store.Delete(ctx, filename); err != nil {
		logger.Warn("failed to remove stored object", "error", err)
	}
}

// removeTemp deletes the transient file. Failures are logged and never escalated.
func (p *Pipeline) removeTemp(logger *log.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to remove temp file", "path", path, "error", err)
	}
}
