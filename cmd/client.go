package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/desertthunder/ytaudio/internal/formatter"
	"github.com/desertthunder/ytaudio/internal/models"
	"github.com/desertthunder/ytaudio/internal/shared"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// Convert submits a URL and, with --wait, polls its status until the job is uploaded or failed.
func (r *Runner) Convert(ctx context.Context, cmd *cli.Command) error {
	sourceURL := cmd.StringArg("url")
	if sourceURL == "" {
		return fmt.Errorf("%w: url", shared.ErrMissingArgument)
	}
	if err := r.load(cmd); err != nil {
		return err
	}
	api := r.client(cmd)
	useJSON := cmd.Bool("json")

	created, err := api.CreateJob(ctx, sourceURL)
	if err != nil {
		return err
	}

	if !cmd.Bool("wait") {
		if useJSON {
			return r.writeJSON(created, false)
		}
		r.writePlain("queued %s\n", created.File)
		r.writePlain("  status: %s\n", created.Status)
		r.writePlain("  stream: %s\n", created.Path)
		return nil
	}

	r.logger.Info("waiting for conversion", "filename", created.File)
	view, err := r.waitForJob(ctx, created.File, cmd.Duration("interval"), cmd.Duration("timeout"))
	if err != nil {
		return err
	}

	if useJSON {
		return r.writeJSON(view, false)
	}
	if err := r.writePlain("%s", formatter.RenderJob(*view, time.Now())); err != nil {
		return err
	}
	if view.Phase == models.PhaseUploaded {
		return r.writePlainln("fetch it with: ytaudio fetch %s", created.File)
	}
	return nil
}

// waitForJob polls until filename reaches a terminal phase or ctx (bounded by timeout) ends.
func (r *Runner) waitForJob(ctx context.Context, filename string, interval, timeout time.Duration) (*models.JobView, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := models.Phase("")
	for {
		view, err := r.api.Status(ctx, filename)
		if err != nil {
			return nil, err
		}
		if view.Phase != last {
			r.logger.Info("phase", "filename", filename, "phase", view.Phase)
			last = view.Phase
		}
		if view.Phase.IsTerminal() {
			return view, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("gave up waiting for %s in phase %s: %w", filename, last, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Status prints the current phase of a job.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	filename := cmd.StringArg("filename")
	if filename == "" {
		return fmt.Errorf("%w: filename", shared.ErrMissingArgument)
	}
	if err := r.load(cmd); err != nil {
		return err
	}

	view, err := r.client(cmd).Status(ctx, filename)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(view, false)
	}
	if view.Filename == "" {
		view.Filename = filename
	}
	return r.writePlain("%s", formatter.RenderJob(*view, time.Now()))
}

// Library lists the library as a table or exports it in one of the formatter's formats.
func (r *Runner) Library(ctx context.Context, cmd *cli.Command) error {
	if err := r.load(cmd); err != nil {
		return err
	}

	entries, err := r.client(cmd).Library(ctx)
	if err != nil {
		return err
	}

	format := cmd.String("format")
	output := cmd.String("output")

	if format == "table" || format == "" {
		if output != "" {
			return fmt.Errorf("%w: --output needs a file format, not table", shared.ErrInvalidArgument)
		}
		return r.writePlain("%s", formatter.RenderLibrary(entries, time.Now()))
	}

	if output != "" {
		path, err := formatter.WriteExport(entries, format, output)
		if err != nil {
			return err
		}
		r.logger.Info("library exported", "path", path, "entries", len(entries))
		return nil
	}

	data, err := formatter.Export(entries, format)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// Fetch downloads a job's audio from the unified stream endpoint.
//
// The destination is written through a temp file so a failed download leaves nothing behind.
func (r *Runner) Fetch(ctx context.Context, cmd *cli.Command) error {
	filename := cmd.StringArg("filename")
	if filename == "" {
		return fmt.Errorf("%w: filename", shared.ErrMissingArgument)
	}
	if err := shared.ValidateFilename(filename); err != nil {
		return err
	}
	if err := r.load(cmd); err != nil {
		return err
	}

	dest := cmd.String("output")
	if dest == "" {
		dest = filename
	}
	if dir := filepath.Dir(dest); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".fetch-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	n, err := r.client(cmd).Download(ctx, filename, tmp)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close %s: %w", tmpPath, closeErr)
	}
	if err != nil {
		return err
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to move download into place: %w", err)
	}

	return r.writePlain("saved %s (%s)\n", dest, humanize.Bytes(uint64(n)))
}

// Health reports the server's queue depth and worker count.
func (r *Runner) Health(ctx context.Context, cmd *cli.Command) error {
	if err := r.load(cmd); err != nil {
		return err
	}

	health, err := r.client(cmd).Health(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(health, false)
	}

	r.writePlainHeader("ytaudio " + health.Status)
	r.writePlain("workers: %d\n", health.Workers)
	r.writePlain("running: %d\n", health.Running)
	r.writePlain("queued:  %d\n", health.Queued)
	return nil
}
