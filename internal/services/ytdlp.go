package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytaudio/internal/models"
	"github.com/desertthunder/ytaudio/internal/shared"
	"github.com/lrstanley/go-ytdlp"
)

const stagingPrefix = ".staging-"

// YTDLPExecutor runs yt-dlp to extract audio from a single source.
type YTDLPExecutor struct {
	config shared.ExecutorConfig
	logger *log.Logger
}

// NewYTDLPExecutor creates an executor, defaulting the binary to "yt-dlp" and the format to mp3.
func NewYTDLPExecutor(cfg shared.ExecutorConfig, logger *log.Logger) *YTDLPExecutor {
	if cfg.Binary == "" {
		cfg.Binary = "yt-dlp"
	}
	if cfg.AudioFormat == "" {
		cfg.AudioFormat = "mp3"
	}
	if cfg.AudioQuality == "" {
		cfg.AudioQuality = "5"
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &YTDLPExecutor{config: cfg, logger: logger}
}

// Execute implements [Executor].
func (e *YTDLPExecutor) Execute(ctx context.Context, sourceURL, destPath string) (*ExecResult, error) {
	if sourceURL == "" {
		return nil, fmt.Errorf("%w: source url is empty", shared.ErrExecutorFailure)
	}

	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	result := &ExecResult{LocalPath: destPath}
	meta, err := e.metadata(ctx, sourceURL)
	if err != nil {
		e.logger.Warn("metadata lookup failed, continuing", "url", sourceURL, "error", err)
		result.MetadataErr = err
	} else {
		result.Metadata = meta
	}

	staging := filepath.Join(filepath.Dir(destPath), stagingPrefix+shared.GenerateID())
	if err := os.MkdirAll(staging, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create staging directory: %v", shared.ErrExecutorFailure, err)
	}
	defer os.RemoveAll(staging)

	cmd := e.command().
		Format("bestaudio/best").
		ExtractAudio().
		AudioFormat(e.config.AudioFormat).
		AudioQuality(e.config.AudioQuality).
		Output(filepath.Join(staging, "audio.%(ext)s"))
	if e.config.FFmpegLocation != "" {
		cmd = cmd.FFmpegLocation(e.config.FFmpegLocation)
	}

	if _, err := cmd.Run(ctx, sourceURL); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrExecutorFailure, err)
	}

	produced, err := findOutput(staging, e.config.AudioFormat)
	if err != nil {
		return nil, err
	}

	if err := os.Rename(produced, destPath); err != nil {
		return nil, fmt.Errorf("%w: failed to move output into place: %v", shared.ErrExecutorFailure, err)
	}
	return result, nil
}

func (e *YTDLPExecutor) command() *ytdlp.Command {
	return ytdlp.New().
		SetExecutable(e.config.Binary).
		NoPlaylist()
}

func (e *YTDLPExecutor) metadata(ctx context.Context, sourceURL string) (*models.Metadata, error) {
	res, err := e.command().
		SkipDownload().
		DumpSingleJSON().
		Run(ctx, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMetadataUnavailable, err)
	}
	return parseMetadata([]byte(res.Stdout))
}

// sourceInfo is the subset of yt-dlp's info JSON read for metadata.
type sourceInfo struct {
	Title    string   `json:"title"`
	Duration *float64 `json:"duration"`
}

// parseMetadata decodes yt-dlp info JSON. A missing title is treated as unavailable metadata.
func parseMetadata(data []byte) (*models.Metadata, error) {
	var info sourceInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMetadataUnavailable, err)
	}
	title := strings.TrimSpace(info.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: no title in source info", shared.ErrMetadataUnavailable)
	}
	return &models.Metadata{Title: title, Duration: info.Duration}, nil
}

// findOutput locates the transcoded file inside the staging directory.
func findOutput(staging, format string) (string, error) {
	expected := filepath.Join(staging, "audio."+format)
	if _, err := os.Stat(expected); err == nil {
		return expected, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %v", shared.ErrExecutorFailure, err)
	}

	matches, _ := filepath.Glob(filepath.Join(staging, "audio.*"))
	for _, m := range matches {
		if fi, err := os.Stat(m); err == nil && fi.Mode().IsRegular() {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: yt-dlp produced no output file", shared.ErrExecutorFailure)
}
