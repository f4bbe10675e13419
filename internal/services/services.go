// package services defines the conversion executor and the HTTP API client
package services

import (
	"context"

	"github.com/desertthunder/ytaudio/internal/models"
)

// Executor fetches and transcodes a source into a local audio file.
type Executor interface {
	// Execute writes exactly one fully formed file at destPath or returns an error wrapping
	// [shared.ErrExecutorFailure]. Partial files may be left behind on failure.
	Execute(ctx context.Context, sourceURL, destPath string) (*ExecResult, error)
}

// ExecResult describes a successful conversion.
type ExecResult struct {
	LocalPath   string
	Metadata    *models.Metadata // nil when metadata could not be read
	MetadataErr error            // why Metadata is nil, wraps [shared.ErrMetadataUnavailable]
}

// Title returns the extracted title or fallback when there is none.
func (r *ExecResult) Title(fallback string) string {
	if r == nil || r.Metadata == nil || r.Metadata.Title == "" {
		return fallback
	}
	return r.Metadata.Title
}
