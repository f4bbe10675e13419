// package shared defines shared helpers
package shared

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// ParseLogLevel parses a level name, falling back to info for empty or unknown names.
func ParseLogLevel(name string) log.Level {
	if name == "" {
		return log.InfoLevel
	}
	level, err := log.ParseLevel(name)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}

// GenerateFilename returns a fresh job filename such as "yt-1718000000000-1a2b3c4d.mp3".
//
// The millisecond prefix keeps names roughly time ordered; the uuid suffix keeps two requests
// landing in the same millisecond apart.
func GenerateFilename(ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "mp3"
	}
	suffix := strings.ReplaceAll(GenerateID(), "-", "")[:8]
	return fmt.Sprintf("yt-%d-%s.%s", time.Now().UnixMilli(), suffix, ext)
}

// ValidateFilename reports whether name is safe to use as a single path element.
func ValidateFilename(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: filename is empty", ErrInvalidInput)
	case name == "." || name == "..":
		return fmt.Errorf("%w: filename %q is reserved", ErrInvalidInput, name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: filename %q is hidden", ErrInvalidInput, name)
	case strings.ContainsAny(name, `/\`) || filepath.Base(name) != name:
		return fmt.Errorf("%w: filename %q contains a path separator", ErrInvalidInput, name)
	}
	return nil
}

// ContentTypeFor maps an audio format to the MIME type served to clients.
func ContentTypeFor(format string) string {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "mp3", "":
		return "audio/mpeg"
	case "m4a", "aac":
		return "audio/mp4"
	case "opus":
		return "audio/ogg"
	case "vorbis", "ogg":
		return "audio/ogg"
	case "flac":
		return "audio/flac"
	case "wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}
