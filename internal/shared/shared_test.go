package shared

import (
	"errors"
	"regexp"
	"testing"
)

func TestGenerateFilename(t *testing.T) {
	pattern := regexp.MustCompile(`^yt-\d+-[0-9a-f]{8}\.mp3$`)

	t.Run("format", func(t *testing.T) {
		name := GenerateFilename("mp3")
		if !pattern.MatchString(name) {
			t.Errorf("GenerateFilename() = %q, does not match %s", name, pattern)
		}
	})

	t.Run("leading dot and empty extension", func(t *testing.T) {
		if got := GenerateFilename(".mp3"); !pattern.MatchString(got) {
			t.Errorf("GenerateFilename(.mp3) = %q", got)
		}
		if got := GenerateFilename(""); !pattern.MatchString(got) {
			t.Errorf("GenerateFilename(\"\") = %q", got)
		}
	})

	t.Run("unique within the same millisecond", func(t *testing.T) {
		seen := make(map[string]bool)
		for range 500 {
			name := GenerateFilename("mp3")
			if seen[name] {
				t.Fatalf("duplicate filename generated: %s", name)
			}
			seen[name] = true
		}
	})
}

func TestValidateFilename(t *testing.T) {
	tc := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "generated name", input: "yt-1718000000000-1a2b3c4d.mp3"},
		{name: "plain name", input: "song.mp3"},
		{name: "empty", input: "", wantErr: true},
		{name: "parent", input: "..", wantErr: true},
		{name: "traversal", input: "../etc/passwd", wantErr: true},
		{name: "nested", input: "a/b.mp3", wantErr: true},
		{name: "backslash", input: `a\b.mp3`, wantErr: true},
		{name: "hidden", input: ".staging-123", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilename(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateFilename(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestContentTypeFor(t *testing.T) {
	tc := []struct {
		format string
		want   string
	}{
		{"mp3", "audio/mpeg"},
		{".MP3", "audio/mpeg"},
		{"", "audio/mpeg"},
		{"m4a", "audio/mp4"},
		{"opus", "audio/ogg"},
		{"flac", "audio/flac"},
		{"xyz", "application/octet-stream"},
	}

	for _, tt := range tc {
		t.Run(tt.format, func(t *testing.T) {
			if got := ContentTypeFor(tt.format); got != tt.want {
				t.Errorf("ContentTypeFor(%q) = %v, want %v", tt.format, got, tt.want)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	if got := ParseLogLevel("debug"); got.String() != "debug" {
		t.Errorf("expected debug, got %v", got)
	}
	if got := ParseLogLevel("nonsense"); got.String() != "info" {
		t.Errorf("expected info fallback, got %v", got)
	}
	if got := ParseLogLevel(""); got.String() != "info" {
		t.Errorf("expected info for empty level, got %v", got)
	}
}
