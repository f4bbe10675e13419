package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestCanTransition(t *testing.T) {
	tc := []struct {
		from Phase
		to   Phase
		want bool
	}{
		{PhaseStarting, PhaseDownloaded, true},
		{PhaseStarting, PhaseFailed, true},
		{PhaseDownloaded, PhaseUploaded, true},
		{PhaseDownloaded, PhaseFailed, true},
		{PhaseStarting, PhaseUploaded, false},
		{PhaseDownloaded, PhaseStarting, false},
		{PhaseUploaded, PhaseDownloaded, false},
		{PhaseUploaded, PhaseFailed, false},
		{PhaseFailed, PhaseStarting, false},
		{PhaseFailed, PhaseDownloaded, false},
		{PhasePending, PhaseStarting, false},
	}

	for _, tt := range tc {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestPhase(t *testing.T) {
	t.Run("IsTerminal", func(t *testing.T) {
		if !PhaseUploaded.IsTerminal() || !PhaseFailed.IsTerminal() {
			t.Error("uploaded and failed must be terminal")
		}
		if PhaseStarting.IsTerminal() || PhaseDownloaded.IsTerminal() {
			t.Error("starting and downloaded must not be terminal")
		}
	})

	t.Run("ParsePhase", func(t *testing.T) {
		if p, err := ParsePhase("downloaded"); err != nil || p != PhaseDownloaded {
			t.Errorf("ParsePhase(downloaded) = %v, %v", p, err)
		}
		if _, err := ParsePhase("pending"); err == nil {
			t.Error("pending is not a stored phase")
		}
		if _, err := ParsePhase("bogus"); err == nil {
			t.Error("expected error for unknown phase")
		}
	})
}

func TestJob(t *testing.T) {
	t.Run("NewJob starts in starting", func(t *testing.T) {
		job := NewJob("yt-1.mp3", "https://example.com/watch?v=a")

		if job.Phase() != PhaseStarting {
			t.Errorf("expected starting, got %s", job.Phase())
		}
		if job.ID() != "yt-1.mp3" {
			t.Errorf("expected ID to be the filename, got %s", job.ID())
		}
		if job.CreatedAt().IsZero() || !job.CreatedAt().Equal(job.UpdatedAt()) {
			t.Error("expected created and updated timestamps to be set and equal")
		}
		if err := job.Validate(); err != nil {
			t.Errorf("new job should validate: %v", err)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tc := []struct {
			name string
			job  *Job
		}{
			{"missing filename", NewJob("", "https://example.com")},
			{"missing url", NewJob("a.mp3", "")},
			{"failed without error", RestoreJob("a.mp3", "u", PhaseFailed, "", false, NewJob("a", "u").CreatedAt(), NewJob("a", "u").CreatedAt())},
			{"error on non failed", RestoreJob("a.mp3", "u", PhaseDownloaded, "boom", false, NewJob("a", "u").CreatedAt(), NewJob("a", "u").CreatedAt())},
			{"pending is not storable", RestoreJob("a.mp3", "u", PhasePending, "", false, NewJob("a", "u").CreatedAt(), NewJob("a", "u").CreatedAt())},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				if err := tt.job.Validate(); err == nil {
					t.Error("expected validation error")
				}
			})
		}
	})

	t.Run("JSON projection", func(t *testing.T) {
		job := NewJob("yt-1.mp3", "https://example.com/a")

		data, err := json.Marshal(job)
		if err != nil {
			t.Fatalf("failed to marshal job: %v", err)
		}

		body := string(data)
		for _, want := range []string{`"filename":"yt-1.mp3"`, `"sourceUrl":"https://example.com/a"`, `"phase":"starting"`, `"createdAt"`} {
			if !strings.Contains(body, want) {
				t.Errorf("expected %s in %s", want, body)
			}
		}
		if strings.Contains(body, `"error"`) {
			t.Errorf("error should be omitted for non-failed jobs: %s", body)
		}
	})

	t.Run("PendingJobView", func(t *testing.T) {
		data, err := json.Marshal(PendingJobView())
		if err != nil {
			t.Fatalf("failed to marshal pending view: %v", err)
		}
		if string(data) != `{"phase":"pending"}` {
			t.Errorf("unexpected pending view: %s", data)
		}
	})
}

func TestLibraryEntry(t *testing.T) {
	t.Run("title falls back to filename", func(t *testing.T) {
		entry := NewLibraryEntry("yt-1.mp3", "https://example.com/a", nil, "audio/mpeg", 10)
		if entry.Title() != "yt-1.mp3" {
			t.Errorf("expected filename title, got %s", entry.Title())
		}
		if entry.Duration() != nil {
			t.Error("expected nil duration")
		}

		untitled := NewLibraryEntry("yt-2.mp3", "https://example.com/b", &Metadata{}, "audio/mpeg", 10)
		if untitled.Title() != "yt-2.mp3" {
			t.Errorf("expected filename title for empty metadata, got %s", untitled.Title())
		}
	})

	t.Run("uses metadata", func(t *testing.T) {
		d := 212.5
		entry := NewLibraryEntry("yt-1.mp3", "https://example.com/a", &Metadata{Title: "Song", Duration: &d}, "audio/mpeg", 10)
		if entry.Title() != "Song" {
			t.Errorf("expected metadata title, got %s", entry.Title())
		}
		if entry.Duration() == nil || *entry.Duration() != 212.5 {
			t.Errorf("expected duration 212.5, got %v", entry.Duration())
		}
		if !entry.Ready() {
			t.Error("new entries are ready")
		}
	})

	t.Run("JSON keeps null duration", func(t *testing.T) {
		entry := NewLibraryEntry("yt-1.mp3", "https://example.com/a", nil, "audio/mpeg", 10)
		data, err := json.Marshal(entry)
		if err != nil {
			t.Fatalf("failed to marshal entry: %v", err)
		}
		if !strings.Contains(string(data), `"duration":null`) {
			t.Errorf("expected null duration in %s", data)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		if err := NewLibraryEntry("", "u", nil, "audio/mpeg", 0).Validate(); err == nil {
			t.Error("expected error for missing filename")
		}
		if err := NewLibraryEntry("a", "u", nil, "", 0).Validate(); err == nil {
			t.Error("expected error for missing content type")
		}
		if err := NewLibraryEntry("a", "u", nil, "audio/mpeg", -1).Validate(); err == nil {
			t.Error("expected error for negative size")
		}
	})
}
