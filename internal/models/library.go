package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// LibraryEntry is one durably stored, playable item.
//
// An entry with ready set implies the blob store holds a complete object under its filename.
type LibraryEntry struct {
	filename    string
	sourceURL   string
	title       string
	duration    *float64
	contentType string
	sizeBytes   int64
	ready       bool
	createdAt   time.Time
	updatedAt   time.Time
}

// NewLibraryEntry creates a ready entry for bytes that were just stored durably.
// A nil or untitled meta falls back to the filename as title.
func NewLibraryEntry(filename, sourceURL string, meta *Metadata, contentType string, sizeBytes int64) *LibraryEntry {
	now := time.Now().UTC()
	entry := &LibraryEntry{
		filename:    filename,
		sourceURL:   sourceURL,
		title:       filename,
		contentType: contentType,
		sizeBytes:   sizeBytes,
		ready:       true,
		createdAt:   now,
		updatedAt:   now,
	}
	if meta != nil {
		if meta.Title != "" {
			entry.title = meta.Title
		}
		entry.duration = meta.Duration
	}
	return entry
}

// RestoreLibraryEntry rebuilds an entry from persisted columns.
func RestoreLibraryEntry(
	filename, sourceURL, title string,
	duration *float64,
	contentType string,
	sizeBytes int64,
	ready bool,
	createdAt, updatedAt time.Time,
) *LibraryEntry {
	return &LibraryEntry{
		filename:    filename,
		sourceURL:   sourceURL,
		title:       title,
		duration:    duration,
		contentType: contentType,
		sizeBytes:   sizeBytes,
		ready:       ready,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

func (e *LibraryEntry) ID() string           { return e.filename }
func (e *LibraryEntry) Filename() string     { return e.filename }
func (e *LibraryEntry) SourceURL() string    { return e.sourceURL }
func (e *LibraryEntry) Title() string        { return e.title }
func (e *LibraryEntry) Duration() *float64   { return e.duration }
func (e *LibraryEntry) ContentType() string  { return e.contentType }
func (e *LibraryEntry) SizeBytes() int64     { return e.sizeBytes }
func (e *LibraryEntry) Ready() bool          { return e.ready }
func (e *LibraryEntry) CreatedAt() time.Time { return e.createdAt }
func (e *LibraryEntry) UpdatedAt() time.Time { return e.updatedAt }

func (e *LibraryEntry) SetUpdatedAt(t time.Time) { e.updatedAt = t }

// Validate checks the fields the library index requires.
func (e *LibraryEntry) Validate() error {
	if e.filename == "" {
		return fmt.Errorf("filename is required")
	}
	if e.sourceURL == "" {
		return fmt.Errorf("source url is required")
	}
	if e.title == "" {
		return fmt.Errorf("title is required")
	}
	if e.contentType == "" {
		return fmt.Errorf("content type is required")
	}
	if e.sizeBytes < 0 {
		return fmt.Errorf("size must not be negative")
	}
	return nil
}

// LibraryEntryView is the wire representation of a library entry.
type LibraryEntryView struct {
	Filename    string    `json:"filename"`
	SourceURL   string    `json:"sourceUrl"`
	Title       string    `json:"title"`
	Duration    *float64  `json:"duration"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	Ready       bool      `json:"ready"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// View projects the entry for API clients.
func (e *LibraryEntry) View() LibraryEntryView {
	return LibraryEntryView{
		Filename:    e.filename,
		SourceURL:   e.sourceURL,
		Title:       e.title,
		Duration:    e.duration,
		ContentType: e.contentType,
		SizeBytes:   e.sizeBytes,
		Ready:       e.ready,
		CreatedAt:   e.createdAt,
		UpdatedAt:   e.updatedAt,
	}
}

// MarshalJSON encodes the entry as its [LibraryEntryView].
func (e *LibraryEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.View())
}
