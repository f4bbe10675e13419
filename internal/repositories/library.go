package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/ytaudio/internal/models"
	"github.com/desertthunder/ytaudio/internal/shared"
)

const libraryColumns = `filename, source_url, title, duration, content_type, size_bytes, ready, created_at, updated_at`

// LibraryRepository is the SQLite library index.
type LibraryRepository struct {
	db *sql.DB
}

// NewLibraryRepository creates a new LibraryRepository with the given database connection
func NewLibraryRepository(db *sql.DB) *LibraryRepository {
	return &LibraryRepository{db: db}
}

// Upsert inserts the entry or overwrites its metadata, keeping the created_at of the first insert.
func (r *LibraryRepository) Upsert(entry *models.LibraryEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	now := time.Now().UTC()
	entry.SetUpdatedAt(now)

	query := `
		INSERT INTO library_entries (` + libraryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(filename) DO UPDATE SET
			source_url = excluded.source_url,
			title = excluded.title,
			duration = excluded.duration,
			content_type = excluded.content_type,
			size_bytes = excluded.size_bytes,
			ready = excluded.ready,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Exec(query,
		entry.Filename(),
		entry.SourceURL(),
		entry.Title(),
		nullFloat(entry.Duration()),
		entry.ContentType(),
		entry.SizeBytes(),
		entry.Ready(),
		entry.CreatedAt(),
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert library entry: %w", err)
	}

	return nil
}

// Get retrieves an entry by filename.
// Returns an error wrapping [shared.ErrNotFound] when no row exists.
func (r *LibraryRepository) Get(filename string) (*models.LibraryEntry, error) {
	query := `SELECT ` + libraryColumns + ` FROM library_entries WHERE filename = ?`

	entry, err := scanLibraryEntry(r.db.QueryRow(query, filename))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("library entry %s: %w", filename, shared.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Delete removes the entry for filename. Deleting a missing entry is not an error.
func (r *LibraryRepository) Delete(filename string) error {
	if _, err := r.db.Exec(`DELETE FROM library_entries WHERE filename = ?`, filename); err != nil {
		return fmt.Errorf("failed to delete library entry %s: %w", filename, err)
	}
	return nil
}

// List returns the full library, newest first.
//
// Supported criteria: "ready" (bool).
func (r *LibraryRepository) List(criteria map[string]any) ([]*models.LibraryEntry, error) {
	query := `SELECT ` + libraryColumns + ` FROM library_entries WHERE 1 = 1`
	args := []any{}

	if ready, ok := criteria["ready"].(bool); ok {
		query += " AND ready = ?"
		args = append(args, ready)
	}

	query += " ORDER BY created_at DESC, rowid DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query library: %w", err)
	}
	defer rows.Close()

	entries := []*models.LibraryEntry{}
	for rows.Next() {
		entry, err := scanLibraryEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}

func scanLibraryEntry(row rowScanner) (*models.LibraryEntry, error) {
	var (
		filename    string
		sourceURL   string
		title       string
		duration    sql.NullFloat64
		contentType string
		sizeBytes   int64
		ready       bool
		createdAt   time.Time
		updatedAt   time.Time
	)

	err := row.Scan(&filename, &sourceURL, &title, &duration, &contentType, &sizeBytes, &ready, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan library entry: %w", err)
	}

	return models.RestoreLibraryEntry(
		filename, sourceURL, title, floatPtr(duration), contentType, sizeBytes, ready, createdAt, updatedAt,
	), nil
}
