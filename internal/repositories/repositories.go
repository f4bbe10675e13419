// package repositories provides persistence layer implementations for all model types.
package repositories

import (
	"database/sql"
	"strings"

	"github.com/desertthunder/ytaudio/internal/models"
)

// rowScanner is satisfied by both [sql.Row] and [sql.Rows].
type rowScanner interface {
	Scan(dest ...any) error
}

// nullString maps the empty string to NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullFloat maps a nil pointer to NULL.
func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}

var (
	_ models.Repository[*models.Job]          = (*JobRepository)(nil)
	_ models.Repository[*models.LibraryEntry] = (*LibraryRepository)(nil)
)
