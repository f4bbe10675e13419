// package models defines the data model for the audio conversion service
package models

import (
	"time"
)

// Model defines the base interface for all persistent models in the conversion service.
// Implementations include Job and LibraryEntry.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the read side shared by every repository.
// Writes are entity specific (phase transitions for jobs, upserts for library entries).
type Repository[T Model] interface {
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// Metadata is the best-effort description of a source extracted before transcoding.
type Metadata struct {
	Title    string
	Duration *float64 // seconds, nil when unknown
}
