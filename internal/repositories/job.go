package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/ytaudio/internal/models"
	"github.com/desertthunder/ytaudio/internal/shared"
)

const jobColumns = `filename, source_url, phase, error_message, ready, created_at, updated_at`

// JobRepository is the SQLite job ledger.
type JobRepository struct {
	db *sql.DB
}

// NewJobRepository creates a new JobRepository with the given database connection
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job row. The job must be in [models.PhaseStarting].
func (r *JobRepository) Create(job *models.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if job.Phase() != models.PhaseStarting {
		return fmt.Errorf("%w: new jobs must start in %s, got %s", shared.ErrInvalidTransition, models.PhaseStarting, job.Phase())
	}

	query := `INSERT INTO jobs (` + jobColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.Exec(query,
		job.Filename(),
		job.SourceURL(),
		string(job.Phase()),
		nullString(job.ErrorMessage()),
		job.Ready(),
		job.CreatedAt(),
		job.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: job %s already exists", shared.ErrInvalidInput, job.Filename())
		}
		return fmt.Errorf("failed to insert job: %w", err)
	}

	return nil
}

// Get retrieves a job by filename.
// Returns an error wrapping [shared.ErrNotFound] when no row exists.
func (r *JobRepository) Get(filename string) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE filename = ?`

	job, err := scanJob(r.db.QueryRow(query, filename))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", filename, shared.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Transition moves a job from one phase to the next with compare-and-set semantics.
//
// The update only applies when the stored phase still equals from, so phases never regress even if
// two writers race. reason is recorded as the error message and is only accepted for [models.PhaseFailed].
func (r *JobRepository) Transition(filename string, from, to models.Phase, reason string) error {
	if !models.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", shared.ErrInvalidTransition, from, to)
	}
	if to == models.PhaseFailed && reason == "" {
		reason = "unknown error"
	}
	if to != models.PhaseFailed {
		reason = ""
	}

	query := `
		UPDATE jobs
		SET phase = ?, error_message = ?, ready = ?, updated_at = ?
		WHERE filename = ? AND phase = ?
	`

	result, err := r.db.Exec(query,
		string(to),
		nullString(reason),
		to == models.PhaseUploaded,
		time.Now().UTC(),
		filename,
		string(from),
	)
	if err != nil {
		return fmt.Errorf("failed to update job phase: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		current, err := r.Get(filename)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: job %s is %s, expected %s", shared.ErrInvalidTransition, filename, current.Phase(), from)
	}

	return nil
}

// FailInFlight marks every job still in a non-terminal phase as failed with reason.
//
// Dispatch is in-memory, so jobs left in starting or downloaded when the process stopped will never
// be picked up again.
func (r *JobRepository) FailInFlight(reason string) (int64, error) {
	query := `
		UPDATE jobs
		SET phase = ?, error_message = ?, ready = 0, updated_at = ?
		WHERE phase IN (?, ?)
	`

	result, err := r.db.Exec(query,
		string(models.PhaseFailed),
		reason,
		time.Now().UTC(),
		string(models.PhaseStarting),
		string(models.PhaseDownloaded),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to fail in-flight jobs: %w", err)
	}
	return result.RowsAffected()
}

// List retrieves jobs newest first.
//
// Supported criteria: "phase" (string or [models.Phase]) and "limit" (int).
func (r *JobRepository) List(criteria map[string]any) ([]*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1 = 1`
	args := []any{}

	switch phase := criteria["phase"].(type) {
	case string:
		if phase != "" {
			query += " AND phase = ?"
			args = append(args, phase)
		}
	case models.Phase:
		query += " AND phase = ?"
		args = append(args, string(phase))
	}

	query += " ORDER BY created_at DESC, rowid DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*models.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return jobs, nil
}

func scanJob(row rowScanner) (*models.Job, error) {
	var (
		filename     string
		sourceURL    string
		phase        string
		errorMessage sql.NullString
		ready        bool
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := row.Scan(&filename, &sourceURL, &phase, &errorMessage, &ready, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	p, err := models.ParsePhase(phase)
	if err != nil {
		return nil, fmt.Errorf("failed to scan job %s: %w", filename, err)
	}

	return models.RestoreJob(filename, sourceURL, p, errorMessage.String, ready, createdAt, updatedAt), nil
}
