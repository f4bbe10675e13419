package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Job is one tracked conversion attempt.
//
// A Job is created once per conversion request in [PhaseStarting] and only the orchestrator moves it forward.
type Job struct {
	filename     string
	sourceURL    string
	phase        Phase
	errorMessage string
	ready        bool
	createdAt    time.Time
	updatedAt    time.Time
}

// NewJob creates a Job in [PhaseStarting].
func NewJob(filename, sourceURL string) *Job {
	now := time.Now().UTC()
	return &Job{
		filename:  filename,
		sourceURL: sourceURL,
		phase:     PhaseStarting,
		createdAt: now,
		updatedAt: now,
	}
}

// RestoreJob rebuilds a Job from persisted columns.
func RestoreJob(filename, sourceURL string, phase Phase, errorMessage string, ready bool, createdAt, updatedAt time.Time) *Job {
	return &Job{
		filename:     filename,
		sourceURL:    sourceURL,
		phase:        phase,
		errorMessage: errorMessage,
		ready:        ready,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

func (j *Job) ID() string           { return j.filename }
func (j *Job) Filename() string     { return j.filename }
func (j *Job) SourceURL() string    { return j.sourceURL }
func (j *Job) Phase() Phase         { return j.phase }
func (j *Job) ErrorMessage() string { return j.errorMessage }
func (j *Job) Ready() bool          { return j.ready }
func (j *Job) CreatedAt() time.Time { return j.createdAt }
func (j *Job) UpdatedAt() time.Time { return j.updatedAt }

// Validate checks required fields and the failed ⇔ error invariant.
func (j *Job) Validate() error {
	if j.filename == "" {
		return fmt.Errorf("filename is required")
	}
	if j.sourceURL == "" {
		return fmt.Errorf("source url is required")
	}
	if !j.phase.Valid() {
		return fmt.Errorf("invalid phase %q", j.phase)
	}
	if j.phase == PhaseFailed && j.errorMessage == "" {
		return fmt.Errorf("failed job requires an error message")
	}
	if j.phase != PhaseFailed && j.errorMessage != "" {
		return fmt.Errorf("error message set on %s job", j.phase)
	}
	return nil
}

// JobView is the read-only projection served by the status endpoint.
type JobView struct {
	Filename  string     `json:"filename,omitempty"`
	SourceURL string     `json:"sourceUrl,omitempty"`
	Phase     Phase      `json:"phase"`
	Error     string     `json:"error,omitempty"`
	Ready     bool       `json:"ready,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// PendingJobView is reported for filenames that have no job row yet.
func PendingJobView() JobView {
	return JobView{Phase: PhasePending}
}

// View projects the Job for polling clients.
func (j *Job) View() JobView {
	created, updated := j.createdAt, j.updatedAt
	return JobView{
		Filename:  j.filename,
		SourceURL: j.sourceURL,
		Phase:     j.phase,
		Error:     j.errorMessage,
		Ready:     j.ready,
		CreatedAt: &created,
		UpdatedAt: &updated,
	}
}

// MarshalJSON encodes the Job as its [JobView].
func (j *Job) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.View())
}
