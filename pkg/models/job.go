package models

import "time"

// JobState represents the lifecycle state of a training job
type JobState string

const (
	JobStateRunning   JobState = "RUNNING"
	JobStateSucceeded JobState = "SUCCEEDED"
	JobStateFailed    JobState = "FAILED"
)

// Terminal reports whether the state is final.
func (s JobState) Terminal() bool {
	return s == JobStateSucceeded || s == JobStateFailed
}

// JobLifecycleRecord tracks a single job from RUNNING to exactly one
// terminal state. The JobID doubles as the storage-path prefix for all
// artifacts of the job.
type JobLifecycleRecord struct {
	JobID           string     `json:"job_id"`
	State           JobState   `json:"state"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationMinutes float64    `json:"duration_minutes,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
}

// StatusRecord is the JSON status document written to object storage at job
// start and exactly once more at job end.
type StatusRecord struct {
	State           JobState `json:"state"`
	StartTime       string   `json:"start_time"`
	EndTime         string   `json:"end_time,omitempty"`
	DurationMinutes *float64 `json:"duration_minutes,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// LedgerEntry is one row of the append/upsert-by-job-id job ledger,
// kept sorted by start time descending.
type LedgerEntry struct {
	JobID           string     `json:"job_id"`
	State           JobState   `json:"state"`
	Country         string     `json:"country"`
	Revision        string     `json:"revision"`
	Iterations      int        `json:"iterations"`
	Trials          int        `json:"trials"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationMinutes float64    `json:"duration_minutes,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// TimingEntry is one row of the cumulative per-step timings log.
type TimingEntry struct {
	Step        string  `json:"step"`
	TimeSeconds float64 `json:"time_seconds"`
}

// FailureArtifact is the structured failure record persisted for postmortem
// debugging alongside the FAILED lifecycle record.
type FailureArtifact struct {
	Message        string  `json:"message"`
	Context        string  `json:"context"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	Timestamp      string  `json:"timestamp"`
}
