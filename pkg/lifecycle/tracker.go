// Package lifecycle tracks a training job from RUNNING to exactly one
// terminal state, mirroring the record into object storage (status JSON)
// and the metadata store (ledger row, step timings).
package lifecycle

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/ivana-meshed/mmm-app-sub006/pkg/logging"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/metadatastore"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/models"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/storage"
)

// JobMeta is the job identity carried into the ledger.
type JobMeta struct {
	Country    string
	Revision   string
	Iterations int
	Trials     int
}

// Tracker owns the job lifecycle record. State transitions are strictly
// ordered: one RUNNING write, then exactly one terminal write. Calls after
// the terminal transition are no-ops, which makes the failure unwind path
// safe to re-enter.
type Tracker struct {
	jobID   string
	meta    JobMeta
	objects storage.ObjectStore
	store   metadatastore.JobStore
	retry   storage.RetryPolicy
	log     logging.Logger

	mu       sync.Mutex
	started  bool
	terminal bool
	start    time.Time
	timings  []models.TimingEntry
}

// NewTracker creates a lifecycle tracker for one job.
func NewTracker(jobID string, meta JobMeta, objects storage.ObjectStore, store metadatastore.JobStore, retry storage.RetryPolicy, log logging.Logger) *Tracker {
	return &Tracker{
		jobID:   jobID,
		meta:    meta,
		objects: objects,
		store:   store,
		retry:   retry,
		log:     log,
	}
}

// JobID returns the job identifier, which doubles as the artifact prefix.
func (t *Tracker) JobID() string { return t.jobID }

// Start records the RUNNING state before any further processing, so partial
// failures stay observable. Storage failures here are logged and swallowed;
// the job itself proceeds.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.start = time.Now().UTC()
	start := t.start
	t.mu.Unlock()

	status := &models.StatusRecord{
		State:     models.JobStateRunning,
		StartTime: start.Format(time.RFC3339),
	}
	t.putStatus(ctx, status)
	t.upsertLedger(models.JobStateRunning, nil, "")
	t.log.Info("job started", logging.String("job_id", t.jobID))
}

// Succeed performs the terminal SUCCEEDED transition. The final status
// write is the one storage write that is allowed to fail the job.
func (t *Tracker) Succeed(ctx context.Context) error {
	end, duration, ok := t.finish()
	if !ok {
		t.log.Warn("ignoring terminal transition on already-terminal job",
			logging.String("job_id", t.jobID))
		return nil
	}

	minutes := duration.Minutes()
	status := &models.StatusRecord{
		State:           models.JobStateSucceeded,
		StartTime:       t.start.Format(time.RFC3339),
		EndTime:         end.Format(time.RFC3339),
		DurationMinutes: &minutes,
	}
	err := t.retry.Do(ctx, func() error {
		return storage.PutJSON(ctx, t.objects, t.statusKey(), status)
	})
	t.upsertLedger(models.JobStateSucceeded, &end, "")
	if err != nil {
		return err
	}
	t.log.Info("job succeeded",
		logging.String("job_id", t.jobID),
		logging.Float64("duration_minutes", minutes))
	return nil
}

// Fail performs the terminal FAILED transition. Best effort throughout: the
// job is already failing, so storage errors are logged, never returned, and
// a second call is a no-op.
func (t *Tracker) Fail(ctx context.Context, cause error) {
	end, duration, ok := t.finish()
	if !ok {
		return
	}

	minutes := duration.Minutes()
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	status := &models.StatusRecord{
		State:           models.JobStateFailed,
		StartTime:       t.start.Format(time.RFC3339),
		EndTime:         end.Format(time.RFC3339),
		DurationMinutes: &minutes,
		Error:           msg,
	}
	t.putStatus(ctx, status)
	t.upsertLedger(models.JobStateFailed, &end, msg)
	t.log.Error("job failed",
		logging.String("job_id", t.jobID),
		logging.Float64("duration_minutes", minutes),
		logging.String("error", msg))
}

// finish flips the terminal flag exactly once and returns the end time and
// elapsed duration. ok is false when the job is already terminal.
func (t *Tracker) finish() (end time.Time, duration time.Duration, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.terminal || !t.started {
		return time.Time{}, 0, false
	}
	t.terminal = true
	end = time.Now().UTC()
	return end, end.Sub(t.start), true
}

// Terminal reports whether the job has reached a terminal state.
func (t *Tracker) Terminal() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.terminal
}

// RecordTiming merges one step's wall-clock seconds into the timings log.
func (t *Tracker) RecordTiming(step string, seconds float64) {
	entry := models.TimingEntry{Step: step, TimeSeconds: seconds}
	t.mu.Lock()
	t.timings = append(t.timings, entry)
	t.mu.Unlock()

	if err := t.store.MergeTiming(t.jobID, entry); err != nil {
		t.log.Warn("failed to merge step timing",
			logging.String("step", step), logging.Err(err))
	}
}

// FlushTimings uploads the cumulative timings as a CSV artifact. Best
// effort.
func (t *Tracker) FlushTimings(ctx context.Context) {
	t.mu.Lock()
	timings := append([]models.TimingEntry(nil), t.timings...)
	t.mu.Unlock()
	if len(timings) == 0 {
		return
	}

	rows := make([][]string, 0, len(timings))
	for _, entry := range timings {
		rows = append(rows, []string{entry.Step, formatSeconds(entry.TimeSeconds)})
	}
	data, err := storage.EncodeCSV([]string{"step", "time_seconds"}, rows)
	if err != nil {
		t.log.Warn("failed to encode timings csv", logging.Err(err))
		return
	}
	key := t.jobID + "/logs/timings.csv"
	err = t.retry.Do(ctx, func() error {
		return t.objects.Put(ctx, key, data)
	})
	if err != nil {
		t.log.Warn("failed to upload timings csv", logging.String("key", key), logging.Err(err))
	}
}

// WriteFailureArtifact persists the structured failure record used for
// postmortems. Best effort.
func (t *Tracker) WriteFailureArtifact(ctx context.Context, cause error, stageContext string, elapsed time.Duration) {
	artifact := &models.FailureArtifact{
		Message:        cause.Error(),
		Context:        stageContext,
		ElapsedSeconds: elapsed.Seconds(),
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	}
	key := t.jobID + "/error/failure.json"
	err := t.retry.Do(ctx, func() error {
		return storage.PutJSON(ctx, t.objects, key, artifact)
	})
	if err != nil {
		t.log.Warn("failed to upload failure artifact", logging.String("key", key), logging.Err(err))
	}
}

func (t *Tracker) statusKey() string { return t.jobID + "/status.json" }

func (t *Tracker) putStatus(ctx context.Context, status *models.StatusRecord) {
	err := t.retry.Do(ctx, func() error {
		return storage.PutJSON(ctx, t.objects, t.statusKey(), status)
	})
	if err != nil {
		t.log.Warn("failed to write status record",
			logging.String("job_id", t.jobID), logging.Err(err))
	}
}

func (t *Tracker) upsertLedger(state models.JobState, end *time.Time, errMsg string) {
	entry := &models.LedgerEntry{
		JobID:      t.jobID,
		State:      state,
		Country:    t.meta.Country,
		Revision:   t.meta.Revision,
		Iterations: t.meta.Iterations,
		Trials:     t.meta.Trials,
		StartTime:  t.start,
		EndTime:    end,
		Error:      errMsg,
	}
	if end != nil {
		entry.DurationMinutes = end.Sub(t.start).Minutes()
	}
	if err := t.store.UpsertLedger(entry); err != nil {
		t.log.Warn("failed to upsert ledger entry",
			logging.String("job_id", t.jobID), logging.Err(err))
	}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
