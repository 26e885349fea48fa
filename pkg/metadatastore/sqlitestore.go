package metadatastore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ivana-meshed/mmm-app-sub006/pkg/models"
)

// SQLiteStore provides SQLite-based persistence for the job ledger and
// per-step timings.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based job store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000&_journal_mode=WAL&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Writes are serialized in SQLite anyway, keep the pool small.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS job_ledger (
		job_id           TEXT PRIMARY KEY,
		state            TEXT NOT NULL,
		country          TEXT,
		revision         TEXT,
		iterations       INTEGER,
		trials           INTEGER,
		start_time       TEXT NOT NULL,
		end_time         TEXT,
		duration_minutes REAL,
		error            TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_job_ledger_start ON job_ledger(start_time DESC);

	CREATE TABLE IF NOT EXISTS step_timings (
		job_id       TEXT NOT NULL,
		step         TEXT NOT NULL,
		time_seconds REAL NOT NULL,
		PRIMARY KEY (job_id, step)
	);`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// retryOnBusy retries a database operation if it fails due to SQLITE_BUSY.
// Safety net on top of the busy_timeout pragma.
func (s *SQLiteStore) retryOnBusy(operation func() error, maxRetries int) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") &&
			!strings.Contains(err.Error(), "SQLITE_BUSY") {
			return err
		}
		time.Sleep(time.Duration(i+1) * 50 * time.Millisecond)
	}
	return err
}

// UpsertLedger inserts or replaces the ledger row for entry.JobID.
func (s *SQLiteStore) UpsertLedger(entry *models.LedgerEntry) error {
	var endTime any
	if entry.EndTime != nil {
		endTime = entry.EndTime.UTC().Format(time.RFC3339)
	}
	return s.retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO job_ledger
				(job_id, state, country, revision, iterations, trials, start_time, end_time, duration_minutes, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(job_id) DO UPDATE SET
				state = excluded.state,
				end_time = excluded.end_time,
				duration_minutes = excluded.duration_minutes,
				error = excluded.error`,
			entry.JobID, string(entry.State), entry.Country, entry.Revision,
			entry.Iterations, entry.Trials,
			entry.StartTime.UTC().Format(time.RFC3339), endTime,
			entry.DurationMinutes, entry.Error)
		if err != nil {
			return fmt.Errorf("failed to upsert ledger entry %s: %w", entry.JobID, err)
		}
		return nil
	}, 5)
}

// GetLedger returns the ledger row for jobID, or nil when absent.
func (s *SQLiteStore) GetLedger(jobID string) (*models.LedgerEntry, error) {
	row := s.db.QueryRow(`
		SELECT job_id, state, country, revision, iterations, trials, start_time, end_time, duration_minutes, error
		FROM job_ledger WHERE job_id = ?`, jobID)
	entry, err := scanLedger(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entry %s: %w", jobID, err)
	}
	return entry, nil
}

// ListLedger returns all ledger rows sorted by start time descending.
func (s *SQLiteStore) ListLedger() ([]*models.LedgerEntry, error) {
	rows, err := s.db.Query(`
		SELECT job_id, state, country, revision, iterations, trials, start_time, end_time, duration_minutes, error
		FROM job_ledger ORDER BY start_time DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}
	defer rows.Close()

	var entries []*models.LedgerEntry
	for rows.Next() {
		entry, err := scanLedger(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLedger(r rowScanner) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	var state, startTime string
	var endTime, errMsg sql.NullString
	var duration sql.NullFloat64
	if err := r.Scan(&entry.JobID, &state, &entry.Country, &entry.Revision,
		&entry.Iterations, &entry.Trials, &startTime, &endTime, &duration, &errMsg); err != nil {
		return nil, err
	}
	entry.State = models.JobState(state)
	t, err := time.Parse(time.RFC3339, startTime)
	if err != nil {
		return nil, fmt.Errorf("invalid start_time %q: %w", startTime, err)
	}
	entry.StartTime = t
	if endTime.Valid && endTime.String != "" {
		et, err := time.Parse(time.RFC3339, endTime.String)
		if err != nil {
			return nil, fmt.Errorf("invalid end_time %q: %w", endTime.String, err)
		}
		entry.EndTime = &et
	}
	if duration.Valid {
		entry.DurationMinutes = duration.Float64
	}
	if errMsg.Valid {
		entry.Error = errMsg.String
	}
	return &entry, nil
}

// MergeTiming inserts or replaces the timing row for (jobID, step).
func (s *SQLiteStore) MergeTiming(jobID string, entry models.TimingEntry) error {
	return s.retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO step_timings (job_id, step, time_seconds)
			VALUES (?, ?, ?)
			ON CONFLICT(job_id, step) DO UPDATE SET time_seconds = excluded.time_seconds`,
			jobID, entry.Step, entry.TimeSeconds)
		if err != nil {
			return fmt.Errorf("failed to merge timing %s/%s: %w", jobID, entry.Step, err)
		}
		return nil
	}, 5)
}

// ListTimings returns the timing rows for a job ordered by step name.
func (s *SQLiteStore) ListTimings(jobID string) ([]models.TimingEntry, error) {
	rows, err := s.db.Query(`
		SELECT step, time_seconds FROM step_timings WHERE job_id = ? ORDER BY step`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list timings for %s: %w", jobID, err)
	}
	defer rows.Close()

	var entries []models.TimingEntry
	for rows.Next() {
		var entry models.TimingEntry
		if err := rows.Scan(&entry.Step, &entry.TimeSeconds); err != nil {
			return nil, fmt.Errorf("failed to scan timing row: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
