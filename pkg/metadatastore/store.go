package metadatastore

import "github.com/ivana-meshed/mmm-app-sub006/pkg/models"

// JobStore is the interface for job ledger and timings persistence.
// This stores run bookkeeping only; artifacts and reports go through the
// object store.
type JobStore interface {
	// Ledger operations (upsert-by-job-id)
	UpsertLedger(entry *models.LedgerEntry) error
	GetLedger(jobID string) (*models.LedgerEntry, error)
	// ListLedger returns entries sorted by start time descending.
	ListLedger() ([]*models.LedgerEntry, error)

	// Timing operations (merge-by-step per job)
	MergeTiming(jobID string, entry models.TimingEntry) error
	ListTimings(jobID string) ([]models.TimingEntry, error)

	Close() error
}
