package interfaces

import "github.com/ternarybob/messis/internal/models"

// SummaryStorage persists the master list of harvested summary records.
// Writes are keyed by identity and idempotent: repeating a write for the
// same identity replaces the record wholesale.
type SummaryStorage interface {
	SaveSummaries(records []*models.SummaryRecord) error
	// ListSummaries returns a category's master list in harvest order.
	ListSummaries(category models.Category) ([]*models.SummaryRecord, error)
	CountSummaries(category models.Category) (int, error)
}

// DetailStorage persists full detail records, keyed by identity, idempotent
// in the same way.
type DetailStorage interface {
	SaveDetail(record *models.DetailRecord) error
	GetDetail(category models.Category, identity models.Identity) (*models.DetailRecord, error)
	ListDetails(category models.Category) ([]*models.DetailRecord, error)
	CountDetails(category models.Category) (int, error)
}

// StorageManager aggregates the record stores behind one lifecycle.
type StorageManager interface {
	SummaryStorage() SummaryStorage
	DetailStorage() DetailStorage
	Close() error
}

// CheckpointStore loads and durably saves per-phase progress state. Save is
// atomic: a concurrent reader never observes a half-written document. Save
// failures are fatal to the phase.
type CheckpointStore interface {
	// Load returns the phase's state, or a fresh empty state if none exists.
	Load(phaseID string) (*models.CheckpointState, error)
	Save(state *models.CheckpointState) error
	Exists(phaseID string) bool
}

// ErrorLedger records failed units of work. Record never returns an error to
// its caller; ledger entries are visibility, not control flow.
type ErrorLedger interface {
	Record(entry models.ErrorEntry)
	Summary() map[models.FailureReason]int
	// SummaryForRun counts only the entries recorded under the given run ID,
	// so a resumed phase's report excludes prior runs' failures.
	SummaryForRun(runID string) map[models.FailureReason]int
	Count() int
}
