package badger

import (
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/messis/internal/interfaces"
	"github.com/ternarybob/messis/internal/models"
)

// SummaryStorage implements the master-list store for Badger. Records are
// keyed by category-scoped identity, so re-running a harvest supersedes
// prior rows instead of duplicating them.
type SummaryStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSummaryStorage creates a new SummaryStorage instance
func NewSummaryStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SummaryStorage {
	return &SummaryStorage{
		db:     db,
		logger: logger,
	}
}

func summaryKey(rec *models.SummaryRecord) string {
	return fmt.Sprintf("summary|%s|%s", rec.Category, rec.Identity().Key())
}

// SaveSummaries upserts a batch of summary records. Safe to call repeatedly
// with the same identities.
func (s *SummaryStorage) SaveSummaries(records []*models.SummaryRecord) error {
	for _, rec := range records {
		if rec.Identity().IsZero() {
			return fmt.Errorf("summary record has no identity")
		}
		if err := s.db.Store().Upsert(summaryKey(rec), rec); err != nil {
			return fmt.Errorf("failed to save summary record: %w", err)
		}
	}
	return nil
}

// ListSummaries returns a category's master list in harvest order.
func (s *SummaryStorage) ListSummaries(category models.Category) ([]*models.SummaryRecord, error) {
	var records []models.SummaryRecord
	if err := s.db.Store().Find(&records, badgerhold.Where("Category").Eq(category)); err != nil {
		return nil, fmt.Errorf("failed to list summary records: %w", err)
	}

	sort.SliceStable(records, func(i, j int) bool { return records[i].Position < records[j].Position })

	result := make([]*models.SummaryRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}

// CountSummaries returns the master-list size for a category.
func (s *SummaryStorage) CountSummaries(category models.Category) (int, error) {
	count, err := s.db.Store().Count(&models.SummaryRecord{}, badgerhold.Where("Category").Eq(category))
	if err != nil {
		return 0, fmt.Errorf("failed to count summary records: %w", err)
	}
	return int(count), nil
}
