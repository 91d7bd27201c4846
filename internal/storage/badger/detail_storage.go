package badger

import (
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/messis/internal/interfaces"
	"github.com/ternarybob/messis/internal/models"
)

// DetailStorage implements the full-details store for Badger. A re-scrape
// replaces a record wholesale under the same key; records are never merged
// field-by-field.
type DetailStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDetailStorage creates a new DetailStorage instance
func NewDetailStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DetailStorage {
	return &DetailStorage{
		db:     db,
		logger: logger,
	}
}

func detailKey(category models.Category, id models.Identity) string {
	return fmt.Sprintf("detail|%s|%s", category, id.Key())
}

// SaveDetail upserts one detail record. Safe to call repeatedly with the
// same identity.
func (s *DetailStorage) SaveDetail(record *models.DetailRecord) error {
	id := record.Identity()
	if id.IsZero() {
		return fmt.Errorf("detail record has no identity")
	}
	if err := s.db.Store().Upsert(detailKey(record.Meta.Category, id), record); err != nil {
		return fmt.Errorf("failed to save detail record: %w", err)
	}
	return nil
}

// GetDetail fetches one detail record by identity.
func (s *DetailStorage) GetDetail(category models.Category, id models.Identity) (*models.DetailRecord, error) {
	var record models.DetailRecord
	if err := s.db.Store().Get(detailKey(category, id), &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("detail record not found: %s", id.Key())
		}
		return nil, fmt.Errorf("failed to get detail record: %w", err)
	}
	return &record, nil
}

// ListDetails returns a category's detail records ordered by scrape time.
func (s *DetailStorage) ListDetails(category models.Category) ([]*models.DetailRecord, error) {
	var records []models.DetailRecord
	if err := s.db.Store().Find(&records, badgerhold.Where("Meta.Category").Eq(category)); err != nil {
		return nil, fmt.Errorf("failed to list detail records: %w", err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Meta.ScrapedAt.Before(records[j].Meta.ScrapedAt)
	})

	result := make([]*models.DetailRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}

// CountDetails returns the number of detail records for a category.
func (s *DetailStorage) CountDetails(category models.Category) (int, error) {
	count, err := s.db.Store().Count(&models.DetailRecord{}, badgerhold.Where("Meta.Category").Eq(category))
	if err != nil {
		return 0, fmt.Errorf("failed to count detail records: %w", err)
	}
	return int(count), nil
}
