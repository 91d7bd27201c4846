// Package export dumps the harvested master lists and scraped detail
// records to JSON files for downstream consumers.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/messis/internal/interfaces"
	"github.com/ternarybob/messis/internal/models"
)

// Exporter writes per-category JSON exports out of the record stores.
type Exporter struct {
	storage interfaces.StorageManager
	dir     string
	logger  arbor.ILogger
}

// NewExporter creates an exporter writing into dir.
func NewExporter(storage interfaces.StorageManager, dir string, logger arbor.ILogger) *Exporter {
	return &Exporter{
		storage: storage,
		dir:     dir,
		logger:  logger,
	}
}

type summaryExport struct {
	Category   models.Category         `json:"category"`
	ExportedAt time.Time               `json:"exported_at"`
	Count      int                     `json:"count"`
	Records    []*models.SummaryRecord `json:"records"`
}

type detailExport struct {
	Category   models.Category        `json:"category"`
	ExportedAt time.Time              `json:"exported_at"`
	Count      int                    `json:"count"`
	Records    []*models.DetailRecord `json:"records"`
}

// ExportCategory writes the master list and detail records for one
// category. Files are replaced atomically so a crash mid-export never
// leaves a truncated dump behind.
func (e *Exporter) ExportCategory(category models.Category) error {
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	summaries, err := e.storage.SummaryStorage().ListSummaries(category)
	if err != nil {
		return fmt.Errorf("failed to load master list for %s: %w", category, err)
	}
	summaryPath := filepath.Join(e.dir, fmt.Sprintf("%s_master_list.json", category))
	if err := e.writeJSON(summaryPath, summaryExport{
		Category:   category,
		ExportedAt: time.Now().UTC(),
		Count:      len(summaries),
		Records:    summaries,
	}); err != nil {
		return err
	}

	details, err := e.storage.DetailStorage().ListDetails(category)
	if err != nil {
		return fmt.Errorf("failed to load detail records for %s: %w", category, err)
	}
	detailPath := filepath.Join(e.dir, fmt.Sprintf("%s_details.json", category))
	if err := e.writeJSON(detailPath, detailExport{
		Category:   category,
		ExportedAt: time.Now().UTC(),
		Count:      len(details),
		Records:    details,
	}); err != nil {
		return err
	}

	e.logger.Info().
		Str("category", string(category)).
		Int("summaries", len(summaries)).
		Int("details", len(details)).
		Str("dir", e.dir).
		Msg("Category exported")

	return nil
}

// ExportAll exports every category.
func (e *Exporter) ExportAll() error {
	for _, category := range []models.Category{
		models.CategoryExperts,
		models.CategoryFacilities,
		models.CategoryOrganizations,
	} {
		if err := e.ExportCategory(category); err != nil {
			return err
		}
	}
	return nil
}

func (e *Exporter) writeJSON(path string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal export: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp export file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write export file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync export file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close export file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace export file: %w", err)
	}
	return nil
}
