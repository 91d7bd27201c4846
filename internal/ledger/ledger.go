// Package ledger is the append-only failure ledger. Per-item failures are
// recorded here and never abort the run; the ledger is how they become
// visible to the operator.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/messis/internal/models"
)

// Ledger accumulates error entries for one phase and persists them as a
// single JSON document, replaced atomically on each append so readers never
// see a trailing partial entry.
type Ledger struct {
	mu      sync.Mutex
	path    string
	entries []models.ErrorEntry
	logger  arbor.ILogger
}

// Open loads an existing ledger document or starts an empty one.
func Open(dir, phaseID string, logger arbor.ILogger) (*Ledger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	l := &Ledger{
		path:   filepath.Join(dir, fmt.Sprintf("errors_%s.json", phaseID)),
		logger: logger,
	}

	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read error ledger: %w", err)
	}
	if err := json.Unmarshal(data, &l.entries); err != nil {
		return nil, fmt.Errorf("failed to parse error ledger %s: %w", l.path, err)
	}
	return l, nil
}

// Record appends one entry and persists the ledger. It never propagates an
// error to the caller: a ledger that cannot be written is logged and the run
// keeps moving.
func (l *Ledger) Record(entry models.ErrorEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	l.entries = append(l.entries, entry)

	if err := l.flushLocked(); err != nil {
		l.logger.Warn().Err(err).
			Str("identity", entry.Identity).
			Str("reason", string(entry.Reason)).
			Msg("Failed to persist error ledger entry")
	}
}

func (l *Ledger) flushLocked() error {
	data, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, "errors_*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Summary returns entry counts grouped by failure reason.
func (l *Ledger) Summary() map[models.FailureReason]int {
	l.mu.Lock()
	defer l.mu.Unlock()

	counts := make(map[models.FailureReason]int)
	for _, e := range l.entries {
		counts[e.Reason]++
	}
	return counts
}

// SummaryForRun returns entry counts grouped by failure reason, restricted to
// entries recorded under the given run ID. The ledger document accumulates
// across runs; this is the per-run view.
func (l *Ledger) SummaryForRun(runID string) map[models.FailureReason]int {
	l.mu.Lock()
	defer l.mu.Unlock()

	counts := make(map[models.FailureReason]int)
	for _, e := range l.entries {
		if e.RunID == runID {
			counts[e.Reason]++
		}
	}
	return counts
}

// Count returns the number of recorded entries.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Entries returns a copy of the recorded entries in append order.
func (l *Ledger) Entries() []models.ErrorEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.ErrorEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
