// Package checkpoint persists per-phase traversal progress as one JSON
// document per phase, written with atomic-replace semantics so an operator
// inspecting progress never sees a torn write.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/messis/internal/models"
)

// Store reads and writes checkpoint documents under a single directory. The
// engine never deletes checkpoints; cleanup is operator-managed.
type Store struct {
	dir    string
	logger arbor.ILogger
}

// NewStore creates the checkpoint directory if needed.
func NewStore(dir string, logger arbor.ILogger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

func (s *Store) path(phaseID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("checkpoint_%s.json", phaseID))
}

// Exists reports whether a prior checkpoint document exists for the phase.
func (s *Store) Exists(phaseID string) bool {
	_, err := os.Stat(s.path(phaseID))
	return err == nil
}

// Load returns the phase's persisted state, or a fresh empty state when no
// document exists yet.
func (s *Store) Load(phaseID string) (*models.CheckpointState, error) {
	data, err := os.ReadFile(s.path(phaseID))
	if os.IsNotExist(err) {
		return models.NewCheckpointState(phaseID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var state models.CheckpointState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint %s: %w", s.path(phaseID), err)
	}
	if state.Completed == nil {
		state.Completed = make(map[string]bool)
	}

	s.logger.Debug().
		Str("phase", phaseID).
		Int("completed", len(state.Completed)).
		Msg("Loaded checkpoint")

	return &state, nil
}

// Save durably replaces the phase's checkpoint document. The document is
// written to a temp file, synced, then renamed over the target so a
// concurrent reader only ever observes a complete document.
func (s *Store) Save(state *models.CheckpointState) error {
	state.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "checkpoint_*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create checkpoint temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close checkpoint temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path(state.PhaseID)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}

	return nil
}
