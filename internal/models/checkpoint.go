package models

import "time"

// Cursor is the durable pointer to the last fully-completed position in a
// traversal. A fresh phase starts with the index sentinels at -1 (nothing
// completed yet). Harvest stages use PartitionIdx/PageIdx; detail stages use
// ItemIdx.
type Cursor struct {
	PartitionIdx int `json:"partition_idx"`
	PageIdx      int `json:"page_idx"`
	ItemIdx      int `json:"item_idx"`
}

// Counters is the running tally reported while a phase executes.
type Counters struct {
	Processed int `json:"processed"`
	Partial   int `json:"partial"` // records emitted with one or more failed sections
	Errored   int `json:"errored"`
	Total     int `json:"total"`
}

// CheckpointState is the persisted, resumable progress state for one phase.
// The cursor only advances past a unit of work after that unit's output has
// been durably persisted, so a crash never reports an item as done without
// its data existing.
type CheckpointState struct {
	PhaseID string `json:"phase_id"`
	RunID   string `json:"run_id"`
	Cursor  Cursor `json:"cursor"`
	// Completed is the set of identity keys already persisted. Monotonically
	// non-decreasing within a phase; an identity once marked complete is never
	// re-fetched unless a force re-scrape is requested.
	Completed map[string]bool `json:"completed"`
	Counters  Counters        `json:"counters"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewCheckpointState returns the empty state a phase starts from when no
// prior checkpoint exists.
func NewCheckpointState(phaseID string) *CheckpointState {
	return &CheckpointState{
		PhaseID:   phaseID,
		Cursor:    Cursor{PartitionIdx: 0, PageIdx: -1, ItemIdx: -1},
		Completed: make(map[string]bool),
	}
}

// IsEmpty reports whether the state reflects no completed work.
func (s *CheckpointState) IsEmpty() bool {
	return len(s.Completed) == 0 && s.Cursor.PageIdx < 0 && s.Cursor.ItemIdx < 0 && s.Cursor.PartitionIdx == 0
}

// IsCompleted reports whether the identity has already been persisted.
func (s *CheckpointState) IsCompleted(id Identity) bool {
	return s.Completed[id.Key()]
}

// MarkCompleted adds the identity to the completed set.
func (s *CheckpointState) MarkCompleted(id Identity) {
	if s.Completed == nil {
		s.Completed = make(map[string]bool)
	}
	s.Completed[id.Key()] = true
}
