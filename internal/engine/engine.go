// Package engine is the checkpointed extraction core: paginated list
// harvesting, per-item deep-detail traversal, checkpoint persistence and
// resume, duplicate suppression, pacing, and per-item error isolation.
package engine

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/messis/internal/common"
	"github.com/ternarybob/messis/internal/interfaces"
	"github.com/ternarybob/messis/internal/models"
)

// phaseState is the engine's per-phase lifecycle state. FATAL is reachable
// from RUNNING only on session loss, persistence failure, or a missing
// prerequisite.
type phaseState string

const (
	stateInit     phaseState = "init"
	stateResuming phaseState = "resuming"
	stateFresh    phaseState = "fresh"
	stateRunning  phaseState = "running"
	stateComplete phaseState = "complete"
	stateFatal    phaseState = "fatal"
)

// Deps carries the collaborators one engine instance drives for a phase.
type Deps struct {
	Fetcher     interfaces.PageFetcher
	Storage     interfaces.StorageManager
	Checkpoints interfaces.CheckpointStore
	Ledger      interfaces.ErrorLedger
	Session     interfaces.Session
	Pacer       *Pacer
	Force       bool
	Logger      arbor.ILogger
}

// Engine runs one extraction phase as a single sequential worker: no unit of
// work starts before the prior unit's output is durably recorded, because
// the shared browser session cannot be used concurrently.
type Engine struct {
	deps Deps
}

// New creates an engine for the given collaborators.
func New(deps Deps) *Engine {
	return &Engine{deps: deps}
}

// PhaseResult is the final report for a completed phase.
type PhaseResult struct {
	Phase   models.Phase
	State   *models.CheckpointState
	Resumed bool
	// Failures is the ledger tally by reason for this run only; entries
	// carried over from prior runs of the phase are not counted.
	Failures map[models.FailureReason]int
}

// RunPhase executes one phase to completion or to a fatal condition. When
// resume is true, prior checkpoint state is loaded and completed work is
// skipped; otherwise the phase starts from an empty state (prior output is
// only replaced as new output lands, never destroyed up front).
func (e *Engine) RunPhase(ctx context.Context, phase models.Phase, resume bool) (*PhaseResult, error) {
	log := e.deps.Logger
	log.Info().Str("phase", phase.ID()).Str("state", string(stateInit)).Msg("Phase starting")

	var state *models.CheckpointState
	if resume {
		loaded, err := e.deps.Checkpoints.Load(phase.ID())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCheckpointSave, err)
		}
		state = loaded
		// Each invocation is its own run: ledger entries and the final
		// failure summary are scoped by run ID, not by checkpoint lineage.
		state.RunID = common.NewRunID()
		log.Info().
			Str("phase", phase.ID()).
			Str("state", string(stateResuming)).
			Int("completed", len(state.Completed)).
			Int("processed", state.Counters.Processed).
			Msg("Resuming from checkpoint")
	} else {
		state = models.NewCheckpointState(phase.ID())
		state.RunID = common.NewRunID()
		log.Info().Str("phase", phase.ID()).Str("state", string(stateFresh)).Msg("Starting fresh")
	}

	if !e.deps.Session.IsValid(ctx) {
		log.Error().Str("phase", phase.ID()).Str("state", string(stateFatal)).Msg("Session invalid at phase start")
		return nil, ErrSessionInvalid
	}

	log.Info().Str("phase", phase.ID()).Str("state", string(stateRunning)).Msg("Phase running")

	var runErr error
	switch phase.Stage {
	case models.StageHarvest:
		partitions, err := e.deps.Fetcher.Partitions(ctx, phase.Category)
		if err != nil {
			runErr = fmt.Errorf("failed to discover partitions for %s: %w", phase.Category, err)
			break
		}
		traversal := NewListTraversal(
			e.deps.Fetcher,
			e.deps.Storage.SummaryStorage(),
			e.deps.Checkpoints,
			e.deps.Pacer,
			e.deps.Ledger,
			e.deps.Session,
			log,
		)
		state, runErr = traversal.Run(ctx, phase, partitions, state)

	case models.StageDetail:
		master, err := e.deps.Storage.SummaryStorage().ListSummaries(phase.Category)
		if err != nil {
			runErr = fmt.Errorf("failed to load master list for %s: %w", phase.Category, err)
			break
		}
		traversal := NewDetailTraversal(
			e.deps.Fetcher,
			e.deps.Storage.DetailStorage(),
			e.deps.Checkpoints,
			e.deps.Pacer,
			e.deps.Ledger,
			e.deps.Session,
			e.deps.Force,
			log,
		)
		state, runErr = traversal.Run(ctx, phase, master, state)

	default:
		runErr = fmt.Errorf("unknown stage %q", phase.Stage)
	}

	if runErr != nil {
		log.Error().
			Str("phase", phase.ID()).
			Str("state", string(stateFatal)).
			Err(runErr).
			Msg("Phase aborted; checkpoint reflects only fully-persisted progress")
		return &PhaseResult{Phase: phase, State: state, Resumed: resume, Failures: e.deps.Ledger.SummaryForRun(state.RunID)}, runErr
	}

	result := &PhaseResult{
		Phase:    phase,
		State:    state,
		Resumed:  resume,
		Failures: e.deps.Ledger.SummaryForRun(state.RunID),
	}

	log.Info().
		Str("phase", phase.ID()).
		Str("state", string(stateComplete)).
		Int("processed", state.Counters.Processed).
		Int("partial", state.Counters.Partial).
		Int("errored", state.Counters.Errored).
		Int("total", state.Counters.Total).
		Int("ledger_entries", e.deps.Ledger.Count()).
		Msg("Phase complete")

	return result, nil
}
