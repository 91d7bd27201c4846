package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/messis/internal/interfaces"
	"github.com/ternarybob/messis/internal/models"
)

// DetailTraversal consumes a category's master list and deep-scrapes each
// unvisited record's detail page into a full detail record. Section failures
// are isolated: a record is emitted with whatever sections succeeded.
type DetailTraversal struct {
	fetcher     interfaces.PageFetcher
	store       interfaces.DetailStorage
	checkpoints interfaces.CheckpointStore
	pacer       *Pacer
	ledger      interfaces.ErrorLedger
	session     interfaces.Session
	logger      arbor.ILogger

	// force ignores the completed set and replaces records wholesale.
	force bool
}

// NewDetailTraversal wires the detail stage's collaborators.
func NewDetailTraversal(
	fetcher interfaces.PageFetcher,
	store interfaces.DetailStorage,
	checkpoints interfaces.CheckpointStore,
	pacer *Pacer,
	ledger interfaces.ErrorLedger,
	session interfaces.Session,
	force bool,
	logger arbor.ILogger,
) *DetailTraversal {
	return &DetailTraversal{
		fetcher:     fetcher,
		store:       store,
		checkpoints: checkpoints,
		pacer:       pacer,
		ledger:      ledger,
		session:     session,
		force:       force,
		logger:      logger,
	}
}

// Run processes the master list in order, resuming after the state's item
// cursor. A missing master list is a fatal configuration error, not a
// per-item failure. The returned error is always fatal.
func (t *DetailTraversal) Run(ctx context.Context, phase models.Phase, master []*models.SummaryRecord, state *models.CheckpointState) (*models.CheckpointState, error) {
	if len(master) == 0 {
		return state, fmt.Errorf("detail traversal for %s: %w", phase.Category, ErrMissingPrerequisite)
	}

	// Master-list order is the processing order.
	ordered := make([]*models.SummaryRecord, len(master))
	copy(ordered, master)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	state.Counters.Total = len(ordered)
	start := state.Cursor.ItemIdx + 1
	if t.force {
		// A forced pass replays the whole master list; prior progress
		// counters describe records this pass is about to overwrite.
		start = 0
		state.Counters.Processed = 0
		state.Counters.Partial = 0
		state.Counters.Errored = 0
	}
	processedThisRun := 0

	t.logger.Info().
		Str("phase", phase.ID()).
		Int("total", len(ordered)).
		Int("start_index", start).
		Bool("force", t.force).
		Msg("Starting detail traversal")

	for i := start; i < len(ordered); i++ {
		rec := ordered[i]
		id := rec.Identity()

		// Cross-run dedup happens before any fetch: completed identities are
		// never re-fetched unless a force re-scrape was requested.
		if !t.force && state.IsCompleted(id) {
			state.Cursor.ItemIdx = i
			continue
		}

		if rec.DetailURL == "" {
			t.ledger.Record(models.ErrorEntry{
				Phase:    phase.ID(),
				RunID:    state.RunID,
				Identity: id.Key(),
				Reason:   models.ReasonNoDetailURL,
				Message:  "summary record has no detail locator",
			})
			state.Counters.Errored++
			state.Cursor.ItemIdx = i
			if serr := t.checkpoints.Save(state); serr != nil {
				return state, fmt.Errorf("%w: %v", ErrCheckpointSave, serr)
			}
			continue
		}

		if err := t.pacer.BeforeRequest(ctx); err != nil {
			return state, err
		}

		attempts := 0
		var sections map[string]models.SectionResult
		err := t.pacer.WithRetry(ctx, func() error {
			attempts++
			res, ferr := t.fetcher.FetchDetailPage(ctx, phase.Category, rec.DetailURL)
			if ferr != nil {
				return ferr
			}
			sections = res
			return nil
		})

		if err != nil {
			if ctx.Err() != nil {
				return state, ctx.Err()
			}
			if !t.session.IsValid(ctx) {
				return state, fmt.Errorf("detail fetch for %s: %w", id.Key(), ErrSessionInvalid)
			}

			// Full-item failure: the identity stays incomplete and remains
			// eligible for retry on the next resumed run.
			t.ledger.Record(models.ErrorEntry{
				Phase:      phase.ID(),
				RunID:      state.RunID,
				Identity:   id.Key(),
				Reason:     models.ReasonFetchFailed,
				Message:    err.Error(),
				RetryCount: attempts,
			})
			state.Counters.Errored++
			state.Cursor.ItemIdx = i
			if serr := t.checkpoints.Save(state); serr != nil {
				return state, fmt.Errorf("%w: %v", ErrCheckpointSave, serr)
			}
			continue
		}

		record := t.assembleRecord(phase, state.RunID, rec, sections)

		if serr := t.store.SaveDetail(record); serr != nil {
			return state, fmt.Errorf("%w: %v", ErrStoreWrite, serr)
		}

		// Write-record-before-advance-cursor: the record is durable before
		// the identity is admitted as complete.
		state.MarkCompleted(id)
		state.Counters.Processed++
		if len(record.PartialSections) > 0 {
			state.Counters.Partial++
		}
		state.Cursor.ItemIdx = i
		if serr := t.checkpoints.Save(state); serr != nil {
			return state, fmt.Errorf("%w: %v", ErrCheckpointSave, serr)
		}

		processedThisRun++
		t.logger.Info().
			Str("identity", id.Key()).
			Int("sections", len(record.Sections)).
			Int("failed_sections", len(record.PartialSections)).
			Int("processed", state.Counters.Processed).
			Int("total", state.Counters.Total).
			Msg("Detail record extracted")

		if err := t.pacer.OnBatchBoundary(ctx, processedThisRun); err != nil {
			return state, err
		}
	}

	t.logger.Info().
		Str("phase", phase.ID()).
		Int("processed", state.Counters.Processed).
		Int("partial", state.Counters.Partial).
		Int("errored", state.Counters.Errored).
		Msg("Detail traversal complete")

	return state, nil
}

// assembleRecord builds the detail record from the per-section results.
// Failing sections are ledgered individually and listed on the record; they
// never discard the sections that succeeded.
func (t *DetailTraversal) assembleRecord(phase models.Phase, runID string, rec *models.SummaryRecord, results map[string]models.SectionResult) *models.DetailRecord {
	record := &models.DetailRecord{
		Meta: models.RecordMeta{
			Category:  rec.Category,
			Partition: rec.Partition,
			RecordID:  rec.RecordID,
			Name:      rec.Fields["Name"],
			SourceURL: rec.DetailURL,
			ScrapedAt: time.Now(),
		},
		Sections: make(models.SectionMap, len(results)),
	}

	// Deterministic section order for ledger entries.
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		res := results[name]
		if res.Err != nil {
			t.ledger.Record(models.ErrorEntry{
				Phase:    phase.ID(),
				RunID:    runID,
				Identity: record.Identity().Key(),
				Section:  name,
				Reason:   models.ReasonSectionFailed,
				Message:  res.Err.Error(),
			})
			record.PartialSections = append(record.PartialSections, name)
			continue
		}
		if res.Payload != nil {
			record.Sections[name] = res.Payload
		}
	}

	return record
}
