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

// maxConsecutivePageFailures bounds how many failed pages in a row are
// tolerated before a partition is abandoned, so one dead partition never
// blocks the traversal indefinitely.
const maxConsecutivePageFailures = 3

// ListTraversal drives the paginated harvest of summary records across a
// category's partitions. Progress is checkpointed after every page; the
// traversal is restartable from any checkpoint cursor.
type ListTraversal struct {
	fetcher     interfaces.PageFetcher
	store       interfaces.SummaryStorage
	checkpoints interfaces.CheckpointStore
	pacer       *Pacer
	ledger      interfaces.ErrorLedger
	session     interfaces.Session
	logger      arbor.ILogger
}

// NewListTraversal wires the harvest stage's collaborators.
func NewListTraversal(
	fetcher interfaces.PageFetcher,
	store interfaces.SummaryStorage,
	checkpoints interfaces.CheckpointStore,
	pacer *Pacer,
	ledger interfaces.ErrorLedger,
	session interfaces.Session,
	logger arbor.ILogger,
) *ListTraversal {
	return &ListTraversal{
		fetcher:     fetcher,
		store:       store,
		checkpoints: checkpoints,
		pacer:       pacer,
		ledger:      ledger,
		session:     session,
		logger:      logger,
	}
}

// Run harvests every partition in deterministic order, resuming from the
// state's cursor. The returned state is the final checkpoint; a non-nil
// error is always fatal (per-page failures go to the ledger instead).
func (t *ListTraversal) Run(ctx context.Context, phase models.Phase, partitions []string, state *models.CheckpointState) (*models.CheckpointState, error) {
	// Stable partition order keeps cursor positions reproducible across runs.
	sorted := make([]string, len(partitions))
	copy(sorted, partitions)
	sort.Strings(sorted)

	dedup := NewDeduplicator(state.Completed)
	position := state.Counters.Processed

	resumePartition := state.Cursor.PartitionIdx
	resumePage := state.Cursor.PageIdx

	t.logger.Info().
		Str("phase", phase.ID()).
		Int("partitions", len(sorted)).
		Int("resume_partition", resumePartition).
		Int("resume_page", resumePage).
		Msg("Starting list harvest")

	for pi := resumePartition; pi < len(sorted); pi++ {
		partition := sorted[pi]

		startPage := 0
		if pi == resumePartition && resumePage >= 0 {
			startPage = resumePage + 1
		}
		// Pages completed before startPage count as successful for the
		// zero-new-rows exhaustion rule.
		successfulPages := startPage
		consecutiveFailures := 0

		for pageIdx := startPage; ; pageIdx++ {
			if err := t.pacer.BeforeRequest(ctx); err != nil {
				return state, err
			}

			attempts := 0
			var page *models.ListPage
			err := t.pacer.WithRetry(ctx, func() error {
				attempts++
				p, ferr := t.fetcher.FetchListPage(ctx, phase.Category, partition, pageIdx)
				if ferr != nil {
					return ferr
				}
				page = p
				return nil
			})

			if err != nil {
				if ctx.Err() != nil {
					return state, ctx.Err()
				}
				if !t.session.IsValid(ctx) {
					return state, fmt.Errorf("list fetch for %q page %d: %w", partition, pageIdx, ErrSessionInvalid)
				}

				// Terminal page failure: ledger it and advance past the page.
				t.ledger.Record(models.ErrorEntry{
					Phase:      phase.ID(),
					RunID:      state.RunID,
					Identity:   fmt.Sprintf("%s/page-%d", partition, pageIdx),
					Reason:     models.ReasonPageFailed,
					Message:    err.Error(),
					RetryCount: attempts,
				})
				state.Counters.Errored++
				state.Cursor = models.Cursor{PartitionIdx: pi, PageIdx: pageIdx, ItemIdx: -1}
				if serr := t.checkpoints.Save(state); serr != nil {
					return state, fmt.Errorf("%w: %v", ErrCheckpointSave, serr)
				}

				consecutiveFailures++
				if consecutiveFailures >= maxConsecutivePageFailures {
					t.ledger.Record(models.ErrorEntry{
						Phase:    phase.ID(),
						RunID:    state.RunID,
						Identity: partition,
						Reason:   models.ReasonPartitionAbandoned,
						Message:  fmt.Sprintf("abandoned after %d consecutive page failures", consecutiveFailures),
					})
					t.logger.Warn().
						Str("partition", partition).
						Int("failures", consecutiveFailures).
						Msg("Abandoning partition")
					break
				}
				continue
			}
			consecutiveFailures = 0

			if successfulPages == 0 && page.TotalItems > 0 {
				state.Counters.Total += page.TotalItems
			}

			records := t.collectNewRecords(phase.Category, partition, page.Rows, dedup, &position)

			if len(records) > 0 {
				if serr := t.store.SaveSummaries(records); serr != nil {
					return state, fmt.Errorf("%w: %v", ErrStoreWrite, serr)
				}
				for _, rec := range records {
					state.MarkCompleted(rec.Identity())
				}
				state.Counters.Processed += len(records)
			}

			// Record-before-cursor ordering: the page's rows are durable
			// before the cursor admits the page as done.
			state.Cursor = models.Cursor{PartitionIdx: pi, PageIdx: pageIdx, ItemIdx: -1}
			if serr := t.checkpoints.Save(state); serr != nil {
				return state, fmt.Errorf("%w: %v", ErrCheckpointSave, serr)
			}

			t.logger.Info().
				Str("partition", partition).
				Int("page", pageIdx).
				Int("new_rows", len(records)).
				Int("processed", state.Counters.Processed).
				Msg("Page harvested")

			exhausted := !page.HasNextPage || (len(records) == 0 && successfulPages > 0)
			successfulPages++
			if exhausted {
				break
			}
		}

		// Partition complete: point the cursor at the next partition with no
		// pages done yet.
		state.Cursor = models.Cursor{PartitionIdx: pi + 1, PageIdx: -1, ItemIdx: -1}
		if serr := t.checkpoints.Save(state); serr != nil {
			return state, fmt.Errorf("%w: %v", ErrCheckpointSave, serr)
		}
	}

	t.logger.Info().
		Str("phase", phase.ID()).
		Int("processed", state.Counters.Processed).
		Int("errored", state.Counters.Errored).
		Msg("List harvest complete")

	return state, nil
}

// collectNewRecords resolves duplicates within the page (last-seen wins, as
// a re-rendering table can repeat rows) and then admits survivors through
// the cross-run keep-first deduplicator.
func (t *ListTraversal) collectNewRecords(category models.Category, partition string, rows []models.Row, dedup *Deduplicator, position *int) []*models.SummaryRecord {
	type candidate struct {
		row models.Row
		id  models.Identity
	}

	ordered := make([]candidate, 0, len(rows))
	index := make(map[string]int, len(rows))

	for _, row := range rows {
		rec := models.SummaryRecord{Partition: partition, DetailURL: row.DetailURL, RecordID: row.RecordID}
		id := rec.Identity()
		if id.IsZero() {
			t.logger.Debug().Str("partition", partition).Msg("Skipping row with no identity")
			continue
		}
		if at, dup := index[id.Key()]; dup {
			ordered[at] = candidate{row: row, id: id}
			continue
		}
		index[id.Key()] = len(ordered)
		ordered = append(ordered, candidate{row: row, id: id})
	}

	records := make([]*models.SummaryRecord, 0, len(ordered))
	for _, c := range ordered {
		if dedup.Admit(c.id) != Accepted {
			continue
		}
		records = append(records, &models.SummaryRecord{
			Category:    category,
			Partition:   partition,
			Fields:      c.row.Fields,
			DetailURL:   c.row.DetailURL,
			RecordID:    c.row.RecordID,
			Position:    *position,
			HarvestedAt: time.Now(),
		})
		*position++
	}
	return records
}
