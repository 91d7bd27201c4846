package ledger

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/messis/internal/models"
)

func TestLedger_OpenMissingStartsEmpty(t *testing.T) {
	l, err := Open(t.TempDir(), "experts-harvest", arbor.NewLogger())
	require.NoError(t, err)
	assert.Zero(t, l.Count())
	assert.Empty(t, l.Summary())
}

func TestLedger_RecordAssignsIDAndTimestamp(t *testing.T) {
	l, err := Open(t.TempDir(), "experts-harvest", arbor.NewLogger())
	require.NoError(t, err)

	l.Record(models.ErrorEntry{
		Phase:    "experts-harvest",
		Identity: "Lakehead|page:3",
		Reason:   models.ReasonPageFailed,
		Message:  "render timed out",
	})

	entries := l.Entries()
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].ID)
	assert.False(t, entries[0].Timestamp.IsZero())
}

func TestLedger_ReopenLoadsPersistedEntries(t *testing.T) {
	dir := t.TempDir()

	l, err := Open(dir, "facilities-detail", arbor.NewLogger())
	require.NoError(t, err)
	l.Record(models.ErrorEntry{Reason: models.ReasonFetchFailed, Identity: "Lakehead|F0001"})
	l.Record(models.ErrorEntry{Reason: models.ReasonSectionFailed, Identity: "Lakehead|F0002", Section: "Contacts"})

	reopened, err := Open(dir, "facilities-detail", arbor.NewLogger())
	require.NoError(t, err)
	require.Equal(t, 2, reopened.Count())

	entries := reopened.Entries()
	assert.Equal(t, "Lakehead|F0001", entries[0].Identity)
	assert.Equal(t, "Contacts", entries[1].Section)
}

func TestLedger_PhasesAreIndependent(t *testing.T) {
	dir := t.TempDir()

	harvest, err := Open(dir, "experts-harvest", arbor.NewLogger())
	require.NoError(t, err)
	harvest.Record(models.ErrorEntry{Reason: models.ReasonPageFailed})

	detail, err := Open(dir, "experts-detail", arbor.NewLogger())
	require.NoError(t, err)
	assert.Zero(t, detail.Count())
}

func TestLedger_Summary(t *testing.T) {
	l, err := Open(t.TempDir(), "organizations-detail", arbor.NewLogger())
	require.NoError(t, err)

	l.Record(models.ErrorEntry{Reason: models.ReasonFetchFailed})
	l.Record(models.ErrorEntry{Reason: models.ReasonFetchFailed})
	l.Record(models.ErrorEntry{Reason: models.ReasonNoDetailURL})

	summary := l.Summary()
	assert.Equal(t, 2, summary[models.ReasonFetchFailed])
	assert.Equal(t, 1, summary[models.ReasonNoDetailURL])
	assert.Equal(t, 3, l.Count())
}

func TestLedger_SummaryForRunExcludesOtherRuns(t *testing.T) {
	l, err := Open(t.TempDir(), "experts-detail", arbor.NewLogger())
	require.NoError(t, err)

	l.Record(models.ErrorEntry{RunID: "run_one", Reason: models.ReasonFetchFailed})
	l.Record(models.ErrorEntry{RunID: "run_one", Reason: models.ReasonSectionFailed})
	l.Record(models.ErrorEntry{RunID: "run_two", Reason: models.ReasonFetchFailed})

	summary := l.SummaryForRun("run_two")
	assert.Equal(t, 1, summary[models.ReasonFetchFailed])
	assert.Zero(t, summary[models.ReasonSectionFailed])
	assert.Equal(t, 3, l.Count(), "the full ledger still spans runs")
}

func TestLedger_FlushLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()

	l, err := Open(dir, "experts-harvest", arbor.NewLogger())
	require.NoError(t, err)
	l.Record(models.ErrorEntry{Reason: models.ReasonPageFailed})
	l.Record(models.ErrorEntry{Reason: models.ReasonPageFailed})

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "errors_experts-harvest.json", entries[0].Name())
}
