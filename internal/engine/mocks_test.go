package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/messis/internal/models"
)

func testLogger() arbor.ILogger {
	return arbor.NewLogger()
}

func testPacer() *Pacer {
	policy := &RetryPolicy{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        2 * time.Millisecond,
		BackoffMultiplier: 1.0,
	}
	return NewPacer(PacingConfig{RequestInterval: time.Nanosecond}, policy, testLogger())
}

// Mock Session
type mockSession struct {
	valid bool
}

func (s *mockSession) IsValid(ctx context.Context) bool {
	return s.valid
}

// Mock CheckpointStore
type mockCheckpoints struct {
	states map[string]*models.CheckpointState
	saves  int
	// failOnSave makes Save fail on the nth call (1-based), 0 = never.
	failOnSave int
}

func newMockCheckpoints() *mockCheckpoints {
	return &mockCheckpoints{states: make(map[string]*models.CheckpointState)}
}

func cloneState(state *models.CheckpointState) *models.CheckpointState {
	clone := *state
	clone.Completed = make(map[string]bool, len(state.Completed))
	for k, v := range state.Completed {
		clone.Completed[k] = v
	}
	return &clone
}

func (m *mockCheckpoints) Load(phaseID string) (*models.CheckpointState, error) {
	if state, ok := m.states[phaseID]; ok {
		return cloneState(state), nil
	}
	return models.NewCheckpointState(phaseID), nil
}

func (m *mockCheckpoints) Save(state *models.CheckpointState) error {
	m.saves++
	if m.failOnSave > 0 && m.saves >= m.failOnSave {
		return fmt.Errorf("disk full")
	}
	m.states[state.PhaseID] = cloneState(state)
	return nil
}

func (m *mockCheckpoints) Exists(phaseID string) bool {
	_, ok := m.states[phaseID]
	return ok
}

// Mock SummaryStorage
type mockSummaryStore struct {
	mu      sync.Mutex
	records map[string]*models.SummaryRecord
	order   []string
	saveErr error
}

func newMockSummaryStore() *mockSummaryStore {
	return &mockSummaryStore{records: make(map[string]*models.SummaryRecord)}
}

func (m *mockSummaryStore) SaveSummaries(records []*models.SummaryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	for _, rec := range records {
		key := rec.Identity().Key()
		if _, ok := m.records[key]; !ok {
			m.order = append(m.order, key)
		}
		m.records[key] = rec
	}
	return nil
}

func (m *mockSummaryStore) ListSummaries(category models.Category) ([]*models.SummaryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.SummaryRecord
	for _, key := range m.order {
		if m.records[key].Category == category {
			out = append(out, m.records[key])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *mockSummaryStore) CountSummaries(category models.Category) (int, error) {
	recs, _ := m.ListSummaries(category)
	return len(recs), nil
}

// Mock DetailStorage
type mockDetailStore struct {
	records map[string]*models.DetailRecord
	order   []string
	saveErr error
}

func newMockDetailStore() *mockDetailStore {
	return &mockDetailStore{records: make(map[string]*models.DetailRecord)}
}

func (m *mockDetailStore) SaveDetail(record *models.DetailRecord) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	key := record.Identity().Key()
	if _, ok := m.records[key]; !ok {
		m.order = append(m.order, key)
	}
	m.records[key] = record
	return nil
}

func (m *mockDetailStore) GetDetail(category models.Category, id models.Identity) (*models.DetailRecord, error) {
	if rec, ok := m.records[id.Key()]; ok {
		return rec, nil
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockDetailStore) ListDetails(category models.Category) ([]*models.DetailRecord, error) {
	var out []*models.DetailRecord
	for _, key := range m.order {
		if m.records[key].Meta.Category == category {
			out = append(out, m.records[key])
		}
	}
	return out, nil
}

func (m *mockDetailStore) CountDetails(category models.Category) (int, error) {
	recs, _ := m.ListDetails(category)
	return len(recs), nil
}

// Mock ErrorLedger
type mockLedger struct {
	entries []models.ErrorEntry
}

func (m *mockLedger) Record(entry models.ErrorEntry) {
	m.entries = append(m.entries, entry)
}

func (m *mockLedger) Summary() map[models.FailureReason]int {
	out := make(map[models.FailureReason]int)
	for _, e := range m.entries {
		out[e.Reason]++
	}
	return out
}

func (m *mockLedger) SummaryForRun(runID string) map[models.FailureReason]int {
	out := make(map[models.FailureReason]int)
	for _, e := range m.entries {
		if e.RunID == runID {
			out[e.Reason]++
		}
	}
	return out
}

func (m *mockLedger) Count() int {
	return len(m.entries)
}

func (m *mockLedger) byReason(reason models.FailureReason) []models.ErrorEntry {
	var out []models.ErrorEntry
	for _, e := range m.entries {
		if e.Reason == reason {
			out = append(out, e)
		}
	}
	return out
}

// Mock PageFetcher with scripted pages, details and failure countdowns.
type mockFetcher struct {
	partitions []string
	// pages maps partition -> pageIdx -> page.
	pages map[string]map[int]*models.ListPage
	// pageErrs maps "partition/pageIdx" to a persistent error.
	pageErrs map[string]error
	// pageFlaky maps "partition/pageIdx" to a countdown of transient
	// failures served before success.
	pageFlaky map[string]int
	listCalls map[string]int

	// details maps url -> section results.
	details map[string]map[string]models.SectionResult
	// detailErrs maps url to a persistent error.
	detailErrs map[string]error
	// detailFlaky maps url to a countdown of transient failures.
	detailFlaky map[string]int
	detailCalls map[string]int
}

func newMockFetcher() *mockFetcher {
	return &mockFetcher{
		pages:       make(map[string]map[int]*models.ListPage),
		pageErrs:    make(map[string]error),
		pageFlaky:   make(map[string]int),
		listCalls:   make(map[string]int),
		details:     make(map[string]map[string]models.SectionResult),
		detailErrs:  make(map[string]error),
		detailFlaky: make(map[string]int),
		detailCalls: make(map[string]int),
	}
}

func (f *mockFetcher) addPage(partition string, pageIdx int, page *models.ListPage) {
	if f.pages[partition] == nil {
		f.pages[partition] = make(map[int]*models.ListPage)
	}
	f.pages[partition][pageIdx] = page
}

func pageKey(partition string, pageIdx int) string {
	return fmt.Sprintf("%s/%d", partition, pageIdx)
}

func (f *mockFetcher) Partitions(ctx context.Context, category models.Category) ([]string, error) {
	return f.partitions, nil
}

func (f *mockFetcher) FetchListPage(ctx context.Context, category models.Category, partition string, pageIdx int) (*models.ListPage, error) {
	key := pageKey(partition, pageIdx)
	f.listCalls[key]++

	if left := f.pageFlaky[key]; left > 0 {
		f.pageFlaky[key]--
		return nil, Transient(fmt.Errorf("flaky page %s", key))
	}
	if err := f.pageErrs[key]; err != nil {
		return nil, err
	}
	if page, ok := f.pages[partition][pageIdx]; ok {
		return page, nil
	}
	return &models.ListPage{HasNextPage: false}, nil
}

func (f *mockFetcher) FetchDetailPage(ctx context.Context, category models.Category, url string) (map[string]models.SectionResult, error) {
	f.detailCalls[url]++

	if left := f.detailFlaky[url]; left > 0 {
		f.detailFlaky[url]--
		return nil, Transient(fmt.Errorf("flaky detail %s", url))
	}
	if err := f.detailErrs[url]; err != nil {
		return nil, err
	}
	if sections, ok := f.details[url]; ok {
		return sections, nil
	}
	return map[string]models.SectionResult{}, nil
}

// listRows builds n sequential rows with stable IDs starting at first.
func listRows(first, n int) []models.Row {
	rows := make([]models.Row, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("E%04d", first+i)
		rows = append(rows, models.Row{
			Fields:    map[string]string{"Name": "Expert " + id},
			RecordID:  id,
			DetailURL: "https://portal.test/ExpertAdmin/Details/" + id,
		})
	}
	return rows
}
