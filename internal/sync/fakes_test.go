package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"app/internal/model"
	"app/internal/provider"
	"app/internal/repository"
)

// In-memory doubles for the repositories and the provider client. They model
// just enough behavior for the engine's control flow to be observable.

type memQuotaRepo struct {
	mu      sync.Mutex
	records []model.QuotaUsageRecord
	aggErr  error
}

var _ repository.QuotaRepository = (*memQuotaRepo)(nil)

func (m *memQuotaRepo) InsertUsage(ctx context.Context, rec *model.QuotaUsageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, *rec)
	return nil
}

func (m *memQuotaRepo) AggregateRange(ctx context.Context, prov model.Provider, start, end time.Time) (*model.QuotaAggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.aggErr != nil {
		return nil, m.aggErr
	}
	agg := &model.QuotaAggregate{PerOperation: make(map[model.QuotaOperation]model.OperationUsage)}
	for _, r := range m.records {
		if r.Provider != prov || r.CreatedAt.Before(start) || !r.CreatedAt.Before(end) {
			continue
		}
		u := agg.PerOperation[r.Operation]
		u.Units += r.Units
		u.Requests++
		agg.PerOperation[r.Operation] = u
		agg.TotalUnits += r.Units
		agg.TotalRequests++
		if !r.Success {
			agg.ErrorCount++
		}
	}
	return agg, nil
}

func (m *memQuotaRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []model.QuotaUsageRecord
	var deleted int64
	for _, r := range m.records {
		if r.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return deleted, nil
}

// seed appends units to today's ledger so quota checks see them.
func (m *memQuotaRepo) seed(at time.Time, units int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, model.QuotaUsageRecord{
		Provider:  model.ProviderYouTube,
		Operation: model.OpSearch,
		Units:     units,
		Success:   true,
		CreatedAt: at,
	})
}

func (m *memQuotaRepo) operations() []model.QuotaOperation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ops []model.QuotaOperation
	for _, r := range m.records {
		ops = append(ops, r.Operation)
	}
	return ops
}

type memSourceRepo struct {
	mu       sync.Mutex
	sources  map[string]*model.ContentSource
	eligible []model.ContentSource
	listErr  error
	updates  int
}

var _ repository.SourceRepository = (*memSourceRepo)(nil)

func (m *memSourceRepo) GetByID(ctx context.Context, sourceID string) (*model.ContentSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.sources[sourceID]
	if !ok {
		return nil, repository.ErrSourceNotFound
	}
	cp := *src
	return &cp, nil
}

func (m *memSourceRepo) ListEligible(ctx context.Context, platform model.Provider, limit int) ([]model.ContentSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	if len(m.eligible) > limit {
		return m.eligible[:limit], nil
	}
	return m.eligible, nil
}

func (m *memSourceRepo) UpdateAggregates(ctx context.Context, sourceID string, followers, items, views int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if src, ok := m.sources[sourceID]; ok {
		src.FollowerCount, src.ItemCount, src.TotalViews = followers, items, views
	}
	m.updates++
	return nil
}

type memStateRepo struct {
	mu     sync.Mutex
	states map[string]*model.SourceSyncState
	now    func() time.Time
}

var _ repository.SyncStateRepository = (*memStateRepo)(nil)

func newMemStateRepo(now func() time.Time) *memStateRepo {
	return &memStateRepo{states: make(map[string]*model.SourceSyncState), now: now}
}

func (m *memStateRepo) GetOrCreate(ctx context.Context, sourceID string) (*model.SourceSyncState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.states[sourceID]; !ok {
		m.states[sourceID] = &model.SourceSyncState{SourceID: sourceID, Phase: model.PhaseNeverSynced}
	}
	cp := *m.states[sourceID]
	return &cp, nil
}

func (m *memStateRepo) Get(ctx context.Context, sourceID string) (*model.SourceSyncState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[sourceID]
	if !ok {
		return nil, repository.ErrSyncStateNotFound
	}
	cp := *st
	return &cp, nil
}

func (m *memStateRepo) Update(ctx context.Context, state *model.SourceSyncState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.states[state.SourceID]
	if !ok {
		return repository.ErrSyncStateNotFound
	}
	cp := *state
	cp.InProgressAt = existing.InProgressAt // Update never touches the claim
	m.states[state.SourceID] = &cp
	return nil
}

func (m *memStateRepo) Claim(ctx context.Context, id string, staleBefore time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[id]
	if !ok {
		return false, nil
	}
	if st.InProgressAt != nil && !st.InProgressAt.Before(staleBefore) {
		return false, nil
	}
	now := m.now()
	st.InProgressAt = &now
	return true, nil
}

func (m *memStateRepo) Release(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.states[id]; ok {
		st.InProgressAt = nil
	}
	return nil
}

type memContentRepo struct {
	mu        sync.Mutex
	upsertErr error
	pages     [][]model.Content
	total     int
}

var _ repository.ContentRepository = (*memContentRepo)(nil)

func (m *memContentRepo) UpsertPage(ctx context.Context, contents []model.Content, categories []model.ContentCategory, stats []model.ContentStatistics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.pages = append(m.pages, contents)
	m.total += len(contents)
	return nil
}

// fakeClient is a scripted provider.Client. list is invoked for every
// ListSourceItems call with the options the engine computed.
type fakeClient struct {
	mu        sync.Mutex
	list      func(opts provider.ListOptions) (*provider.ItemPage, error)
	info      *provider.SourceInfo
	infoErr   error
	listCalls []provider.ListOptions
}

var _ provider.Client = (*fakeClient)(nil)

func (f *fakeClient) ListSourceItems(ctx context.Context, externalID string, opts provider.ListOptions) (*provider.ItemPage, error) {
	f.mu.Lock()
	f.listCalls = append(f.listCalls, opts)
	f.mu.Unlock()
	return f.list(opts)
}

func (f *fakeClient) GetSourceInfo(ctx context.Context, externalID string) (*provider.SourceInfo, error) {
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	if f.info != nil {
		return f.info, nil
	}
	return &provider.SourceInfo{}, nil
}

func (f *fakeClient) calls() []provider.ListOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]provider.ListOptions, len(f.listCalls))
	copy(out, f.listCalls)
	return out
}

func makeItems(n int, prefix string) []provider.Item {
	items := make([]provider.Item, n)
	for i := range items {
		items[i] = provider.Item{
			ExternalID:  fmt.Sprintf("%s%03d", prefix, i),
			Title:       "item",
			PublishedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		}
	}
	return items
}
