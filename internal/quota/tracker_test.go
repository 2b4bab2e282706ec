package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// memQuotaRepo is an in-memory ledger used to exercise the tracker without a
// database.
type memQuotaRepo struct {
	mu        sync.Mutex
	records   []model.QuotaUsageRecord
	insertErr error
	aggErr    error
}

var _ repository.QuotaRepository = (*memQuotaRepo)(nil)

func (m *memQuotaRepo) InsertUsage(ctx context.Context, rec *model.QuotaUsageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.records = append(m.records, *rec)
	return nil
}

func (m *memQuotaRepo) AggregateRange(ctx context.Context, provider model.Provider, start, end time.Time) (*model.QuotaAggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.aggErr != nil {
		return nil, m.aggErr
	}
	agg := &model.QuotaAggregate{PerOperation: make(map[model.QuotaOperation]model.OperationUsage)}
	for _, r := range m.records {
		if r.Provider != provider || r.CreatedAt.Before(start) || !r.CreatedAt.Before(end) {
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

func (m *memQuotaRepo) ledger() []model.QuotaUsageRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.QuotaUsageRecord, len(m.records))
	copy(out, m.records)
	return out
}

var testTime = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func newTestTracker(repo repository.QuotaRepository) *Tracker {
	tr := NewTracker(repo, testPolicy(), nil, "", zerolog.Nop())
	tr.now = func() time.Time { return testTime }
	return tr
}

func TestRecordUsageFallsBackToPolicyCost(t *testing.T) {
	repo := &memQuotaRepo{}
	tr := newTestTracker(repo)

	tr.RecordUsage(context.Background(), model.ProviderYouTube, model.OpSearch, 0, nil)
	tr.RecordUsage(context.Background(), model.ProviderYouTube, model.OpListItems, 7, nil)

	recs := repo.ledger()
	if len(recs) != 2 {
		t.Fatalf("expected 2 ledger rows, got %d", len(recs))
	}
	if recs[0].Units != 100 {
		t.Errorf("search units = %d, want policy cost 100", recs[0].Units)
	}
	if recs[1].Units != 7 {
		t.Errorf("explicit units = %d, want 7", recs[1].Units)
	}
}

func TestRecordUsageRetainsErrors(t *testing.T) {
	repo := &memQuotaRepo{}
	tr := newTestTracker(repo)

	callErr := errors.New("upstream 500")
	tr.RecordUsage(context.Background(), model.ProviderYouTube, model.OpListItems, 0, callErr)

	recs := repo.ledger()
	if len(recs) != 1 {
		t.Fatalf("expected 1 ledger row, got %d", len(recs))
	}
	if recs[0].Success {
		t.Error("failed call recorded as success")
	}
	if recs[0].ErrorMessage != "upstream 500" {
		t.Errorf("error message = %q", recs[0].ErrorMessage)
	}
	// Failed calls still consume budget.
	if recs[0].Units != 1 {
		t.Errorf("failed call units = %d, want 1", recs[0].Units)
	}
}

func TestRecordUsageSwallowsInsertFailure(t *testing.T) {
	repo := &memQuotaRepo{insertErr: errors.New("db down")}
	tr := newTestTracker(repo)

	// Must not panic or propagate: bookkeeping never aborts the caller.
	tr.RecordUsage(context.Background(), model.ProviderYouTube, model.OpListItems, 0, nil)
}

func TestDailyUsageSumsCurrentDayOnly(t *testing.T) {
	repo := &memQuotaRepo{}
	tr := newTestTracker(repo)

	yesterday := testTime.Add(-24 * time.Hour)
	repo.records = []model.QuotaUsageRecord{
		{Provider: model.ProviderYouTube, Operation: model.OpSearch, Units: 100, Success: true, CreatedAt: testTime},
		{Provider: model.ProviderYouTube, Operation: model.OpListItems, Units: 1, Success: true, CreatedAt: testTime},
		{Provider: model.ProviderYouTube, Operation: model.OpItemDetails, Units: 1, Success: false, CreatedAt: testTime},
		{Provider: model.ProviderYouTube, Operation: model.OpSearch, Units: 100, Success: true, CreatedAt: yesterday},
	}

	usage, err := tr.DailyUsage(context.Background(), model.ProviderYouTube, testTime)
	if err != nil {
		t.Fatalf("DailyUsage: %v", err)
	}
	if usage.TotalUnits != 102 {
		t.Errorf("TotalUnits = %d, want 102", usage.TotalUnits)
	}
	if usage.TotalRequests != 3 {
		t.Errorf("TotalRequests = %d, want 3", usage.TotalRequests)
	}
	if usage.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", usage.ErrorCount)
	}
	if usage.WarningLevel != model.WarningLevelSafe {
		t.Errorf("WarningLevel = %s, want safe", usage.WarningLevel)
	}
	if got := usage.PerOperation[model.OpSearch].Units; got != 100 {
		t.Errorf("search units = %d, want 100", got)
	}
}

func TestCanSpendAtCriticalUsage(t *testing.T) {
	repo := &memQuotaRepo{}
	tr := newTestTracker(repo)

	// 9600 of 10000 used: usage is critical and only 400 units remain.
	repo.records = []model.QuotaUsageRecord{
		{Provider: model.ProviderYouTube, Operation: model.OpSearch, Units: 9600, Success: true, CreatedAt: testTime},
	}

	usage, err := tr.DailyUsage(context.Background(), model.ProviderYouTube, testTime)
	if err != nil {
		t.Fatalf("DailyUsage: %v", err)
	}
	if usage.WarningLevel != model.WarningLevelCritical {
		t.Errorf("WarningLevel = %s, want critical", usage.WarningLevel)
	}

	check := tr.CanSpend(context.Background(), model.ProviderYouTube, 500)
	if check.CanUse {
		t.Error("CanSpend(500) = true with only 400 units remaining")
	}
	if check.RemainingQuota != 400 {
		t.Errorf("RemainingQuota = %d, want 400", check.RemainingQuota)
	}

	check = tr.CanSpend(context.Background(), model.ProviderYouTube, 400)
	if !check.CanUse {
		t.Error("CanSpend(400) = false with exactly 400 units remaining")
	}
}

func TestCanSpendFailsClosed(t *testing.T) {
	repo := &memQuotaRepo{aggErr: errors.New("db down")}
	tr := newTestTracker(repo)

	check := tr.CanSpend(context.Background(), model.ProviderYouTube, 1)
	if check.CanUse {
		t.Error("CanSpend must deny when the ledger is unreadable")
	}
}

func TestCanSpendHoursUntilReset(t *testing.T) {
	repo := &memQuotaRepo{}
	tr := newTestTracker(repo)

	// testTime is 10:00 UTC, so the next UTC midnight is 14 hours away.
	check := tr.CanSpend(context.Background(), model.ProviderYouTube, 1)
	if check.HoursUntilReset != 14 {
		t.Errorf("HoursUntilReset = %.2f, want 14", check.HoursUntilReset)
	}
}

func TestGetSummary(t *testing.T) {
	repo := &memQuotaRepo{}
	tr := newTestTracker(repo)
	repo.records = []model.QuotaUsageRecord{
		{Provider: model.ProviderYouTube, Operation: model.OpSearch, Units: 8500, Success: true, CreatedAt: testTime},
	}

	sum, err := tr.GetSummary(context.Background(), model.ProviderYouTube)
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if sum.DailyUsage != 8500 || sum.RemainingQuota != 1500 {
		t.Errorf("usage/remaining = %d/%d, want 8500/1500", sum.DailyUsage, sum.RemainingQuota)
	}
	if sum.WarningLevel != model.WarningLevelWarning {
		t.Errorf("WarningLevel = %s, want warning", sum.WarningLevel)
	}
	if sum.UsagePercentage != 85 {
		t.Errorf("UsagePercentage = %.1f, want 85", sum.UsagePercentage)
	}
}
