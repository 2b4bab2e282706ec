package quota

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"app/internal/model"
	"app/internal/pubsub"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// ErrExceeded signals that the daily quota budget cannot cover the requested
// spend. It is not a source fault: callers stop scheduling more work instead
// of marking sources failed.
var ErrExceeded = errors.New("quota_exceeded")

// DailyUsage is the aggregate ledger view for one provider and UTC day.
type DailyUsage struct {
	Date            time.Time                                     `json:"date"`
	TotalUnits      int                                           `json:"total_units"`
	TotalRequests   int                                           `json:"total_requests"`
	ErrorCount      int                                           `json:"error_count"`
	UsagePercentage float64                                       `json:"usage_percentage"`
	PerOperation    map[model.QuotaOperation]model.OperationUsage `json:"per_operation"`
	WarningLevel    model.WarningLevel                            `json:"warning_level"`
}

// SpendCheck is the guard's answer to "can I spend N units now?".
type SpendCheck struct {
	CanUse          bool    `json:"can_use"`
	RemainingQuota  int     `json:"remaining_quota"`
	UsagePercentage float64 `json:"usage_percentage"`
	HoursUntilReset float64 `json:"hours_until_reset"`
}

// Summary is the read-only quota status exposed to dashboards.
type Summary struct {
	Provider        model.Provider     `json:"provider"`
	DailyUsage      int                `json:"daily_usage"`
	DailyLimit      int                `json:"daily_limit"`
	UsagePercentage float64            `json:"usage_percentage"`
	RemainingQuota  int                `json:"remaining_quota"`
	WarningLevel    model.WarningLevel `json:"warning_level"`
	ErrorCount      int                `json:"error_count"`
}

// Tracker is the quota ledger and guard: it records every external call's
// cost and decides whether more budget may be spent today. Local tracking is
// an approximation of the provider-side counter and errs toward under-use:
// any internal failure makes the guard answer "no".
type Tracker struct {
	repo       repository.QuotaRepository
	policy     Policy
	alerts     pubsub.Publisher // optional; nil disables alert publishing
	alertTopic string
	logger     zerolog.Logger
	now        func() time.Time
}

// NewTracker creates a quota tracker with the given policy. alerts may be nil.
func NewTracker(repo repository.QuotaRepository, policy Policy, alerts pubsub.Publisher, alertTopic string, logger zerolog.Logger) *Tracker {
	return &Tracker{
		repo:       repo,
		policy:     policy,
		alerts:     alerts,
		alertTopic: alertTopic,
		logger:     logger.With().Str("component", "quota-tracker").Logger(),
		now:        time.Now,
	}
}

// Policy returns the tracker's immutable policy.
func (t *Tracker) Policy() Policy {
	return t.policy
}

// RecordUsage appends a ledger row for one call attempt. units <= 0 falls
// back to the policy cost table. Recording failures are logged and swallowed
// so the caller's main flow is never aborted by observability bookkeeping.
func (t *Tracker) RecordUsage(ctx context.Context, provider model.Provider, op model.QuotaOperation, units int, callErr error) {
	if units <= 0 {
		units = t.policy.Cost(op)
	}
	rec := &model.QuotaUsageRecord{
		Provider:  provider,
		Operation: op,
		Units:     units,
		Success:   callErr == nil,
		CreatedAt: t.now().UTC(),
	}
	if callErr != nil {
		rec.ErrorMessage = callErr.Error()
	}
	if err := t.repo.InsertUsage(ctx, rec); err != nil {
		t.logger.Warn().Err(err).Str("operation", string(op)).Msg("Failed to record quota usage")
		return
	}

	// Threshold check is observability, not control flow: it runs detached
	// from the caller's context and only ever logs or publishes.
	go t.checkThresholds(context.WithoutCancel(ctx), provider)
}

// DailyUsage aggregates all ledger rows for the provider on the UTC day
// containing date.
func (t *Tracker) DailyUsage(ctx context.Context, provider model.Provider, date time.Time) (*DailyUsage, error) {
	start := date.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)
	agg, err := t.repo.AggregateRange(ctx, provider, start, end)
	if err != nil {
		return nil, err
	}
	pct := float64(agg.TotalUnits) / float64(t.policy.DailyLimit) * 100
	return &DailyUsage{
		Date:            start,
		TotalUnits:      agg.TotalUnits,
		TotalRequests:   agg.TotalRequests,
		ErrorCount:      agg.ErrorCount,
		UsagePercentage: pct,
		PerOperation:    agg.PerOperation,
		WarningLevel:    t.policy.Level(pct),
	}, nil
}

// CanSpend answers whether requiredUnits fit in today's remaining budget.
// Fails closed: any error reading the ledger yields CanUse = false.
func (t *Tracker) CanSpend(ctx context.Context, provider model.Provider, requiredUnits int) SpendCheck {
	now := t.now().UTC()
	reset := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
	check := SpendCheck{HoursUntilReset: reset.Sub(now).Hours()}

	usage, err := t.DailyUsage(ctx, provider, now)
	if err != nil {
		t.logger.Error().Err(err).Str("provider", string(provider)).Msg("Quota check failed, denying spend")
		return check
	}
	check.RemainingQuota = t.policy.DailyLimit - usage.TotalUnits
	check.UsagePercentage = usage.UsagePercentage
	check.CanUse = check.RemainingQuota >= requiredUnits
	return check
}

// GetSummary returns the dashboard view of today's quota state.
func (t *Tracker) GetSummary(ctx context.Context, provider model.Provider) (*Summary, error) {
	usage, err := t.DailyUsage(ctx, provider, t.now())
	if err != nil {
		return nil, err
	}
	return &Summary{
		Provider:        provider,
		DailyUsage:      usage.TotalUnits,
		DailyLimit:      t.policy.DailyLimit,
		UsagePercentage: usage.UsagePercentage,
		RemainingQuota:  t.policy.DailyLimit - usage.TotalUnits,
		WarningLevel:    usage.WarningLevel,
		ErrorCount:      usage.ErrorCount,
	}, nil
}

func (t *Tracker) checkThresholds(ctx context.Context, provider model.Provider) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	usage, err := t.DailyUsage(ctx, provider, t.now())
	if err != nil {
		t.logger.Warn().Err(err).Msg("Threshold check skipped: aggregation failed")
		return
	}
	switch usage.WarningLevel {
	case model.WarningLevelCritical:
		t.logger.Error().
			Str("provider", string(provider)).
			Int("total_units", usage.TotalUnits).
			Float64("usage_pct", usage.UsagePercentage).
			Msg("Quota usage critical")
	case model.WarningLevelWarning:
		t.logger.Warn().
			Str("provider", string(provider)).
			Int("total_units", usage.TotalUnits).
			Float64("usage_pct", usage.UsagePercentage).
			Msg("Quota usage above warning threshold")
	default:
		return
	}

	if t.alerts == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"provider":     provider,
		"level":        usage.WarningLevel,
		"total_units":  usage.TotalUnits,
		"daily_limit":  t.policy.DailyLimit,
		"usage_pct":    usage.UsagePercentage,
		"generated_at": t.now().UTC(),
	})
	if err != nil {
		return
	}
	if _, err := t.alerts.Publish(ctx, t.alertTopic, payload); err != nil {
		t.logger.Warn().Err(err).Str("topic", t.alertTopic).Msg("Failed to publish quota alert")
	}
}
