package sync

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"app/internal/model"
	"app/internal/pubsub"
	"app/internal/quota"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// SchedulerConfig holds the scheduling policy, resolved at the composition
// root so interval and batch size are explicit and testable.
type SchedulerConfig struct {
	Provider  model.Provider
	Interval  time.Duration
	BatchSize int
}

// TickSummary reports the outcome of one scheduler tick.
type TickSummary struct {
	Provider model.Provider `json:"provider"`
	Total    int            `json:"total"`
	Synced   int            `json:"synced"`
	Failed   int            `json:"failed"`
	Skipped  int            `json:"skipped"` // claim contention
	Stopped  bool           `json:"stopped"` // tick ended early on quota exhaustion
	Duration time.Duration  `json:"duration"`
}

// Scheduler is the timer-driven entry point of the sync engine. Each tick
// enumerates eligible sources and runs the orchestrator for each one
// sequentially, isolating per-source failures.
type Scheduler struct {
	orch      *Orchestrator
	sources   repository.SourceRepository
	tracker   *quota.Tracker
	publisher pubsub.Publisher // optional; nil disables summary publishing
	topic     string
	logger    zerolog.Logger
	cfg       SchedulerConfig
	now       func() time.Time

	// tickMu guards against overlapping ticks; a tick that would start while
	// the previous one still runs is refused, not queued.
	tickMu sync.Mutex
}

// NewScheduler creates a sync scheduler. publisher may be nil.
func NewScheduler(orch *Orchestrator, sources repository.SourceRepository, tracker *quota.Tracker, publisher pubsub.Publisher, topic string, cfg SchedulerConfig, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		orch:      orch,
		sources:   sources,
		tracker:   tracker,
		publisher: publisher,
		topic:     topic,
		logger:    logger.With().Str("component", "sync-scheduler").Logger(),
		cfg:       cfg,
		now:       time.Now,
	}
}

// Start runs the tick loop until the context is cancelled. It blocks, so the
// caller usually runs it in its own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info().
		Dur("interval", s.cfg.Interval).
		Int("batch_size", s.cfg.BatchSize).
		Str("provider", string(s.cfg.Provider)).
		Msg("Starting sync scheduler")

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Sync scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil && !errors.Is(err, ErrTickInProgress) {
				s.logger.Error().Err(err).Msg("Sync tick failed")
			}
		}
	}
}

// Tick processes one bounded batch of eligible sources. It refuses to run
// concurrently with itself and skips entirely while quota usage is critical.
func (s *Scheduler) Tick(ctx context.Context) (*TickSummary, error) {
	if !s.tickMu.TryLock() {
		s.logger.Warn().Msg("Previous tick still running, skipping")
		return nil, ErrTickInProgress
	}
	defer s.tickMu.Unlock()

	started := s.now()

	// Provider-wide pre-check: attempting a batch that will mostly fail on
	// quota is worse than waiting for the next UTC day. Errors reading usage
	// fail closed.
	usage, err := s.tracker.DailyUsage(ctx, s.cfg.Provider, started)
	if err != nil {
		s.logger.Error().Err(err).Msg("Quota pre-check failed, skipping tick")
		return nil, err
	}
	if usage.WarningLevel == model.WarningLevelCritical {
		s.logger.Warn().
			Float64("usage_pct", usage.UsagePercentage).
			Msg("Quota usage critical, skipping tick")
		return &TickSummary{Provider: s.cfg.Provider, Stopped: true}, nil
	}

	sources, err := s.sources.ListEligible(ctx, s.cfg.Provider, s.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	summary := &TickSummary{Provider: s.cfg.Provider, Total: len(sources)}
	for _, src := range sources {
		if ctx.Err() != nil {
			break
		}
		err := s.orch.SyncOneSource(ctx, src.SourceID)
		switch {
		case err == nil:
			summary.Synced++
		case errors.Is(err, quota.ErrExceeded):
			// Budget is shared: no point trying the remaining sources.
			s.logger.Warn().Str("source_id", src.SourceID).Msg("Quota exhausted mid-tick, stopping batch")
			summary.Stopped = true
		case errors.Is(err, ErrSyncInProgress):
			summary.Skipped++
		default:
			// One bad source must never stop the batch.
			summary.Failed++
			s.logger.Error().Err(err).Str("source_id", src.SourceID).Msg("Source sync failed")
		}
		if summary.Stopped {
			break
		}
	}
	summary.Duration = s.now().Sub(started)

	s.logger.Info().
		Int("total", summary.Total).
		Int("synced", summary.Synced).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Bool("stopped", summary.Stopped).
		Dur("duration", summary.Duration).
		Msg("Sync tick completed")

	s.publishSummary(ctx, summary)
	return summary, nil
}

func (s *Scheduler) publishSummary(ctx context.Context, summary *TickSummary) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if _, err := s.publisher.Publish(ctx, s.topic, payload); err != nil {
		s.logger.Warn().Err(err).Str("topic", s.topic).Msg("Failed to publish tick summary")
	}
}
