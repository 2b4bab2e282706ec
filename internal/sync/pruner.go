package sync

import (
	"context"
	"time"

	"app/internal/repository"

	"github.com/rs/zerolog"
)

// Pruner deletes quota ledger rows older than the retention window. It runs
// on its own timer, independent of sync ticks; its failures are logged and
// never affect syncing.
type Pruner struct {
	repo      repository.QuotaRepository
	retention time.Duration
	interval  time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// NewPruner creates a quota retention pruner.
func NewPruner(repo repository.QuotaRepository, retention, interval time.Duration, logger zerolog.Logger) *Pruner {
	return &Pruner{
		repo:      repo,
		retention: retention,
		interval:  interval,
		logger:    logger.With().Str("component", "quota-pruner").Logger(),
		now:       time.Now,
	}
}

// Start runs the pruning loop until the context is cancelled.
func (p *Pruner) Start(ctx context.Context) {
	p.logger.Info().
		Dur("interval", p.interval).
		Dur("retention", p.retention).
		Msg("Starting quota pruner")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("Quota pruner stopped")
			return
		case <-ticker.C:
			if _, err := p.RunOnce(ctx); err != nil {
				p.logger.Error().Err(err).Msg("Quota pruning failed")
			}
		}
	}
}

// RunOnce deletes rows older than the retention window and returns how many
// were removed.
func (p *Pruner) RunOnce(ctx context.Context) (int64, error) {
	cutoff := p.now().UTC().Add(-p.retention)
	deleted, err := p.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		p.logger.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("Pruned quota usage records")
	}
	return deleted, nil
}
