package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/model"
	"app/internal/provider"
	"app/internal/quota"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// Orchestrator drives one source through a single sync run: it decides
// full-vs-incremental mode from the persisted state, runs the ingestion
// pipeline for one page, and commits the new progress.
type Orchestrator struct {
	sources  repository.SourceRepository
	states   repository.SyncStateRepository
	pipeline *Pipeline
	client   provider.Client
	tracker  *quota.Tracker
	logger   zerolog.Logger
	claimTTL time.Duration
	now      func() time.Time
}

// NewOrchestrator creates a sync orchestrator.
func NewOrchestrator(
	sources repository.SourceRepository,
	states repository.SyncStateRepository,
	pipeline *Pipeline,
	client provider.Client,
	tracker *quota.Tracker,
	claimTTL time.Duration,
	logger zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		sources:  sources,
		states:   states,
		pipeline: pipeline,
		client:   client,
		tracker:  tracker,
		logger:   logger.With().Str("component", "sync-orchestrator").Logger(),
		claimTTL: claimTTL,
		now:      time.Now,
	}
}

// SyncOneSource runs one page of synchronization for the source.
//
// Quota exhaustion stops the run and restores the pre-run state without
// marking the source failed. Any other failure sets phase=failed with the
// error retained, and is returned to the caller for accounting only; the
// next tick retries from the last committed state.
func (o *Orchestrator) SyncOneSource(ctx context.Context, sourceID string) error {
	source, err := o.sources.GetByID(ctx, sourceID)
	if err != nil {
		return err
	}
	if !source.IsActive {
		return fmt.Errorf("source %s is not active", sourceID)
	}

	state, err := o.states.GetOrCreate(ctx, sourceID)
	if err != nil {
		return err
	}

	claimed, err := o.states.Claim(ctx, sourceID, o.now().Add(-o.claimTTL))
	if err != nil {
		return err
	}
	if !claimed {
		return fmt.Errorf("source %s: %w", sourceID, ErrSyncInProgress)
	}
	defer func() {
		if err := o.states.Release(ctx, sourceID); err != nil {
			o.logger.Warn().Err(err).Str("source_id", sourceID).Msg("Failed to release sync claim")
		}
	}()

	preRun := *state
	initial := !state.InitialSyncCompleted

	// Mark the run before any provider I/O so a crash mid-run is observable
	// on the next tick.
	if initial {
		state.Phase = model.PhaseInitialInProgress
	} else {
		state.Phase = model.PhaseIncremental
	}
	if err := o.states.Update(ctx, state); err != nil {
		return err
	}

	opts := provider.ListOptions{}
	if initial {
		opts.PageToken = state.ResumeCursor
	} else {
		after := time.Unix(0, 0).UTC()
		if state.LastSyncedAt != nil {
			after = *state.LastSyncedAt
		}
		opts.PublishedAfter = &after
	}

	res, runErr := o.pipeline.FetchAndPersist(ctx, source, opts)
	if runErr != nil {
		if errors.Is(runErr, quota.ErrExceeded) {
			// Not a source fault: put the state back exactly as it was
			// before this run started.
			if err := o.states.Update(ctx, &preRun); err != nil {
				o.logger.Error().Err(err).Str("source_id", sourceID).Msg("Failed to restore pre-run sync state")
			}
			return runErr
		}
		state.Phase = model.PhaseFailed
		state.LastError = runErr.Error()
		if res != nil {
			state.FailedCount += res.ItemCount
		}
		if err := o.states.Update(ctx, state); err != nil {
			o.logger.Error().Err(err).Str("source_id", sourceID).Msg("Failed to persist failed sync state")
		}
		return runErr
	}

	runAt := o.now().UTC()
	state.SyncedCount += res.ItemCount
	state.LastSyncedAt = &runAt
	state.LastError = ""
	if initial {
		if res.TotalResults > 0 {
			state.TotalResults = res.TotalResults
		}
		if res.NextPageToken != "" {
			state.ResumeCursor = res.NextPageToken
			state.Phase = model.PhaseInitialInProgress
		} else {
			state.ResumeCursor = ""
			state.InitialSyncCompleted = true
			state.Phase = model.PhaseIncremental
		}
	} else {
		state.Phase = model.PhaseIncremental
	}
	if err := o.states.Update(ctx, state); err != nil {
		return err
	}

	o.logger.Info().
		Str("source_id", sourceID).
		Str("phase", string(state.Phase)).
		Int("items", res.ItemCount).
		Int("synced_total", state.SyncedCount).
		Msg("Source sync run completed")

	o.refreshSourceInfo(ctx, source)
	return nil
}

// refreshSourceInfo updates the source's aggregate counters via the
// provider's lightweight info call. Failures here are logged and swallowed;
// they never fail the run.
func (o *Orchestrator) refreshSourceInfo(ctx context.Context, source *model.ContentSource) {
	cost := o.tracker.Policy().Cost(model.OpSourceInfo)
	if check := o.tracker.CanSpend(ctx, source.Platform, cost); !check.CanUse {
		o.logger.Debug().Str("source_id", source.SourceID).Msg("Skipping source info refresh, quota exhausted")
		return
	}
	info, err := o.client.GetSourceInfo(ctx, source.ExternalID)
	o.tracker.RecordUsage(ctx, source.Platform, model.OpSourceInfo, 0, err)
	if err != nil {
		o.logger.Warn().Err(err).Str("source_id", source.SourceID).Msg("Source info refresh failed")
		return
	}
	if err := o.sources.UpdateAggregates(ctx, source.SourceID, info.FollowerCount, info.ItemCount, info.TotalViews); err != nil {
		o.logger.Warn().Err(err).Str("source_id", source.SourceID).Msg("Failed to store source aggregates")
	}
}
