package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"app/internal/model"
	"app/internal/pgmq"
	"app/internal/quota"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// SyncProgress is the read-only progress view for one source.
// PercentComplete and EstimatedSecondsRemaining are only meaningful while
// the initial full sync is in progress.
type SyncProgress struct {
	SourceID                  string
	Phase                     model.SyncPhase
	SyncedCount               int
	FailedCount               int
	TotalResults              int64
	PercentComplete           *float64
	EstimatedSecondsRemaining *int64
	LastSyncedAt              *time.Time
	LastError                 string
}

// SyncStatusService exposes sync and quota state to operators and lets them
// request an out-of-band sync for one source.
type SyncStatusService interface {
	QuotaSummary(ctx context.Context, provider model.Provider) (*quota.Summary, error)
	SourceProgress(ctx context.Context, sourceID string) (*SyncProgress, error)
	// RequestSync enqueues a manual sync for the source and returns the
	// queue message ID. The sync daemon consumes the queue outside the
	// scheduler's batch cap, still subject to the quota guard.
	RequestSync(ctx context.Context, sourceID string) (int64, error)
}

type syncStatusService struct {
	tracker   *quota.Tracker
	states    repository.SyncStateRepository
	sources   repository.SourceRepository
	queue     *pgmq.Client
	queueName string
	pageSize  int
	interval  time.Duration
	logger    zerolog.Logger
}

// NewSyncStatusService creates a new SyncStatusService.
func NewSyncStatusService(
	tracker *quota.Tracker,
	states repository.SyncStateRepository,
	sources repository.SourceRepository,
	queue *pgmq.Client,
	queueName string,
	pageSize int,
	interval time.Duration,
	logger zerolog.Logger,
) SyncStatusService {
	return &syncStatusService{
		tracker:   tracker,
		states:    states,
		sources:   sources,
		queue:     queue,
		queueName: queueName,
		pageSize:  pageSize,
		interval:  interval,
		logger:    logger.With().Str("service", "SyncStatusService").Logger(),
	}
}

func (s *syncStatusService) QuotaSummary(ctx context.Context, provider model.Provider) (*quota.Summary, error) {
	return s.tracker.GetSummary(ctx, provider)
}

func (s *syncStatusService) SourceProgress(ctx context.Context, sourceID string) (*SyncProgress, error) {
	if _, err := s.sources.GetByID(ctx, sourceID); err != nil {
		return nil, err
	}
	state, err := s.states.Get(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	progress := &SyncProgress{
		SourceID:     state.SourceID,
		Phase:        state.Phase,
		SyncedCount:  state.SyncedCount,
		FailedCount:  state.FailedCount,
		TotalResults: state.TotalResults,
		LastSyncedAt: state.LastSyncedAt,
		LastError:    state.LastError,
	}
	if state.Phase == model.PhaseInitialInProgress && state.TotalResults > 0 {
		pct := float64(state.SyncedCount) / float64(state.TotalResults) * 100
		if pct > 100 {
			pct = 100
		}
		progress.PercentComplete = &pct

		// One page per tick: remaining pages times the tick interval.
		remaining := state.TotalResults - int64(state.SyncedCount)
		if remaining > 0 && s.pageSize > 0 {
			pages := (remaining + int64(s.pageSize) - 1) / int64(s.pageSize)
			eta := int64(s.interval.Seconds()) * pages
			progress.EstimatedSecondsRemaining = &eta
		}
	}
	return progress, nil
}

func (s *syncStatusService) RequestSync(ctx context.Context, sourceID string) (int64, error) {
	source, err := s.sources.GetByID(ctx, sourceID)
	if err != nil {
		return 0, err
	}
	if !source.IsActive {
		return 0, fmt.Errorf("source %s is not active", sourceID)
	}
	payload, err := json.Marshal(map[string]string{"source_id": sourceID})
	if err != nil {
		return 0, fmt.Errorf("marshalling manual sync request: %w", err)
	}
	msgID, err := s.queue.Send(ctx, s.queueName, payload)
	if err != nil {
		return 0, fmt.Errorf("enqueueing manual sync for source %s: %w", sourceID, err)
	}
	s.logger.Info().Str("source_id", sourceID).Int64("msg_id", msgID).Msg("Manual sync requested")
	return msgID, nil
}
