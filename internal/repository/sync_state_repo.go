package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSyncStateNotFound is returned when no sync state row exists for a source.
var ErrSyncStateNotFound = errors.New("sync_state_not_found")

// SyncStateRepository persists per-source synchronization progress.
type SyncStateRepository interface {
	// GetOrCreate returns the sync state for a source, lazily inserting a
	// never_synced row on first use.
	GetOrCreate(ctx context.Context, sourceID string) (*model.SourceSyncState, error)
	// Get returns the sync state for a source.
	Get(ctx context.Context, sourceID string) (*model.SourceSyncState, error)
	// Update writes the mutable sync state fields.
	Update(ctx context.Context, state *model.SourceSyncState) error
	// Claim marks the source as in progress. Returns false if another run
	// holds the claim and it is newer than staleBefore.
	Claim(ctx context.Context, sourceID string, staleBefore time.Time) (bool, error)
	// Release clears the in-progress claim.
	Release(ctx context.Context, sourceID string) error
}

type syncStateRepo struct {
	pool *pgxpool.Pool
}

// NewSyncStateRepo creates a new SyncStateRepository.
func NewSyncStateRepo(pool *pgxpool.Pool) SyncStateRepository {
	return &syncStateRepo{pool: pool}
}

const syncStateColumns = `
    source_id, phase, resume_cursor, synced_count, failed_count, total_results,
    last_synced_at, last_error, initial_sync_completed, in_progress_at, created_at, updated_at
`

func (r *syncStateRepo) GetOrCreate(ctx context.Context, sourceID string) (*model.SourceSyncState, error) {
	const insertQ = `
        INSERT INTO source_sync_states (source_id, phase)
        VALUES ($1, 'never_synced')
        ON CONFLICT (source_id) DO NOTHING
    `
	if _, err := r.pool.Exec(ctx, insertQ, sourceID); err != nil {
		return nil, fmt.Errorf("creating sync state for source %s: %w", sourceID, err)
	}
	return r.Get(ctx, sourceID)
}

func (r *syncStateRepo) Get(ctx context.Context, sourceID string) (*model.SourceSyncState, error) {
	q := `SELECT ` + syncStateColumns + ` FROM source_sync_states WHERE source_id = $1`
	var st model.SourceSyncState
	err := r.pool.QueryRow(ctx, q, sourceID).Scan(
		&st.SourceID,
		&st.Phase,
		&st.ResumeCursor,
		&st.SyncedCount,
		&st.FailedCount,
		&st.TotalResults,
		&st.LastSyncedAt,
		&st.LastError,
		&st.InitialSyncCompleted,
		&st.InProgressAt,
		&st.CreatedAt,
		&st.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSyncStateNotFound
		}
		return nil, fmt.Errorf("fetching sync state for source %s: %w", sourceID, err)
	}
	return &st, nil
}

func (r *syncStateRepo) Update(ctx context.Context, state *model.SourceSyncState) error {
	const q = `
        UPDATE source_sync_states
        SET phase = $2,
            resume_cursor = $3,
            synced_count = $4,
            failed_count = $5,
            total_results = $6,
            last_synced_at = $7,
            last_error = $8,
            initial_sync_completed = $9,
            updated_at = NOW()
        WHERE source_id = $1
    `
	tag, err := r.pool.Exec(ctx, q,
		state.SourceID,
		state.Phase,
		state.ResumeCursor,
		state.SyncedCount,
		state.FailedCount,
		state.TotalResults,
		state.LastSyncedAt,
		state.LastError,
		state.InitialSyncCompleted,
	)
	if err != nil {
		return fmt.Errorf("updating sync state for source %s: %w", state.SourceID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSyncStateNotFound
	}
	return nil
}

// Claim performs a conditional update so that at most one run holds the
// in-progress marker for a source, even across processes. A claim older than
// staleBefore is treated as abandoned (crashed run) and taken over.
func (r *syncStateRepo) Claim(ctx context.Context, sourceID string, staleBefore time.Time) (bool, error) {
	const q = `
        UPDATE source_sync_states
        SET in_progress_at = NOW()
        WHERE source_id = $1
          AND (in_progress_at IS NULL OR in_progress_at < $2)
    `
	tag, err := r.pool.Exec(ctx, q, sourceID, staleBefore)
	if err != nil {
		return false, fmt.Errorf("claiming sync for source %s: %w", sourceID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *syncStateRepo) Release(ctx context.Context, sourceID string) error {
	const q = `UPDATE source_sync_states SET in_progress_at = NULL WHERE source_id = $1`
	if _, err := r.pool.Exec(ctx, q, sourceID); err != nil {
		return fmt.Errorf("releasing sync claim for source %s: %w", sourceID, err)
	}
	return nil
}
