package repository

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSourceNotFound is returned when a content source does not exist.
var ErrSourceNotFound = errors.New("source_not_found")

// SourceRepository reads the (creator, platform) source registry. Source
// lifecycle is owned by the surrounding backend; the sync engine only
// enumerates sources and refreshes their aggregate counters.
type SourceRepository interface {
	GetByID(ctx context.Context, sourceID string) (*model.ContentSource, error)
	// ListEligible returns active sources for the platform, never-synced and
	// failed sources first, then oldest-synced-first, capped at limit.
	ListEligible(ctx context.Context, platform model.Provider, limit int) ([]model.ContentSource, error)
	// UpdateAggregates refreshes the source-level counters fetched from the
	// provider's lightweight info call.
	UpdateAggregates(ctx context.Context, sourceID string, followers, items, views int64) error
}

type sourceRepo struct {
	pool *pgxpool.Pool
}

// NewSourceRepo creates a new SourceRepository.
func NewSourceRepo(pool *pgxpool.Pool) SourceRepository {
	return &sourceRepo{pool: pool}
}

const sourceColumns = `
    s.source_id, s.creator_id, s.platform, s.external_id, s.display_name,
    s.follower_count, s.item_count, s.total_views, s.is_active, s.created_at, s.updated_at
`

func (r *sourceRepo) GetByID(ctx context.Context, sourceID string) (*model.ContentSource, error) {
	q := `SELECT ` + sourceColumns + ` FROM content_sources s WHERE s.source_id = $1`
	src, err := scanSource(r.pool.QueryRow(ctx, q, sourceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSourceNotFound
		}
		return nil, fmt.Errorf("fetching source %s: %w", sourceID, err)
	}
	return src, nil
}

func (r *sourceRepo) ListEligible(ctx context.Context, platform model.Provider, limit int) ([]model.ContentSource, error) {
	q := `
        SELECT ` + sourceColumns + `
        FROM content_sources s
        LEFT JOIN source_sync_states st ON st.source_id = s.source_id
        WHERE s.is_active
          AND s.platform = $1
        ORDER BY
          CASE WHEN st.phase IS NULL OR st.phase IN ('never_synced', 'failed') THEN 0 ELSE 1 END,
          st.last_synced_at ASC NULLS FIRST
        LIMIT $2
    `
	rows, err := r.pool.Query(ctx, q, platform, limit)
	if err != nil {
		return nil, fmt.Errorf("listing eligible sources for %s: %w", platform, err)
	}
	defer rows.Close()

	var sources []model.ContentSource
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning source row: %w", err)
		}
		sources = append(sources, *src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading source rows: %w", err)
	}
	return sources, nil
}

func (r *sourceRepo) UpdateAggregates(ctx context.Context, sourceID string, followers, items, views int64) error {
	const q = `
        UPDATE content_sources
        SET follower_count = $2, item_count = $3, total_views = $4, updated_at = NOW()
        WHERE source_id = $1
    `
	if _, err := r.pool.Exec(ctx, q, sourceID, followers, items, views); err != nil {
		return fmt.Errorf("updating aggregates for source %s: %w", sourceID, err)
	}
	return nil
}

func scanSource(row pgx.Row) (*model.ContentSource, error) {
	var s model.ContentSource
	err := row.Scan(
		&s.SourceID,
		&s.CreatorID,
		&s.Platform,
		&s.ExternalID,
		&s.DisplayName,
		&s.FollowerCount,
		&s.ItemCount,
		&s.TotalViews,
		&s.IsActive,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
