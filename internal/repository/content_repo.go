package repository

import (
	"context"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ContentRepository persists the mapped output of one fetched provider page.
type ContentRepository interface {
	// UpsertPage writes content rows, category assignments, and statistics
	// snapshots in a single transaction. A page is only considered synced if
	// every item in it was durably persisted, so partial writes roll back.
	UpsertPage(ctx context.Context, contents []model.Content, categories []model.ContentCategory, stats []model.ContentStatistics) error
}

type contentRepo struct {
	pool *pgxpool.Pool
}

// NewContentRepo creates a new ContentRepository.
func NewContentRepo(pool *pgxpool.Pool) ContentRepository {
	return &contentRepo{pool: pool}
}

func (r *contentRepo) UpsertPage(ctx context.Context, contents []model.Content, categories []model.ContentCategory, stats []model.ContentStatistics) error {
	if len(contents) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting transaction for content page: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	batch := &pgx.Batch{}
	const contentQ = `
        INSERT INTO contents (content_id, source_id, external_id, title, description, published_at, thumbnail_url, duration_sec)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (source_id, external_id) DO UPDATE
        SET title = EXCLUDED.title,
            description = EXCLUDED.description,
            published_at = EXCLUDED.published_at,
            thumbnail_url = EXCLUDED.thumbnail_url,
            duration_sec = EXCLUDED.duration_sec,
            updated_at = NOW()
    `
	for _, c := range contents {
		batch.Queue(contentQ, c.ContentID, c.SourceID, c.ExternalID, c.Title, c.Description, c.PublishedAt, c.ThumbnailURL, c.DurationSec)
	}
	const categoryQ = `
        INSERT INTO content_categories (content_id, category)
        VALUES ($1, $2)
        ON CONFLICT (content_id, category) DO NOTHING
    `
	for _, cat := range categories {
		batch.Queue(categoryQ, cat.ContentID, cat.Category)
	}
	const statsQ = `
        INSERT INTO content_statistics (content_id, views, likes, comments, captured_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (content_id) DO UPDATE
        SET views = EXCLUDED.views,
            likes = EXCLUDED.likes,
            comments = EXCLUDED.comments,
            captured_at = EXCLUDED.captured_at
    `
	for _, st := range stats {
		batch.Queue(statsQ, st.ContentID, st.Views, st.Likes, st.Comments, st.CapturedAt)
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("persisting content page (statement %d of %d): %w", i+1, batch.Len(), err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("closing content page batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing content page: %w", err)
	}
	return nil
}
