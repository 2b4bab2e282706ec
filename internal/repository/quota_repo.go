package repository

import (
	"context"
	"fmt"
	"time"

	"app/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// QuotaRepository is the append-only usage ledger for provider API calls.
type QuotaRepository interface {
	// InsertUsage appends one ledger row. Rows are immutable once written.
	InsertUsage(ctx context.Context, rec *model.QuotaUsageRecord) error
	// AggregateRange sums ledger rows for the provider in [start, end).
	AggregateRange(ctx context.Context, provider model.Provider, start, end time.Time) (*model.QuotaAggregate, error)
	// DeleteBefore removes ledger rows older than the cutoff and returns the
	// number of rows deleted. Used only by retention pruning.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type quotaRepo struct {
	pool *pgxpool.Pool
}

// NewQuotaRepo creates a new QuotaRepository.
func NewQuotaRepo(pool *pgxpool.Pool) QuotaRepository {
	return &quotaRepo{pool: pool}
}

func (r *quotaRepo) InsertUsage(ctx context.Context, rec *model.QuotaUsageRecord) error {
	const q = `
        INSERT INTO quota_usage (provider, operation, units, success, error_message, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	if _, err := r.pool.Exec(ctx, q, rec.Provider, rec.Operation, rec.Units, rec.Success, rec.ErrorMessage, rec.CreatedAt); err != nil {
		return fmt.Errorf("inserting quota usage for %s/%s: %w", rec.Provider, rec.Operation, err)
	}
	return nil
}

func (r *quotaRepo) AggregateRange(ctx context.Context, provider model.Provider, start, end time.Time) (*model.QuotaAggregate, error) {
	const q = `
        SELECT operation,
               COALESCE(SUM(units), 0),
               COUNT(*),
               COUNT(*) FILTER (WHERE NOT success)
        FROM quota_usage
        WHERE provider = $1
          AND created_at >= $2
          AND created_at < $3
        GROUP BY operation
    `
	rows, err := r.pool.Query(ctx, q, provider, start, end)
	if err != nil {
		return nil, fmt.Errorf("aggregating quota usage for %s: %w", provider, err)
	}
	defer rows.Close()

	agg := &model.QuotaAggregate{PerOperation: make(map[model.QuotaOperation]model.OperationUsage)}
	for rows.Next() {
		var op model.QuotaOperation
		var units, requests, errCount int
		if err := rows.Scan(&op, &units, &requests, &errCount); err != nil {
			return nil, fmt.Errorf("scanning quota aggregate row: %w", err)
		}
		agg.PerOperation[op] = model.OperationUsage{Units: units, Requests: requests}
		agg.TotalUnits += units
		agg.TotalRequests += requests
		agg.ErrorCount += errCount
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading quota aggregate rows: %w", err)
	}
	return agg, nil
}

func (r *quotaRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM quota_usage WHERE created_at < $1`
	tag, err := r.pool.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning quota usage before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}
