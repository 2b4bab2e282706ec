// Package provider contains the external content platform clients and the
// per-provider mapping into the generic content model. Everything
// provider-specific lives behind the Client interface so new platforms can be
// added without touching the orchestrator or quota logic.
package provider

import (
	"context"
	"time"

	"app/internal/model"
)

// Item is one provider item in its generic representation.
type Item struct {
	ExternalID   string
	Title        string
	Description  string
	PublishedAt  time.Time
	ThumbnailURL string
	DurationSec  int64
	CategoryID   string
	Views        int64
	Likes        int64
	Comments     int64
}

// ListOptions controls one page fetch.
type ListOptions struct {
	MaxResults     int64
	PageToken      string     // opaque continuation token from a previous page
	PublishedAfter *time.Time // incremental mode: only items published after this instant
}

// ItemPage is the result of one page fetch. Calls lists the billable
// operations the client performed, in order, so the caller can record their
// cost in the quota ledger.
type ItemPage struct {
	Items         []Item
	NextPageToken string
	TotalResults  int64
	Calls         []model.QuotaOperation
}

// SourceInfo is the lightweight source-level aggregate from the provider.
type SourceInfo struct {
	FollowerCount int64
	ItemCount     int64
	TotalViews    int64
}

// Client is the provider API surface the sync engine depends on. Both
// methods honor the context deadline supplied by the caller.
type Client interface {
	// ListSourceItems fetches one page of items for a source. With
	// PublishedAfter set it returns only newer items; otherwise it walks the
	// source's full catalog using PageToken.
	ListSourceItems(ctx context.Context, externalID string, opts ListOptions) (*ItemPage, error)
	// GetSourceInfo fetches source-level aggregate counters.
	GetSourceInfo(ctx context.Context, externalID string) (*SourceInfo, error)
}
