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

// ThumbnailMirror copies an item's thumbnail into our own storage. Mirroring
// is best-effort; the pipeline logs and continues on failure.
type ThumbnailMirror interface {
	Mirror(ctx context.Context, contentID, thumbnailURL string) (string, error)
}

// PageResult summarizes one successfully fetched page. On persistence
// failure the pipeline still returns it (with the fetched item count) so the
// orchestrator can account for items that were fetched but not stored.
type PageResult struct {
	ItemCount     int
	NextPageToken string
	TotalResults  int64
}

// Pipeline fetches one page of provider items, maps them, and persists them.
// Every page fetch is bracketed by the quota guard (before) and the quota
// ledger (after).
type Pipeline struct {
	client   provider.Client
	contents repository.ContentRepository
	tracker  *quota.Tracker
	thumbs   ThumbnailMirror // optional
	logger   zerolog.Logger
	pageSize int64
	now      func() time.Time
}

// NewPipeline creates a content ingestion pipeline. thumbs may be nil.
func NewPipeline(client provider.Client, contents repository.ContentRepository, tracker *quota.Tracker, thumbs ThumbnailMirror, pageSize int, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		client:   client,
		contents: contents,
		tracker:  tracker,
		thumbs:   thumbs,
		logger:   logger.With().Str("component", "ingest-pipeline").Logger(),
		pageSize: int64(pageSize),
		now:      time.Now,
	}
}

// FetchAndPersist runs one page for the source. Quota exhaustion (local
// guard denial or provider-reported) is reported as quota.ErrExceeded so the
// caller can stop scheduling work without marking the source failed.
func (p *Pipeline) FetchAndPersist(ctx context.Context, source *model.ContentSource, opts provider.ListOptions) (*PageResult, error) {
	opts.MaxResults = p.pageSize

	estimatedOps := []model.QuotaOperation{model.OpListItems, model.OpItemDetails}
	if opts.PublishedAfter != nil {
		estimatedOps = []model.QuotaOperation{model.OpSearch, model.OpItemDetails}
	}
	required := 0
	for _, op := range estimatedOps {
		required += p.tracker.Policy().Cost(op)
	}

	check := p.tracker.CanSpend(ctx, source.Platform, required)
	if !check.CanUse {
		return nil, fmt.Errorf("%w: need %d units, %d remaining, reset in %.1fh",
			quota.ErrExceeded, required, check.RemainingQuota, check.HoursUntilReset)
	}

	page, err := p.client.ListSourceItems(ctx, source.ExternalID, opts)
	p.recordCalls(ctx, source.Platform, page, estimatedOps, err)
	if err != nil {
		if errors.Is(err, provider.ErrQuotaExhausted) {
			return nil, fmt.Errorf("%w: provider rejected call: %v", quota.ErrExceeded, err)
		}
		return nil, err
	}

	res := &PageResult{
		ItemCount:     len(page.Items),
		NextPageToken: page.NextPageToken,
		TotalResults:  page.TotalResults,
	}
	if len(page.Items) == 0 {
		return res, nil
	}

	contents, categories, stats := p.mapPage(source, page.Items)
	if err := p.contents.UpsertPage(ctx, contents, categories, stats); err != nil {
		return res, fmt.Errorf("persisting page for source %s: %w", source.SourceID, err)
	}

	p.mirrorThumbnails(ctx, contents)
	return res, nil
}

// mapPage is the pure transform from provider items to catalog rows.
func (p *Pipeline) mapPage(source *model.ContentSource, items []provider.Item) ([]model.Content, []model.ContentCategory, []model.ContentStatistics) {
	capturedAt := p.now().UTC()
	contents := make([]model.Content, 0, len(items))
	categories := make([]model.ContentCategory, 0, len(items))
	stats := make([]model.ContentStatistics, 0, len(items))
	for _, it := range items {
		contentID := source.SourceID + ":" + it.ExternalID
		contents = append(contents, model.Content{
			ContentID:    contentID,
			SourceID:     source.SourceID,
			ExternalID:   it.ExternalID,
			Title:        it.Title,
			Description:  it.Description,
			PublishedAt:  it.PublishedAt,
			ThumbnailURL: it.ThumbnailURL,
			DurationSec:  it.DurationSec,
		})
		categories = append(categories, model.ContentCategory{
			ContentID: contentID,
			Category:  provider.CategoryName(it.CategoryID),
		})
		stats = append(stats, model.ContentStatistics{
			ContentID:  contentID,
			Views:      it.Views,
			Likes:      it.Likes,
			Comments:   it.Comments,
			CapturedAt: capturedAt,
		})
	}
	return contents, categories, stats
}

// recordCalls writes ledger rows for the operations the client performed.
// When the client failed before reporting any call, the estimated list
// operation is recorded instead so the attempt is still visible in the ledger.
func (p *Pipeline) recordCalls(ctx context.Context, prov model.Provider, page *provider.ItemPage, estimated []model.QuotaOperation, callErr error) {
	calls := estimated[:1]
	if page != nil && len(page.Calls) > 0 {
		calls = page.Calls
	} else if callErr == nil {
		calls = estimated
	}
	for _, op := range calls {
		p.tracker.RecordUsage(ctx, prov, op, 0, callErr)
	}
}

func (p *Pipeline) mirrorThumbnails(ctx context.Context, contents []model.Content) {
	if p.thumbs == nil {
		return
	}
	for _, c := range contents {
		if c.ThumbnailURL == "" {
			continue
		}
		if _, err := p.thumbs.Mirror(ctx, c.ContentID, c.ThumbnailURL); err != nil {
			p.logger.Warn().Err(err).Str("content_id", c.ContentID).Msg("Thumbnail mirror failed")
		}
	}
}
