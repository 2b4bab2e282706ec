package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"app/internal/model"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	youtube "google.golang.org/api/youtube/v3"
)

// YouTubeClient implements Client on the YouTube Data API v3. A source's
// external ID is its channel ID; the full catalog is read through the
// channel's uploads playlist, incremental fetches go through search.
type YouTubeClient struct {
	svc *youtube.Service

	// channel ID -> uploads playlist ID, resolved once per process
	mu              sync.Mutex
	uploadsPlaylist map[string]string
}

// NewYouTubeClient creates a YouTube Data API client authenticated by API key.
func NewYouTubeClient(ctx context.Context, apiKey string) (*YouTubeClient, error) {
	svc, err := youtube.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating YouTube service: %w", err)
	}
	return &YouTubeClient{svc: svc, uploadsPlaylist: make(map[string]string)}, nil
}

func (c *YouTubeClient) ListSourceItems(ctx context.Context, externalID string, opts ListOptions) (*ItemPage, error) {
	if opts.PublishedAfter != nil {
		return c.listRecent(ctx, externalID, opts)
	}
	return c.listUploads(ctx, externalID, opts)
}

// listUploads walks the channel's uploads playlist (initial full sync).
func (c *YouTubeClient) listUploads(ctx context.Context, externalID string, opts ListOptions) (*ItemPage, error) {
	page := &ItemPage{}

	playlistID, resolved, err := c.resolveUploadsPlaylist(ctx, externalID)
	if resolved {
		page.Calls = append(page.Calls, model.OpSourceInfo)
	}
	if err != nil {
		return page, err
	}

	call := c.svc.PlaylistItems.List([]string{"contentDetails"}).
		PlaylistId(playlistID).
		MaxResults(opts.MaxResults)
	if opts.PageToken != "" {
		call = call.PageToken(opts.PageToken)
	}
	page.Calls = append(page.Calls, model.OpListItems)
	resp, err := call.Context(ctx).Do()
	if err != nil {
		return page, classifyYouTubeError("playlistItems.list", err)
	}
	page.NextPageToken = resp.NextPageToken
	if resp.PageInfo != nil {
		page.TotalResults = resp.PageInfo.TotalResults
	}

	ids := make([]string, 0, len(resp.Items))
	for _, it := range resp.Items {
		if it.ContentDetails == nil || it.ContentDetails.VideoId == "" {
			return page, &ValidationError{Reason: "playlist item missing video id"}
		}
		ids = append(ids, it.ContentDetails.VideoId)
	}
	return c.fetchDetails(ctx, page, ids)
}

// listRecent fetches only items published after the watermark (incremental).
func (c *YouTubeClient) listRecent(ctx context.Context, externalID string, opts ListOptions) (*ItemPage, error) {
	page := &ItemPage{}

	call := c.svc.Search.List([]string{"id"}).
		ChannelId(externalID).
		Type("video").
		Order("date").
		PublishedAfter(opts.PublishedAfter.UTC().Format(time.RFC3339)).
		MaxResults(opts.MaxResults)
	if opts.PageToken != "" {
		call = call.PageToken(opts.PageToken)
	}
	page.Calls = append(page.Calls, model.OpSearch)
	resp, err := call.Context(ctx).Do()
	if err != nil {
		return page, classifyYouTubeError("search.list", err)
	}
	page.NextPageToken = resp.NextPageToken
	if resp.PageInfo != nil {
		page.TotalResults = resp.PageInfo.TotalResults
	}

	ids := make([]string, 0, len(resp.Items))
	for _, it := range resp.Items {
		if it.Id == nil || it.Id.VideoId == "" {
			return page, &ValidationError{Reason: "search result missing video id"}
		}
		ids = append(ids, it.Id.VideoId)
	}
	return c.fetchDetails(ctx, page, ids)
}

// fetchDetails loads snippet/statistics for the listed video IDs and maps
// them into generic items.
func (c *YouTubeClient) fetchDetails(ctx context.Context, page *ItemPage, ids []string) (*ItemPage, error) {
	if len(ids) == 0 {
		return page, nil
	}
	page.Calls = append(page.Calls, model.OpItemDetails)
	resp, err := c.svc.Videos.List([]string{"snippet", "contentDetails", "statistics"}).
		Id(ids...).
		Context(ctx).
		Do()
	if err != nil {
		return page, classifyYouTubeError("videos.list", err)
	}
	for _, v := range resp.Items {
		item, err := mapVideo(v)
		if err != nil {
			return page, err
		}
		page.Items = append(page.Items, item)
	}
	return page, nil
}

func (c *YouTubeClient) GetSourceInfo(ctx context.Context, externalID string) (*SourceInfo, error) {
	resp, err := c.svc.Channels.List([]string{"statistics"}).
		Id(externalID).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classifyYouTubeError("channels.list", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Statistics == nil {
		return nil, &ValidationError{ItemID: externalID, Reason: "channel not found or missing statistics"}
	}
	st := resp.Items[0].Statistics
	return &SourceInfo{
		FollowerCount: int64(st.SubscriberCount),
		ItemCount:     int64(st.VideoCount),
		TotalViews:    int64(st.ViewCount),
	}, nil
}

// resolveUploadsPlaylist returns the uploads playlist for a channel. The
// second return value reports whether a billable lookup was performed.
func (c *YouTubeClient) resolveUploadsPlaylist(ctx context.Context, externalID string) (string, bool, error) {
	c.mu.Lock()
	playlistID, ok := c.uploadsPlaylist[externalID]
	c.mu.Unlock()
	if ok {
		return playlistID, false, nil
	}

	resp, err := c.svc.Channels.List([]string{"contentDetails"}).
		Id(externalID).
		Context(ctx).
		Do()
	if err != nil {
		return "", true, classifyYouTubeError("channels.list", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].ContentDetails == nil ||
		resp.Items[0].ContentDetails.RelatedPlaylists == nil ||
		resp.Items[0].ContentDetails.RelatedPlaylists.Uploads == "" {
		return "", true, &ValidationError{ItemID: externalID, Reason: "channel has no uploads playlist"}
	}
	playlistID = resp.Items[0].ContentDetails.RelatedPlaylists.Uploads

	c.mu.Lock()
	c.uploadsPlaylist[externalID] = playlistID
	c.mu.Unlock()
	return playlistID, true, nil
}

// classifyYouTubeError maps API failures onto the engine's error taxonomy.
func classifyYouTubeError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 403 {
			for _, item := range apiErr.Errors {
				switch item.Reason {
				case "quotaExceeded", "dailyLimitExceeded", "rateLimitExceeded":
					return fmt.Errorf("%s: %w", op, ErrQuotaExhausted)
				}
			}
		}
	}
	return &TransientError{Op: op, Err: err}
}
