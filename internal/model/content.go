package model

import "time"

// Content is the generic representation of one provider item after mapping.
type Content struct {
	ContentID    string    `db:"content_id" json:"content_id"`
	SourceID     string    `db:"source_id" json:"source_id"`
	ExternalID   string    `db:"external_id" json:"external_id"` // provider-side video identifier
	Title        string    `db:"title" json:"title"`
	Description  string    `db:"description" json:"description"`
	PublishedAt  time.Time `db:"published_at" json:"published_at"`
	ThumbnailURL string    `db:"thumbnail_url" json:"thumbnail_url"`
	DurationSec  int64     `db:"duration_sec" json:"duration_sec"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ContentCategory assigns a derived category to a content row.
type ContentCategory struct {
	ContentID string `db:"content_id" json:"content_id"`
	Category  string `db:"category" json:"category"`
}

// ContentStatistics is the statistics snapshot captured for an item during a
// sync run.
type ContentStatistics struct {
	ContentID  string    `db:"content_id" json:"content_id"`
	Views      int64     `db:"views" json:"views"`
	Likes      int64     `db:"likes" json:"likes"`
	Comments   int64     `db:"comments" json:"comments"`
	CapturedAt time.Time `db:"captured_at" json:"captured_at"`
}
