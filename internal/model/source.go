package model

import "time"

// ContentSource is one (creator, platform) pairing with its own sync
// lifecycle. Rows are owned by the surrounding backend; the sync engine
// only reads them and refreshes the aggregate counters.
type ContentSource struct {
	SourceID      string    `db:"source_id" json:"source_id"`
	CreatorID     string    `db:"creator_id" json:"creator_id"`
	Platform      Provider  `db:"platform" json:"platform"`
	ExternalID    string    `db:"external_id" json:"external_id"` // provider-side channel identifier
	DisplayName   string    `db:"display_name" json:"display_name"`
	FollowerCount int64     `db:"follower_count" json:"follower_count"`
	ItemCount     int64     `db:"item_count" json:"item_count"`
	TotalViews    int64     `db:"total_views" json:"total_views"`
	IsActive      bool      `db:"is_active" json:"is_active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
