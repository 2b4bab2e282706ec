package dto

import "time"

// QuotaSummaryResponse is the read-only quota dashboard payload.
type QuotaSummaryResponse struct {
	Provider        string  `json:"provider"`
	DailyUsage      int     `json:"daily_usage"`
	DailyLimit      int     `json:"daily_limit"`
	UsagePercentage float64 `json:"usage_percentage"`
	RemainingQuota  int     `json:"remaining_quota"`
	WarningLevel    string  `json:"warning_level"`
	ErrorCount      int     `json:"error_count"`
}

// SyncProgressResponse is the read-only sync progress payload for a source.
// percent_complete and estimated_seconds_remaining are present only during
// the initial full sync.
type SyncProgressResponse struct {
	SourceID                  string     `json:"source_id"`
	Phase                     string     `json:"phase"`
	SyncedCount               int        `json:"synced_count"`
	FailedCount               int        `json:"failed_count"`
	TotalResults              int64      `json:"total_results,omitempty"`
	PercentComplete           *float64   `json:"percent_complete,omitempty"`
	EstimatedSecondsRemaining *int64     `json:"estimated_seconds_remaining,omitempty"`
	LastSyncedAt              *time.Time `json:"last_synced_at,omitempty"`
	LastError                 string     `json:"last_error,omitempty"`
}

// ForceSyncRequest is the optional body of a manual sync trigger.
type ForceSyncRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// ForceSyncResponse acknowledges an enqueued manual sync.
type ForceSyncResponse struct {
	SourceID  string `json:"source_id"`
	MessageID int64  `json:"message_id"`
	Enqueued  bool   `json:"enqueued"`
}
