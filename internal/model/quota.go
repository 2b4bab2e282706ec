package model

import "time"

// Provider identifies an external content platform.
type Provider string

const (
	ProviderYouTube Provider = "youtube"
)

// QuotaOperation identifies a billable provider API call.
type QuotaOperation string

const (
	OpListItems   QuotaOperation = "playlist_items_list"
	OpSearch      QuotaOperation = "search_list"
	OpItemDetails QuotaOperation = "videos_list"
	OpSourceInfo  QuotaOperation = "channels_list"
)

// WarningLevel classifies current quota usage against the policy thresholds.
type WarningLevel string

const (
	WarningLevelSafe     WarningLevel = "safe"
	WarningLevelWarning  WarningLevel = "warning"
	WarningLevelCritical WarningLevel = "critical"
)

// QuotaUsageRecord is one append-only ledger entry for a provider API call.
// Records are never mutated; retention pruning is the only delete path.
type QuotaUsageRecord struct {
	ID           int64          `db:"id" json:"id"`
	Provider     Provider       `db:"provider" json:"provider"`
	Operation    QuotaOperation `db:"operation" json:"operation"`
	Units        int            `db:"units" json:"units"`
	Success      bool           `db:"success" json:"success"`
	ErrorMessage string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// OperationUsage is the per-operation slice of a daily aggregate.
type OperationUsage struct {
	Units    int `db:"units" json:"units"`
	Requests int `db:"requests" json:"requests"`
}

// QuotaAggregate summarizes ledger rows for one provider over one UTC day.
type QuotaAggregate struct {
	TotalUnits    int                               `json:"total_units"`
	TotalRequests int                               `json:"total_requests"`
	ErrorCount    int                               `json:"error_count"`
	PerOperation  map[QuotaOperation]OperationUsage `json:"per_operation"`
}
