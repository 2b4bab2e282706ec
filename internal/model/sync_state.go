package model

import "time"

// SyncPhase is the lifecycle phase of a source's synchronization.
type SyncPhase string

const (
	PhaseNeverSynced       SyncPhase = "never_synced"
	PhaseInitialInProgress SyncPhase = "initial_in_progress"
	PhaseIncremental       SyncPhase = "incremental"
	PhaseFailed            SyncPhase = "failed"
)

// SourceSyncState is the per-source synchronization record. One row per
// (creator, platform) source; mutated only by the sync orchestrator.
//
// ResumeCursor is an opaque provider pagination token and is only present
// while the initial full sync is in progress. It is cleared in the same
// update that sets InitialSyncCompleted.
type SourceSyncState struct {
	SourceID             string     `db:"source_id" json:"source_id"`
	Phase                SyncPhase  `db:"phase" json:"phase"`
	ResumeCursor         string     `db:"resume_cursor" json:"resume_cursor,omitempty"`
	SyncedCount          int        `db:"synced_count" json:"synced_count"`
	FailedCount          int        `db:"failed_count" json:"failed_count"`
	TotalResults         int64      `db:"total_results" json:"total_results"`
	LastSyncedAt         *time.Time `db:"last_synced_at" json:"last_synced_at,omitempty"`
	LastError            string     `db:"last_error" json:"last_error,omitempty"`
	InitialSyncCompleted bool       `db:"initial_sync_completed" json:"initial_sync_completed"`
	InProgressAt         *time.Time `db:"in_progress_at" json:"in_progress_at,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}
