package sync

import "errors"

// ErrSyncInProgress is returned when another run already holds a source's
// in-progress claim.
var ErrSyncInProgress = errors.New("sync_in_progress")

// ErrTickInProgress is returned when a tick is refused because the previous
// one has not finished.
var ErrTickInProgress = errors.New("tick_in_progress")
