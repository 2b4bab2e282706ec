package sync

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestPrunerDeletesOnlyExpiredRows(t *testing.T) {
	repo := &memQuotaRepo{}
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	repo.seed(now.Add(-31*24*time.Hour), 10)             // expired
	repo.seed(now.Add(-30*24*time.Hour-time.Minute), 10) // expired
	repo.seed(now.Add(-29*24*time.Hour), 10)             // retained
	repo.seed(now.Add(-time.Hour), 10)                   // retained

	p := NewPruner(repo, 30*24*time.Hour, time.Hour, zerolog.Nop())
	p.now = func() time.Time { return now }

	deleted, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	repo.mu.Lock()
	remaining := len(repo.records)
	repo.mu.Unlock()
	if remaining != 2 {
		t.Errorf("remaining rows = %d, want 2", remaining)
	}

	// A second run is a no-op.
	deleted, err = p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if deleted != 0 {
		t.Errorf("second run deleted = %d, want 0", deleted)
	}
}
