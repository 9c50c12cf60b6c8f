package attendance

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERSISTENCE CONTRACTS
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotStore is the local cache the engine reads when the ERP is
// unreachable. The sync orchestrator is its only writer. A store with no
// snapshot answers with shared.ErrNeverSynced; that is the "never synced"
// state, not a failure.
type SnapshotStore interface {
	// LoadSnapshot returns the last saved sync result.
	LoadSnapshot(ctx context.Context) (*SyncResult, error)

	// SaveSnapshot overwrites the cached sync result.
	SaveSnapshot(ctx context.Context, result *SyncResult) error

	// LoadThresholds returns the saved threshold configuration, or the
	// engine defaults when none was ever saved.
	LoadThresholds(ctx context.Context) (ThresholdConfig, error)

	// SaveThresholds overwrites the threshold configuration.
	SaveThresholds(ctx context.Context, cfg ThresholdConfig) error

	// Clear removes the snapshot and thresholds, returning the store to the
	// never-synced state.
	Clear(ctx context.Context) error
}

// SyncRecord is one archived sync, kept for trend queries. Unlike the
// snapshot, history is append-only.
type SyncRecord struct {
	ID                string    `json:"id"`
	StudentName       string    `json:"studentName"`
	Institution       string    `json:"institution"`
	TotalSubjects     int       `json:"totalSubjects"`
	OverallPresent    int       `json:"overallPresent"`
	OverallTotal      int       `json:"overallTotal"`
	OverallPercentage float64   `json:"overallPercentage"`
	OverallTier       Tier      `json:"overallTier"`
	Subjects          []Subject `json:"subjects"`
	FetchedAt         time.Time `json:"fetchedAt"`
}

// SyncHistory archives completed syncs. Archive failures never fail a sync.
type SyncHistory interface {
	// Record appends one sync to the archive.
	Record(ctx context.Context, rec SyncRecord) error

	// Recent returns the most recent syncs, newest first.
	Recent(ctx context.Context, limit int) ([]SyncRecord, error)

	// Trend returns syncs fetched at or after the cutoff, oldest first, for
	// plotting attendance over time.
	Trend(ctx context.Context, since time.Time) ([]SyncRecord, error)
}
