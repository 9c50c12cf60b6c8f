package redis

import (
	"context"
	"errors"

	"github.com/unitrack-hub/attendance-engine/internal/domain/attendance"
	"github.com/unitrack-hub/attendance-engine/internal/domain/shared"
)

// SnapshotCache implements attendance.SnapshotStore on the generic Cache.
// The sync orchestrator is the only writer; everything else reads.
type SnapshotCache struct {
	cache *Cache
	scope string
}

// NewSnapshotCache creates a SnapshotCache. Scope isolates multiple students
// sharing one Redis; empty means the default single-student namespace.
func NewSnapshotCache(cache *Cache, scope string) *SnapshotCache {
	return &SnapshotCache{cache: cache, scope: scope}
}

// LoadSnapshot returns the last saved sync result. A missing key means the
// engine has never synced, which is a domain state, not a cache failure.
func (s *SnapshotCache) LoadSnapshot(ctx context.Context) (*attendance.SyncResult, error) {
	var result attendance.SyncResult
	err := s.cache.Get(ctx, SnapshotKey(s.scope), &result)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, shared.NewDomainError("cache", "LoadSnapshot", shared.ErrNeverSynced, "no snapshot saved yet")
		}
		return nil, shared.WrapError("cache", "LoadSnapshot", shared.ErrStorage, "read snapshot", err)
	}
	return &result, nil
}

// SaveSnapshot overwrites the cached sync result.
func (s *SnapshotCache) SaveSnapshot(ctx context.Context, result *attendance.SyncResult) error {
	if result == nil {
		return shared.NewDomainError("cache", "SaveSnapshot", shared.ErrInvalidInput, "nil sync result")
	}
	if err := s.cache.Set(ctx, SnapshotKey(s.scope), result, TTLSnapshot); err != nil {
		return shared.WrapError("cache", "SaveSnapshot", shared.ErrStorage, "write snapshot", err)
	}
	return nil
}

// LoadThresholds returns the saved threshold configuration, falling back to
// the engine defaults when none was ever saved.
func (s *SnapshotCache) LoadThresholds(ctx context.Context) (attendance.ThresholdConfig, error) {
	var cfg attendance.ThresholdConfig
	err := s.cache.Get(ctx, ThresholdsKey(s.scope), &cfg)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return attendance.DefaultThresholdConfig(), nil
		}
		return attendance.ThresholdConfig{}, shared.WrapError("cache", "LoadThresholds", shared.ErrStorage, "read thresholds", err)
	}
	return cfg, nil
}

// SaveThresholds validates and overwrites the threshold configuration.
func (s *SnapshotCache) SaveThresholds(ctx context.Context, cfg attendance.ThresholdConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := s.cache.Set(ctx, ThresholdsKey(s.scope), cfg, TTLThresholds); err != nil {
		return shared.WrapError("cache", "SaveThresholds", shared.ErrStorage, "write thresholds", err)
	}
	return nil
}

// Clear removes the snapshot and thresholds, returning the store to the
// never-synced state.
func (s *SnapshotCache) Clear(ctx context.Context) error {
	if err := s.cache.Delete(ctx, SnapshotKey(s.scope), ThresholdsKey(s.scope)); err != nil {
		return shared.WrapError("cache", "Clear", shared.ErrStorage, "clear cached state", err)
	}
	return nil
}

var _ attendance.SnapshotStore = (*SnapshotCache)(nil)
