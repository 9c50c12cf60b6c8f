package command

import (
	"context"

	"github.com/unitrack-hub/attendance-engine/internal/domain/attendance"
	"github.com/unitrack-hub/attendance-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE THRESHOLDS COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// UpdateThresholdsCommand replaces the threshold configuration. The next sync
// classifies against it; the cached snapshot keeps its old classification
// until then.
type UpdateThresholdsCommand struct {
	Config attendance.ThresholdConfig
}

// UpdateThresholdsHandler handles the UpdateThresholdsCommand.
type UpdateThresholdsHandler struct {
	store attendance.SnapshotStore
	log   *logger.Logger
}

// NewUpdateThresholdsHandler creates a new UpdateThresholdsHandler.
func NewUpdateThresholdsHandler(store attendance.SnapshotStore, log *logger.Logger) *UpdateThresholdsHandler {
	return &UpdateThresholdsHandler{
		store: store,
		log:   log.With(logger.Component("thresholds")),
	}
}

// Handle validates and persists the new configuration.
func (h *UpdateThresholdsHandler) Handle(ctx context.Context, cmd UpdateThresholdsCommand) error {
	if err := cmd.Config.Validate(); err != nil {
		return err
	}

	if err := h.store.SaveThresholds(ctx, cmd.Config); err != nil {
		return err
	}

	h.log.Info("threshold configuration updated",
		logger.Float64("default_threshold", cmd.Config.DefaultThreshold),
		logger.Int("rules", len(cmd.Config.Rules)))
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CLEAR CACHE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// ClearCacheHandler wipes the local snapshot and thresholds, returning the
// engine to the never-synced state. Sync history is untouched.
type ClearCacheHandler struct {
	store attendance.SnapshotStore
	log   *logger.Logger
}

// NewClearCacheHandler creates a new ClearCacheHandler.
func NewClearCacheHandler(store attendance.SnapshotStore, log *logger.Logger) *ClearCacheHandler {
	return &ClearCacheHandler{
		store: store,
		log:   log.With(logger.Component("cache")),
	}
}

// Handle clears the cached state.
func (h *ClearCacheHandler) Handle(ctx context.Context) error {
	if err := h.store.Clear(ctx); err != nil {
		return err
	}
	h.log.Info("local cache cleared")
	return nil
}
