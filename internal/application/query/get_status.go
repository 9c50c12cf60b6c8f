// Package query contains read operations (CQRS - Queries).
// Queries never touch the ERP; they serve whatever the last sync cached.
package query

import (
	"context"
	"time"

	"github.com/unitrack-hub/attendance-engine/internal/domain/attendance"
	"github.com/unitrack-hub/attendance-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STATUS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetStatusQuery requests the cached attendance view.
type GetStatusQuery struct {
	// TopN limits the priority list; 0 means all subjects.
	TopN int
}

// StatusView is the cached snapshot plus derived presentation fields.
type StatusView struct {
	// Result is the last successful sync.
	Result *attendance.SyncResult `json:"result"`

	// Priority lists the subjects needing the most attention.
	Priority []attendance.SubjectReport `json:"priority"`

	// Age is how old the snapshot is.
	Age time.Duration `json:"age"`

	// Stale marks a snapshot older than the staleness window.
	Stale bool `json:"stale"`
}

// GetStatusHandler serves the cached snapshot. The ERP being down does not
// matter here; a stale answer beats no answer.
type GetStatusHandler struct {
	store     attendance.SnapshotStore
	staleness time.Duration
	log       *logger.Logger
}

// DefaultStaleness is the snapshot age after which the view is flagged stale.
const DefaultStaleness = 24 * time.Hour

// NewGetStatusHandler creates a new GetStatusHandler. staleness <= 0 uses the
// default window.
func NewGetStatusHandler(store attendance.SnapshotStore, staleness time.Duration, log *logger.Logger) *GetStatusHandler {
	if staleness <= 0 {
		staleness = DefaultStaleness
	}
	return &GetStatusHandler{
		store:     store,
		staleness: staleness,
		log:       log.With(logger.Component("status")),
	}
}

// Handle loads the cached snapshot. A store that has never synced returns
// shared.ErrNeverSynced untouched so callers can render the onboarding state.
func (h *GetStatusHandler) Handle(ctx context.Context, q GetStatusQuery) (*StatusView, error) {
	result, err := h.store.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	topN := q.TopN
	if topN <= 0 {
		topN = len(result.Subjects)
	}

	age := time.Since(result.FetchedAt)
	return &StatusView{
		Result:   result,
		Priority: result.PrioritySubjects(topN),
		Age:      age,
		Stale:    age > h.staleness,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GET THRESHOLDS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetThresholdsHandler serves the active threshold configuration.
type GetThresholdsHandler struct {
	store attendance.SnapshotStore
}

// NewGetThresholdsHandler creates a new GetThresholdsHandler.
func NewGetThresholdsHandler(store attendance.SnapshotStore) *GetThresholdsHandler {
	return &GetThresholdsHandler{store: store}
}

// Handle returns the saved configuration, or the defaults when none exists.
func (h *GetThresholdsHandler) Handle(ctx context.Context) (attendance.ThresholdConfig, error) {
	return h.store.LoadThresholds(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// GET TREND QUERY
// ══════════════════════════════════════════════════════════════════════════════

// TrendPoint is one sync's overall figure, for plotting over time.
type TrendPoint struct {
	FetchedAt         time.Time       `json:"fetchedAt"`
	OverallPercentage float64         `json:"overallPercentage"`
	OverallTier       attendance.Tier `json:"overallTier"`
}

// GetTrendHandler serves overall attendance over time from the sync archive.
type GetTrendHandler struct {
	history attendance.SyncHistory
}

// NewGetTrendHandler creates a new GetTrendHandler.
func NewGetTrendHandler(history attendance.SyncHistory) *GetTrendHandler {
	return &GetTrendHandler{history: history}
}

// Handle returns trend points since the cutoff, oldest first.
func (h *GetTrendHandler) Handle(ctx context.Context, since time.Time) ([]TrendPoint, error) {
	records, err := h.history.Trend(ctx, since)
	if err != nil {
		return nil, err
	}

	points := make([]TrendPoint, 0, len(records))
	for _, rec := range records {
		points = append(points, TrendPoint{
			FetchedAt:         rec.FetchedAt,
			OverallPercentage: rec.OverallPercentage,
			OverallTier:       rec.OverallTier,
		})
	}
	return points, nil
}
