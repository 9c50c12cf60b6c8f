// Package command contains write operations (CQRS - Commands).
// Commands are responsible for changing the state of the system.
package command

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unitrack-hub/attendance-engine/internal/domain/attendance"
	"github.com/unitrack-hub/attendance-engine/internal/domain/shared"
	"github.com/unitrack-hub/attendance-engine/internal/infrastructure/external/erp"
	"github.com/unitrack-hub/attendance-engine/pkg/logger"
	"github.com/unitrack-hub/attendance-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// SYNC ATTENDANCE COMMAND
// The full pipeline: acquire session, fetch payload, normalize, classify,
// persist. This is the engine's single write path.
// ══════════════════════════════════════════════════════════════════════════════

// SyncAttendanceCommand contains the data needed to run one sync.
type SyncAttendanceCommand struct {
	// Username and Password are forwarded to the session acquirer and
	// discarded when the command completes. Browser-driven strategies where
	// the human logs in directly may leave them empty.
	Username string
	Password string

	// CorrelationID for tracing. Generated when empty.
	CorrelationID string
}

// SyncAttendanceResult contains the outcome of a sync.
type SyncAttendanceResult struct {
	// Result is the assembled attendance snapshot.
	Result *attendance.SyncResult

	// CorrelationID identifies this sync in logs.
	CorrelationID string

	// StorageErr is set when the fetch succeeded but the snapshot could not
	// be saved. The result above is still valid and returned to the caller.
	StorageErr error

	// Duration is how long the sync took end to end.
	Duration time.Duration
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// PayloadFetcher retrieves the raw attendance payload with a session.
type PayloadFetcher interface {
	Fetch(ctx context.Context, session *erp.Session) ([]erp.RawRecord, error)
}

// PayloadNormalizer maps the raw payload into domain values.
type PayloadNormalizer interface {
	Normalize(payload []erp.RawRecord) (attendance.StudentProfile, []attendance.Subject, error)
}

// EventPublisher broadcasts engine events to host subscribers.
type EventPublisher interface {
	Publish(event shared.Event) error
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// SyncAttendanceHandler handles the SyncAttendanceCommand. At most one sync
// runs per handler instance; concurrent calls fail fast with
// shared.ErrSyncInProgress instead of queueing logins against the ERP.
type SyncAttendanceHandler struct {
	acquirer   erp.Acquirer
	fetcher    PayloadFetcher
	normalizer PayloadNormalizer
	store      attendance.SnapshotStore
	history    attendance.SyncHistory // optional, best effort
	events     EventPublisher         // optional
	retrier    *retry.Retrier
	log        *logger.Logger

	mu sync.Mutex // held for the whole sync, TryLock on entry
}

// NewSyncAttendanceHandler creates a new SyncAttendanceHandler. history and
// events may be nil when no archive or bus is configured.
func NewSyncAttendanceHandler(
	acquirer erp.Acquirer,
	fetcher PayloadFetcher,
	normalizer PayloadNormalizer,
	store attendance.SnapshotStore,
	history attendance.SyncHistory,
	events EventPublisher,
	log *logger.Logger,
) *SyncAttendanceHandler {
	return &SyncAttendanceHandler{
		acquirer:   acquirer,
		fetcher:    fetcher,
		normalizer: normalizer,
		store:      store,
		history:    history,
		events:     events,
		retrier: retry.New(
			retry.WithMaxAttempts(3),
			retry.WithInitialDelay(2*time.Second),
			retry.WithMaxDelay(15*time.Second),
			retry.WithJitter(0.2),
			retry.WithRetryIf(shared.IsRetryable),
		),
		log: log.With(logger.Component("sync")),
	}
}

// Handle executes one sync. On storage failure after a successful fetch the
// result is still returned, with StorageErr set; every other failure returns
// a nil result and a classified error.
func (h *SyncAttendanceHandler) Handle(ctx context.Context, cmd SyncAttendanceCommand) (*SyncAttendanceResult, error) {
	if !h.mu.TryLock() {
		return nil, shared.NewDomainError("sync", "Handle", shared.ErrSyncInProgress, "another sync is already running")
	}
	defer h.mu.Unlock()

	if cmd.CorrelationID == "" {
		cmd.CorrelationID = uuid.NewString()
	}
	log := h.log.With(logger.SyncID(cmd.CorrelationID))
	started := time.Now()

	thresholds, err := h.store.LoadThresholds(ctx)
	if err != nil {
		// Unreadable thresholds degrade to defaults; the sync itself can
		// still deliver fresh data.
		log.Warn("falling back to default thresholds", logger.Err(err))
		thresholds = attendance.DefaultThresholdConfig()
	}

	payload, err := h.acquireAndFetch(ctx, cmd, log)
	if err != nil {
		h.publish(shared.NewSyncFailedEvent(cmd.CorrelationID, err))
		return nil, err
	}

	profile, subjects, err := h.normalizer.Normalize(payload)
	if err != nil {
		h.publish(shared.NewSyncFailedEvent(cmd.CorrelationID, err))
		return nil, err
	}

	// The outgoing snapshot is needed for tier-change events before it gets
	// overwritten. A miss just means no diff to report.
	previous, _ := h.store.LoadSnapshot(ctx)

	result := attendance.Analyze(profile, subjects, thresholds, time.Now().UTC())
	log.Info("sync complete",
		logger.SubjectCount(result.Summary.TotalSubjects),
		logger.OverallPct(result.Summary.OverallPercentage),
		logger.Latency(time.Since(started)))

	out := &SyncAttendanceResult{
		Result:        result,
		CorrelationID: cmd.CorrelationID,
		Duration:      time.Since(started),
	}

	if err := h.store.SaveSnapshot(ctx, result); err != nil {
		log.Error("snapshot save failed, returning unsaved result", logger.Err(err))
		out.StorageErr = err
	}

	h.archive(ctx, cmd.CorrelationID, result, log)
	h.announce(cmd.CorrelationID, previous, result)

	return out, nil
}

// announce publishes the sync outcome and any tier movements since the
// previous snapshot.
func (h *SyncAttendanceHandler) announce(id string, previous, result *attendance.SyncResult) {
	if h.events == nil {
		return
	}

	h.publish(shared.NewSyncCompletedEvent(
		id,
		result.Profile.Name,
		result.Summary.TotalSubjects,
		result.Summary.OverallPercentage,
		string(result.Summary.OverallTier),
		result.Summary.LowCount,
	))

	if previous == nil {
		return
	}

	prevTiers := make(map[string]attendance.Tier, len(previous.Subjects))
	for _, s := range previous.Subjects {
		prevTiers[s.Code+"|"+s.Name] = s.Tier
	}

	for _, s := range result.Subjects {
		before, seen := prevTiers[s.Code+"|"+s.Name]
		if !seen || before == s.Tier {
			continue
		}
		h.publish(shared.NewTierChangedEvent(id, s.Name, s.Code, string(before), string(s.Tier), s.Percentage))
	}
}

// publish sends an event when a bus is wired. Publish failures are logged
// only; events are advisory.
func (h *SyncAttendanceHandler) publish(event shared.Event) {
	if h.events == nil {
		return
	}
	if err := h.events.Publish(event); err != nil {
		h.log.Warn("event publish failed", logger.Err(err))
	}
}

// acquireAndFetch runs the session acquisition and payload fetch as one
// retryable unit: a fetch that fails because the session died needs a fresh
// login, not a bare re-fetch.
func (h *SyncAttendanceHandler) acquireAndFetch(ctx context.Context, cmd SyncAttendanceCommand, log *logger.Logger) ([]erp.RawRecord, error) {
	creds := erp.Credentials{Username: cmd.Username, Password: cmd.Password}

	var payload []erp.RawRecord
	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		session, err := h.acquirer.Acquire(ctx, creds)
		if err != nil {
			return err
		}

		payload, err = h.fetcher.Fetch(ctx, session)
		return err
	})
	if err != nil {
		log.Warn("acquire/fetch failed", logger.Err(err))
		return nil, err
	}
	return payload, nil
}

// archive records the sync in the history store. Best effort: the archive is
// for trends, losing a row never fails a sync.
func (h *SyncAttendanceHandler) archive(ctx context.Context, id string, result *attendance.SyncResult, log *logger.Logger) {
	if h.history == nil {
		return
	}

	subjects := make([]attendance.Subject, 0, len(result.Subjects))
	for _, r := range result.Subjects {
		subjects = append(subjects, r.Subject)
	}

	rec := attendance.SyncRecord{
		ID:                id,
		StudentName:       result.Profile.Name,
		Institution:       result.Profile.Institution,
		TotalSubjects:     result.Summary.TotalSubjects,
		OverallPresent:    result.Summary.OverallPresent,
		OverallTotal:      result.Summary.OverallTotal,
		OverallPercentage: result.Summary.OverallPercentage,
		OverallTier:       result.Summary.OverallTier,
		Subjects:          subjects,
		FetchedAt:         result.FetchedAt,
	}

	if err := h.history.Record(ctx, rec); err != nil {
		log.Warn("history archive failed", logger.Err(err))
	}
}
