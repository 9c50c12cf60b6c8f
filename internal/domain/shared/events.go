package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Engine event types. Host applications subscribe to these to react to sync
// outcomes without polling the cache.
const (
	// Sync lifecycle events
	EventSyncCompleted EventType = "sync.completed"
	EventSyncFailed    EventType = "sync.failed"

	// Classification events
	EventTierChanged EventType = "attendance.tier_changed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// CorrelationID ties the event to the sync that produced it.
	CorrelationID() string
}

// EventHandler processes a published event.
type EventHandler func(event Event) error

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	Correlation string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// CorrelationID implements Event interface.
func (e BaseEvent) CorrelationID() string {
	return e.Correlation
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, correlationID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		Correlation: correlationID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Sync Events
// ═══════════════════════════════════════════════════════════════════════════

// SyncCompletedEvent is emitted after every successful sync.
type SyncCompletedEvent struct {
	BaseEvent
	StudentName       string  `json:"student_name"`
	TotalSubjects     int     `json:"total_subjects"`
	OverallPercentage float64 `json:"overall_percentage"`
	OverallTier       string  `json:"overall_tier"`
	LowCount          int     `json:"low_count"`
}

// NewSyncCompletedEvent creates a new SyncCompletedEvent.
func NewSyncCompletedEvent(correlationID, studentName string, totalSubjects int, overallPct float64, overallTier string, lowCount int) SyncCompletedEvent {
	return SyncCompletedEvent{
		BaseEvent:         NewBaseEvent(EventSyncCompleted, correlationID),
		StudentName:       studentName,
		TotalSubjects:     totalSubjects,
		OverallPercentage: overallPct,
		OverallTier:       overallTier,
		LowCount:          lowCount,
	}
}

// SyncFailedEvent is emitted when a sync fails past all retries.
type SyncFailedEvent struct {
	BaseEvent
	Reason   string `json:"reason"`
	Guidance string `json:"guidance"`
}

// NewSyncFailedEvent creates a new SyncFailedEvent. The guidance string is
// the same hint UserGuidance gives callers.
func NewSyncFailedEvent(correlationID string, err error) SyncFailedEvent {
	return SyncFailedEvent{
		BaseEvent: NewBaseEvent(EventSyncFailed, correlationID),
		Reason:    err.Error(),
		Guidance:  UserGuidance(err),
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Classification Events
// ═══════════════════════════════════════════════════════════════════════════

// TierChangedEvent is emitted for each subject whose risk tier moved between
// two consecutive snapshots. Hosts use it for "Math dropped to LOW" alerts.
type TierChangedEvent struct {
	BaseEvent
	SubjectName string  `json:"subject_name"`
	SubjectCode string  `json:"subject_code"`
	FromTier    string  `json:"from_tier"`
	ToTier      string  `json:"to_tier"`
	Percentage  float64 `json:"percentage"`
}

// NewTierChangedEvent creates a new TierChangedEvent.
func NewTierChangedEvent(correlationID, name, code, from, to string, pct float64) TierChangedEvent {
	return TierChangedEvent{
		BaseEvent:   NewBaseEvent(EventTierChanged, correlationID),
		SubjectName: name,
		SubjectCode: code,
		FromTier:    from,
		ToTier:      to,
		Percentage:  pct,
	}
}
