package blackboard

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType is the outcome recorded by a SeedEvent.
type EventType string

const (
	// EventTaught means the live pose was written into a seed slot.
	EventTaught EventType = "taught"
	// EventTeachRejected means a teach edge was seen while not localized.
	EventTeachRejected EventType = "teach_rejected"
	// EventSeedSet means a slot's pose was sent to the Locator as its seed.
	EventSeedSet EventType = "seed_set"
	// EventSetFailed means the Locator rejected or never received the seed.
	EventSetFailed EventType = "set_failed"
	// EventSeedZero means the live pose was mirrored into the current pose block.
	EventSeedZero EventType = "seed_zero"
)

// CurrentPoseSlot is the slot value used for seed zero events.
const CurrentPoseSlot = -1

// SeedEvent is one audited action of the bridge.
type SeedEvent struct {
	ID                string    `json:"id"`
	Type              EventType `json:"type"`
	Slot              int       `json:"slot"`
	X                 float64   `json:"x"`
	Y                 float64   `json:"y"`
	Yaw               float64   `json:"yaw"`
	Enforce           bool      `json:"enforce,omitempty"`
	Uncertain         bool      `json:"uncertain,omitempty"`
	LocalizationState int32     `json:"localization_state,omitempty"`
	Error             string    `json:"error,omitempty"`
	TimestampMs       int64     `json:"timestamp_ms"`
}

// NewSeedEvent returns an event with a fresh ID and the current time.
func NewSeedEvent(t EventType, slot int) *SeedEvent {
	return &SeedEvent{
		ID:          uuid.New().String(),
		Type:        t,
		Slot:        slot,
		TimestampMs: time.Now().UnixMilli(),
	}
}

// Time returns the event timestamp.
func (e *SeedEvent) Time() time.Time {
	return time.UnixMilli(e.TimestampMs)
}

// Failed reports whether the event records a failed action.
func (e *SeedEvent) Failed() bool {
	return e.Type == EventTeachRejected || e.Type == EventSetFailed
}

// Validate checks if the SeedEvent has valid field values.
func (e *SeedEvent) Validate() error {
	if !isValidUUID(e.ID) {
		return fmt.Errorf("invalid event ID: not a valid UUID")
	}
	if err := e.Type.Validate(); err != nil {
		return fmt.Errorf("invalid event type: %w", err)
	}
	if e.Type == EventSeedZero {
		if e.Slot != CurrentPoseSlot {
			return fmt.Errorf("seed zero event must use slot %d, got %d", CurrentPoseSlot, e.Slot)
		}
	} else if e.Slot < 0 {
		return fmt.Errorf("invalid slot: must be >= 0, got %d", e.Slot)
	}
	if e.TimestampMs <= 0 {
		return fmt.Errorf("invalid timestamp: must be > 0")
	}
	return nil
}

// Validate checks if the EventType is a valid enum value.
func (t EventType) Validate() error {
	switch t {
	case EventTaught, EventTeachRejected, EventSeedSet, EventSetFailed, EventSeedZero:
		return nil
	default:
		return fmt.Errorf("unknown event type: %q", t)
	}
}

// CurrentPose is the latest pose mirrored into the PLC as seed zero.
type CurrentPose struct {
	X                 float64
	Y                 float64
	Yaw               float64
	LocalizationState int32
	UpdatedAtMs       int64
}

func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
