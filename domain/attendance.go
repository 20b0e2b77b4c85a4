package domain

import "time"

// EventType identifies an attendance report sent to the backend.
type EventType string

const (
	EventJoin      EventType = "join"
	EventLeave     EventType = "leave"
	EventHeartbeat EventType = "heartbeat"
)

// AttendanceEvent is the wire payload POSTed to the attendance endpoint.
// Token is the session-scoped credential mirror, never the durable store.
type AttendanceEvent struct {
	EventType EventType `json:"eventType" validate:"required,oneof=join leave heartbeat"`
	Token     string    `json:"token" validate:"required"`
	Timestamp int64     `json:"timestamp" validate:"gt=0"`
}

// NewAttendanceEvent stamps an event with the current wall clock
// in milliseconds since the epoch.
func NewAttendanceEvent(eventType EventType, token string, at time.Time) AttendanceEvent {
	return AttendanceEvent{
		EventType: eventType,
		Token:     token,
		Timestamp: at.UnixMilli(),
	}
}
