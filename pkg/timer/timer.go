// Package timer defines the scheduling collaborator: a handler parks a token
// by asking for a notification to be redelivered at a future time.
package timer

import (
	"context"
	"time"
)

// Scheduler redelivers the payload as a notification with the given name
// once the fire time is reached.
type Scheduler interface {
	ScheduleAt(ctx context.Context, at time.Time, event string, payload any) error
}

// ScheduleRequest is the wire payload of a schedule notification: redeliver
// Payload under the Event name at Time.
type ScheduleRequest struct {
	Event   string    `json:"event"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload"`
}
