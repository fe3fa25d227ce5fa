package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/hostel-dispatch/internal/events"
)

// publishEvent stamps id and time and hands the event to the dispatcher.
// Handler failures are logged by the dispatcher and never fail the write.
func publishEvent(ctx context.Context, dispatcher events.Dispatcher, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_ = dispatcher.Publish(ctx, event)
}
