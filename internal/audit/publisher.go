package audit

import (
	"context"
	"time"
)

// Publisher records audit events.
type Publisher interface {
	Emit(ctx context.Context, e Event)
}

// Noop discards every event. Used when no broker is configured.
type Noop struct{}

func (Noop) Emit(context.Context, Event) {}

func stamp(e Event, now func() time.Time) Event {
	if e.Timestamp.IsZero() {
		e.Timestamp = now().UTC()
	}
	return e
}
