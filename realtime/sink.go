package realtime

import (
	"context"

	"care-chat/domain/event"
	"care-chat/errors"
)

// Sink is the buffered channel behind one websocket connection. The session's
// write pump drains it; producers go through Consume and never block past
// their context.
type Sink struct {
	events chan event.Event
}

func NewSink(bufferSize int) *Sink {
	return &Sink{events: make(chan event.Event, bufferSize)}
}

// Consume hands an event to the connection's write pump. When the buffer is
// full the event is dropped and reported; realtime signals are best effort
// and a slow client must not stall its counterpart.
func (s *Sink) Consume(ctx context.Context, e event.Event) error {
	select {
	case s.events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.ErrChannelFull
	}
}

// Events exposes the drain side to the write pump.
func (s *Sink) Events() <-chan event.Event {
	return s.events
}
