// internal/events/handler.go
package events

import (
	"context"
	"sync"
)

// Handler processes events of a specific type.
type Handler interface {
	// Handle processes an event. Should not block.
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts an ordinary function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Subscription represents a subscription to events.
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	id       string
	eventBus *Bus
	typ      EventType
}

func (s *subscription) Unsubscribe() {
	s.eventBus.unsubscribe(s.id, s.typ)
}

// Journal keeps the most recent events it handles, oldest first.
type Journal struct {
	mu     sync.Mutex
	limit  int
	events []Event
}

// NewJournal keeps at most limit events; limit <= 0 keeps everything.
func NewJournal(limit int) *Journal {
	return &Journal{limit: limit}
}

func (j *Journal) Handle(_ context.Context, event Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.events = append(j.events, event)
	if j.limit > 0 && len(j.events) > j.limit {
		j.events = append(j.events[:0:0], j.events[len(j.events)-j.limit:]...)
	}
	return nil
}

// Events returns a copy of the journal.
func (j *Journal) Events() []Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Event(nil), j.events...)
}
