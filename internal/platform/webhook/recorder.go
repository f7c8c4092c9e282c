// Package webhook records integration events: both webhooks posted by
// external systems and events published internally when requisitions,
// stock cards or FHIR resources change. Events live in a bounded
// in-memory ring, newest first.
package webhook

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lmis/lmis/internal/platform/fhir"
)

// MaxEvents bounds the ring; the oldest events fall off the end.
const MaxEvents = 100

// Event is one recorded integration event.
type Event struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Payload   any    `json:"payload"`
}

// Recorder keeps the event ring. It implements the EventPublisher interface
// the domain handlers publish through.
type Recorder struct {
	mu     sync.RWMutex
	events []Event

	now func() time.Time
}

func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// Record stores an event and returns it. Newest events come first; the
// ring is trimmed to MaxEvents.
func (r *Recorder) Record(source, eventType string, payload any) Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev := Event{
		ID:        uuid.NewString(),
		Source:    source,
		Type:      eventType,
		Timestamp: fhir.Timestamp(r.now()),
		Payload:   payload,
	}
	r.events = append([]Event{ev}, r.events...)
	if len(r.events) > MaxEvents {
		r.events = r.events[:MaxEvents]
	}
	return ev
}

// Publish satisfies the domain handlers' EventPublisher interface.
func (r *Recorder) Publish(source, eventType string, payload any) {
	r.Record(source, eventType, payload)
}

// Query narrows event listings. Limit <= 0 falls back to 50.
type Query struct {
	Source string
	Type   string
	Limit  int
}

// List returns matching events newest first, plus the total match count
// before the limit was applied.
func (r *Recorder) List(q Query) ([]Event, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := []Event{}
	for _, ev := range r.events {
		if q.Source != "" && ev.Source != q.Source {
			continue
		}
		if q.Type != "" && ev.Type != q.Type {
			continue
		}
		matched = append(matched, ev)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	total := len(matched)
	if limit < total {
		matched = matched[:limit]
	}
	return matched, total
}

// Clear drops all recorded events.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Len reports the current ring size.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}
