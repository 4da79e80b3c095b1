// Package analytics records the lifecycle of the add-expense form as an
// ordered, instance-scoped event trail.
package analytics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Name identifies a lifecycle event.
type Name string

const (
	EventOpen            Name = "open"
	EventValidationError Name = "validation-error"
	EventSubmitStart     Name = "submit-start"
	EventSubmitSuccess   Name = "submit-success"
	EventSubmitError     Name = "submit-error"
	EventSaveAddAnother  Name = "save-add-another"
	EventDiscardPrompted Name = "cancel-discard-prompted"
)

// Payload keys.
const (
	KeyServerID       = "server_id"
	KeyLatencyMS      = "latency_ms"
	KeyClassification = "classification"
	KeyStatus         = "status"
	KeyRetry          = "retry"
	KeyFields         = "fields"
)

// Payload is the free-form body of an event.
type Payload map[string]any

// Event is one stamped entry of a trail.
type Event struct {
	InstanceID string    `json:"instance_id"`
	Seq        int64     `json:"seq"`
	Name       Name      `json:"name"`
	Payload    Payload   `json:"payload,omitempty"`
	At         time.Time `json:"at"`
}

// Emitter accepts events without reporting anything back.
type Emitter interface {
	Emit(name Name, payload Payload)
}

// Sink is where stamped events end up. Write must not block for long and
// handles its own failures.
type Sink interface {
	Write(e Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Write(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Session stamps events of one form open with a shared instance id and a
// strictly increasing sequence number.
type Session struct {
	id   string
	sink Sink
	now  func() time.Time
	seq  atomic.Int64
}

// NewSession starts a trail with a fresh instance id. A nil now uses
// time.Now.
func NewSession(sink Sink, now func() time.Time) *Session {
	if sink == nil {
		sink = Discard
	}
	if now == nil {
		now = time.Now
	}
	return &Session{id: uuid.NewString(), sink: sink, now: now}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Emit(name Name, payload Payload) {
	s.sink.Write(Event{
		InstanceID: s.id,
		Seq:        s.seq.Add(1),
		Name:       name,
		Payload:    payload,
		At:         s.now().UTC(),
	})
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Write(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Names lists the recorded event names in order.
func (r *Recorder) Names() []Name {
	events := r.Events()
	out := make([]Name, len(events))
	for i, e := range events {
		out[i] = e.Name
	}
	return out
}

// Last returns the most recent event with the given name.
func (r *Recorder) Last(name Name) (Event, bool) {
	events := r.Events()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Name == name {
			return events[i], true
		}
	}
	return Event{}, false
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

type multi []Sink

func (m multi) Write(e Event) {
	for _, s := range m {
		s.Write(e)
	}
}

// Multi fans events out to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	var out multi
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}
