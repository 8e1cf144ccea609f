package midi

import (
	"time"

	"github.com/noiseloop/midicollab/pkg/expression"
)

// EventType classifies an event MIR emits after normalizing raw input.
type EventType int

const (
	EventNoteTriggered EventType = iota
	EventNoteReleased
	EventExpressionChanged
)

// String implements fmt.Stringer for readable logs.
func (t EventType) String() string {
	switch t {
	case EventNoteTriggered:
		return "NoteTriggered"
	case EventNoteReleased:
		return "NoteReleased"
	case EventExpressionChanged:
		return "ExpressionChanged"
	default:
		return "Unknown"
	}
}

// Event is one classified, routed MIDI event: a note lifecycle transition
// or a per-note expression update, carrying the record it concerns.
type Event struct {
	Type      EventType
	Record    *expression.Record
	Timestamp time.Time
}

// EventSink is a bounded, non-blocking event channel. Per DESIGN NOTES §9
// ("Avoid unbounded subscriber lists... push into bounded channels, and let
// the consumer decide to drop or coalesce"), a full sink drops the event
// rather than blocking the audio-rate caller.
type EventSink struct {
	ch chan Event
}

// NewEventSink creates a sink buffering up to capacity events.
func NewEventSink(capacity int) *EventSink {
	if capacity <= 0 {
		capacity = 256
	}
	return &EventSink{ch: make(chan Event, capacity)}
}

// Push attempts to enqueue an event, dropping it if the sink is full. It
// never blocks, preserving MIR's non-suspending contract (spec.md §5).
func (s *EventSink) Push(e Event) (delivered bool) {
	select {
	case s.ch <- e:
		return true
	default:
		return false
	}
}

// C exposes the receive side for consumers to range over or select on.
func (s *EventSink) C() <-chan Event { return s.ch }
