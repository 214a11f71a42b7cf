// Package trace is the narrow instrumentation interface consumed by the
// scheduler (spec §6: "Tracing: trace_append(class, id, ...) — no-op when
// disabled"). It is component G, "Instrumentation hooks", from the
// overview table: a tap the scheduler calls unconditionally, which is free
// when no real backend is installed.
package trace

import "github.com/google/uuid"

// Class identifies the kind of event being traced.
type Class int

const (
	ClassParcel Class = iota
	ClassWorker
	ClassLCO
	ClassSteal
)

func (c Class) String() string {
	switch c {
	case ClassParcel:
		return "parcel"
	case ClassWorker:
		return "worker"
	case ClassLCO:
		return "lco"
	case ClassSteal:
		return "steal"
	default:
		return "unknown"
	}
}

// Field is a single key/value pair attached to an event.
type Field struct {
	Key   string
	Value any
}

// F is a convenience constructor for a Field.
func F(key string, value any) Field { return Field{Key: key, Value: value} }

// Sink receives trace events. Implementations must not block the caller
// for long: Append runs inline on the worker calling out to it.
type Sink interface {
	Append(class Class, id string, fields ...Field)
}

// NoopSink drops every event; it is the default and costs one interface
// call per event.
type NoopSink struct{}

func (NoopSink) Append(Class, string, ...Field) {}

// Event is a single recorded trace point, captured by ChannelSink.
type Event struct {
	Class  Class
	ID     string
	Fields []Field
}

// ChannelSink buffers events onto a channel for tests that assert on
// ordering or content. Append drops events if the channel is full rather
// than blocking the worker.
type ChannelSink struct {
	ch chan Event
}

// NewChannelSink creates a ChannelSink with the given buffer capacity.
func NewChannelSink(capacity int) *ChannelSink {
	return &ChannelSink{ch: make(chan Event, capacity)}
}

func (s *ChannelSink) Append(class Class, id string, fields ...Field) {
	select {
	case s.ch <- Event{Class: class, ID: id, Fields: fields}:
	default:
	}
}

// Events exposes the channel for draining in tests.
func (s *ChannelSink) Events() <-chan Event { return s.ch }

// NewID generates a correlation id for a parcel the first time it's
// needed by a non-noop sink. Cheap to call repeatedly; callers should
// cache the result on the parcel.
func NewID() string {
	return uuid.NewString()
}

// Enabled reports whether s is something other than the default
// NoopSink, so a caller can skip generating a correlation id (NewID)
// when nothing will ever read it.
func Enabled(s Sink) bool {
	_, noop := s.(NoopSink)
	return !noop
}
