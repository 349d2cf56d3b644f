// Package trace is the kernel core's only diagnostic-output seam. The
// core itself never logs (see SPEC_FULL.md, "Logging"); it exists so an
// embedder can observe scheduling activity without the core depending
// on any particular logging library, mirroring how the teacher's
// kernel exposes kernel.SetPanicHandler as a process-wide callback
// slot rather than importing a logger.
package trace

import "sync/atomic"

// EventKind classifies one trace.Event.
type EventKind uint8

const (
	EventContextSwitch EventKind = iota
	EventThreadCreated
	EventThreadTerminated
	EventStateChange
	EventTick
)

func (k EventKind) String() string {
	switch k {
	case EventContextSwitch:
		return "context-switch"
	case EventThreadCreated:
		return "thread-created"
	case EventThreadTerminated:
		return "thread-terminated"
	case EventStateChange:
		return "state-change"
	case EventTick:
		return "tick"
	default:
		return "unknown"
	}
}

// Event is one reported occurrence. ThreadID/ThreadName/State are only
// meaningful for kinds that concern a single thread.
type Event struct {
	Kind       EventKind
	Tick       uint64
	ThreadID   uint32
	ThreadName string
	State      string
}

// Sink receives trace events. It must not block or call back into the
// kernel: some call sites invoke it while still holding the kernel's
// critical section.
type Sink func(Event)

var sink atomic.Value // holds Sink

// SetSink installs the process-wide trace sink, replacing any previous
// one. Passing nil disables tracing.
func SetSink(s Sink) {
	if s == nil {
		sink.Store(Sink(func(Event) {}))
		return
	}
	sink.Store(s)
}

// Emit reports ev to the installed sink, if any. Safe to call with no
// sink installed.
func Emit(ev Event) {
	v := sink.Load()
	if v == nil {
		return
	}
	v.(Sink)(ev)
}

func init() {
	sink.Store(Sink(func(Event) {}))
}
