package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"sparkrt/trace"
)

// tracePrinter renders trace.Events as one colored line per event, the way
// the teacher colors its version fields with fatih/color rather than
// hand-rolling ANSI escapes. Emit may be called from several goroutines at
// once (the tick source and every thread trampoline), so writes are
// serialized here rather than in the kernel.
type tracePrinter struct {
	mu  sync.Mutex
	out io.Writer

	contextSwitch *color.Color
	created       *color.Color
	terminated    *color.Color
	tick          *color.Color
}

func newTracePrinter(out io.Writer, enableColor bool) *tracePrinter {
	tp := &tracePrinter{
		out:           out,
		contextSwitch: color.New(color.FgCyan, color.Bold),
		created:       color.New(color.FgGreen),
		terminated:    color.New(color.FgRed),
		tick:          color.New(color.FgHiBlack),
	}
	if !enableColor {
		for _, c := range []*color.Color{tp.contextSwitch, tp.created, tp.terminated, tp.tick} {
			c.DisableColor()
		}
	}
	return tp
}

// sink adapts the printer to trace.Sink.
func (tp *tracePrinter) sink(ev trace.Event) {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	switch ev.Kind {
	case trace.EventTick:
		if ev.Tick%1000 == 0 && ev.Tick > 0 {
			tp.tick.Fprintf(tp.out, "[%6d] tick\n", ev.Tick)
		}
	case trace.EventContextSwitch:
		tp.contextSwitch.Fprintf(tp.out, "[%6d] -> %-16s (id=%d, %s)\n", ev.Tick, ev.ThreadName, ev.ThreadID, ev.State)
	case trace.EventThreadCreated:
		tp.created.Fprintf(tp.out, "[%6d] created  %-16s (id=%d)\n", ev.Tick, ev.ThreadName, ev.ThreadID)
	case trace.EventThreadTerminated:
		tp.terminated.Fprintf(tp.out, "[%6d] terminated %-14s (id=%d)\n", ev.Tick, ev.ThreadName, ev.ThreadID)
	default:
		fmt.Fprintf(tp.out, "[%6d] %s %s\n", ev.Tick, ev.Kind, ev.ThreadName)
	}
}
