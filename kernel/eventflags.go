package kernel

import "time"

// EventFlags is a shared bitmask any thread may wait on or raise (§3,
// §4.11). Unlike per-thread signal flags, Raise wakes every waiter whose
// predicate is now satisfied, not just one.
type EventFlags struct {
	k *Kernel

	pending        uint32
	notRecoverable bool
	waiters        waitList
}

// NewEventFlags creates an event-flags group with all bits initially clear.
func (k *Kernel) NewEventFlags() *EventFlags {
	return &EventFlags{k: k}
}

func (e *EventFlags) waitImpl(self *Thread, mask uint32, mode SigMode, mode2 lockMode, dur time.Duration) (uint32, Status) {
	k := e.k
	tok := k.criticalEnter()

	if e.notRecoverable {
		k.criticalExit(tok)
		return 0, StatusNotRecoverable
	}
	if sigSatisfied(e.pending, mask, mode) {
		got := e.pending
		if mode&SigClear != 0 {
			e.pending &^= mask
		}
		k.criticalExit(tok)
		return got, StatusOK
	}
	if mode2 == lockTry {
		k.criticalExit(tok)
		return e.pending, StatusAgain
	}

	self.sigWaitMask, self.sigWaitMode, self.sigWaiting = mask, mode, true

	var reason WakeReason
	if mode2 == lockTimed {
		reason = k.waitForLocked(self, &e.waiters, dur)
	} else {
		reason = k.parkIndefinitelyLocked(self, &e.waiters)
	}
	self.sigWaiting = false

	if e.notRecoverable {
		k.criticalExit(tok)
		return 0, StatusNotRecoverable
	}

	switch reason {
	case WakeTimeout:
		k.criticalExit(tok)
		return e.pending, StatusTimedOut
	case WakeInterrupted:
		k.criticalExit(tok)
		return e.pending, StatusInterrupted
	default:
		got := e.pending
		if mode&SigClear != 0 {
			got = self.observedAtWake
		}
		k.criticalExit(tok)
		return got, StatusOK
	}
}

// WaitFlags blocks until mask's predicate (per mode) is satisfied, returning the
// flags observed at wake.
func (t *Thread) WaitFlags(e *EventFlags, mask uint32, mode SigMode) (uint32, Status) {
	if t.k.InISR() {
		return 0, StatusNotPermitted
	}
	return e.waitImpl(t, mask, mode, lockIndefinite, 0)
}

// TryWaitFlags never blocks.
func (t *Thread) TryWaitFlags(e *EventFlags, mask uint32, mode SigMode) (uint32, Status) {
	return e.waitImpl(t, mask, mode, lockTry, 0)
}

// TimedWaitFlags blocks at most dur.
func (t *Thread) TimedWaitFlags(e *EventFlags, mask uint32, mode SigMode, dur time.Duration) (uint32, Status) {
	if t.k.InISR() {
		return 0, StatusNotPermitted
	}
	return e.waitImpl(t, mask, mode, lockTimed, dur)
}

// Raise ORs mask into the pending flags and wakes every waiter whose
// predicate is now satisfied, in priority order (§4.11). Safe from ISR
// context.
func (e *EventFlags) Raise(mask uint32) Status {
	k := e.k
	var caller *Thread
	if !k.InISR() {
		caller = k.Current()
	}
	tok := k.criticalEnter()
	e.pending |= mask

	// The wait list is priority-sorted, not predicate-sorted: a waiter's
	// mask may or may not match regardless of where it sits relative to
	// others, so every parked thread must be examined, not just a
	// contiguous prefix.
	var woke []*Thread
	for w := e.waiters.peekHighest(); w != nil; {
		next := w.waitNext
		if sigSatisfied(e.pending, w.sigWaitMask, w.sigWaitMode) {
			e.waiters.remove(w)
			woke = append(woke, w)
		}
		w = next
	}

	for _, w := range woke {
		w.observedAtWake = e.pending
		if w.sigWaitMode&SigClear != 0 {
			e.pending &^= w.sigWaitMask
		}
		w.sigWaiting = false
		k.unparkLocked(w, WakeEvent)
	}
	if len(woke) > 0 {
		k.rescheduleLocked(caller)
	}
	k.criticalExit(tok)
	if caller != nil {
		k.gate(caller)
	}
	return StatusOK
}

// Clear clears mask's bits and returns the bits that were set beforehand.
func (e *EventFlags) Clear(mask uint32) uint32 {
	k := e.k
	tok := k.criticalEnter()
	defer k.criticalExit(tok)
	prev := e.pending & mask
	e.pending &^= mask
	return prev
}

// Get returns the current pending flags.
func (e *EventFlags) Get() uint32 {
	k := e.k
	tok := k.criticalEnter()
	defer k.criticalExit(tok)
	return e.pending
}

// Waiting reports whether any thread is currently parked on e.
func (e *EventFlags) Waiting() bool {
	k := e.k
	tok := k.criticalEnter()
	defer k.criticalExit(tok)
	return !e.waiters.empty()
}

// Reset fails every waiter in place with StatusNotRecoverable (§9 open
// question resolution).
func (e *EventFlags) Reset() Status {
	k := e.k
	var caller *Thread
	if !k.InISR() {
		caller = k.Current()
	}
	tok := k.criticalEnter()
	e.notRecoverable = true
	for _, w := range e.waiters.drain() {
		w.sigWaiting = false
		k.unparkLocked(w, WakeEvent)
	}
	k.rescheduleLocked(caller)
	k.criticalExit(tok)
	if caller != nil {
		k.gate(caller)
	}
	return StatusOK
}
