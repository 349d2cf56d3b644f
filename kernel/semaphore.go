package kernel

import "time"

// Semaphore is a counting semaphore bounded by maxCount; maxCount==1 gives
// binary semaphore semantics (§3, §4.10).
type Semaphore struct {
	k *Kernel

	count    uint32
	maxCount uint32

	notRecoverable bool
	waiters        waitList
}

// NewSemaphore creates a semaphore with the given initial count and
// ceiling. initial must not exceed max.
func (k *Kernel) NewSemaphore(initial, max uint32) *Semaphore {
	if max == 0 {
		max = 1
	}
	if initial > max {
		initial = max
	}
	return &Semaphore{k: k, count: initial, maxCount: max}
}

func (s *Semaphore) waitImpl(self *Thread, mode lockMode, dur time.Duration) Status {
	k := s.k
	tok := k.criticalEnter()

	if s.notRecoverable {
		k.criticalExit(tok)
		return StatusNotRecoverable
	}
	if s.count > 0 {
		s.count--
		k.criticalExit(tok)
		return StatusOK
	}
	if mode == lockTry {
		k.criticalExit(tok)
		return StatusAgain
	}

	var reason WakeReason
	if mode == lockTimed {
		reason = k.waitForLocked(self, &s.waiters, dur)
	} else {
		reason = k.parkIndefinitelyLocked(self, &s.waiters)
	}

	switch reason {
	case WakeTimeout:
		k.criticalExit(tok)
		return StatusTimedOut
	case WakeInterrupted:
		k.criticalExit(tok)
		return StatusInterrupted
	}
	if s.notRecoverable {
		k.criticalExit(tok)
		return StatusNotRecoverable
	}
	// Post handed the unit to us directly without incrementing count (see
	// Post); we only observed the event.
	k.criticalExit(tok)
	return StatusOK
}

// SemWait blocks until the count is positive, then decrements it.
func (t *Thread) SemWait(s *Semaphore) Status { return s.waitImpl(t, lockIndefinite, 0) }

// TrySemWait returns StatusAgain instead of blocking on a zero count.
func (t *Thread) TrySemWait(s *Semaphore) Status { return s.waitImpl(t, lockTry, 0) }

// TimedSemWait blocks at most dur.
func (t *Thread) TimedSemWait(s *Semaphore, dur time.Duration) Status {
	return s.waitImpl(t, lockTimed, dur)
}

// Post increments the count, or directly hands the unit to the
// highest-priority waiter if one is parked, and is safe from ISR context
// (§4.10). Posting past maxCount reports StatusOverflow and leaves the
// count unchanged.
func (s *Semaphore) Post() Status {
	k := s.k
	var caller *Thread
	if !k.InISR() {
		caller = k.Current()
	}
	tok := k.criticalEnter()

	if s.notRecoverable {
		k.criticalExit(tok)
		return StatusNotRecoverable
	}

	next := s.waiters.popHighest()
	if next != nil {
		// Hand off directly: the unit is consumed by next, count stays put.
		k.unparkLocked(next, WakeEvent)
		k.rescheduleLocked(caller)
		k.criticalExit(tok)
		if caller != nil {
			k.gate(caller)
		}
		return StatusOK
	}

	if s.count >= s.maxCount {
		k.criticalExit(tok)
		return StatusOverflow
	}
	s.count++
	k.criticalExit(tok)
	return StatusOK
}

// Count returns the current available count.
func (s *Semaphore) Count() uint32 {
	k := s.k
	tok := k.criticalEnter()
	defer k.criticalExit(tok)
	return s.count
}

// Reset fails every waiter in place with StatusNotRecoverable and leaves
// the semaphore permanently unusable (§9 open question resolution: reset
// on a primitive with waiters fails them rather than silently discarding
// them or blocking the resetter).
func (s *Semaphore) Reset() Status {
	k := s.k
	var caller *Thread
	if !k.InISR() {
		caller = k.Current()
	}
	tok := k.criticalEnter()
	s.notRecoverable = true
	for _, w := range s.waiters.drain() {
		k.unparkLocked(w, WakeEvent)
	}
	k.rescheduleLocked(caller)
	k.criticalExit(tok)
	if caller != nil {
		k.gate(caller)
	}
	return StatusOK
}
