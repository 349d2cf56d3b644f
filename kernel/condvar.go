package kernel

import "time"

// CondVar is a waitset paired with a caller-supplied mutex; it does not
// own the mutex (§3, §4.9).
type CondVar struct {
	k       *Kernel
	waiters waitList
}

// NewCondVar creates a condition variable.
func (k *Kernel) NewCondVar() *CondVar {
	return &CondVar{k: k}
}

// Wait atomically releases m and parks the caller, then re-acquires m
// before returning. Spurious wakes are not permitted: StatusOK here always
// corresponds to an observed Signal/Broadcast (§4.9).
func (c *CondVar) Wait(self *Thread, m *Mutex) Status {
	return c.waitImpl(self, m, false, 0)
}

// TimedWait is Wait with a deadline.
func (c *CondVar) TimedWait(self *Thread, m *Mutex, dur time.Duration) Status {
	return c.waitImpl(self, m, true, dur)
}

func (c *CondVar) waitImpl(self *Thread, m *Mutex, timed bool, dur time.Duration) Status {
	k := c.k
	if k.InISR() {
		return StatusNotPermitted
	}

	// Release the mutex and park on c.waiters in the same critical section
	// (§4.9 "atomically releases the mutex and parks the caller"). Calling
	// the full Unlock here instead would let it hand the mutex to another
	// waiter and reschedule away from self before self ever reaches
	// c.waiters — a lost-wakeup window: a racing Signal sees no one parked
	// yet and is a no-op, and self then parks only after the event it
	// needed has already passed.
	tok := k.criticalEnter()
	if st := m.unlockLocked(self); st != StatusOK {
		k.criticalExit(tok)
		return st
	}

	var deadline *uint64
	if timed {
		d := k.clock.now() + k.durationToTicks(dur)
		deadline = &d
	}
	k.parkLocked(self, &c.waiters, deadline)
	reason := k.blockUntilWoken(self)
	k.criticalExit(tok)

	// Re-acquire the mutex unconditionally before returning, per §4.9,
	// regardless of why we woke.
	relockStatus := m.lockImpl(self, lockIndefinite, 0)

	switch reason {
	case WakeTimeout:
		if relockStatus != StatusOK {
			return relockStatus
		}
		return StatusTimedOut
	case WakeInterrupted:
		if relockStatus != StatusOK {
			return relockStatus
		}
		return StatusInterrupted
	default:
		return relockStatus
	}
}

// Signal wakes the highest-priority, earliest waiter, if any. A signal with
// no waiter is a no-op (§4.9, §8 scenario).
func (c *CondVar) Signal(self *Thread) Status {
	k := c.k
	tok := k.criticalEnter()
	next := c.waiters.popHighest()
	if next == nil {
		k.criticalExit(tok)
		return StatusOK
	}
	k.unparkLocked(next, WakeEvent)
	k.rescheduleLocked(self)
	k.criticalExitAndGate(tok, self)
	return StatusOK
}

// Broadcast wakes every waiter.
func (c *CondVar) Broadcast(self *Thread) Status {
	k := c.k
	tok := k.criticalEnter()
	woke := false
	for _, w := range c.waiters.drain() {
		k.unparkLocked(w, WakeEvent)
		woke = true
	}
	if woke {
		k.rescheduleLocked(self)
	}
	k.criticalExitAndGate(tok, self)
	return StatusOK
}
