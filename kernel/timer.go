package kernel

import "time"

// TimerKind selects one-shot vs periodic rearm behaviour (§4.14).
type TimerKind uint8

const (
	TimerOnce TimerKind = iota
	TimerPeriodic
)

// UserTimer is a callback scheduled against the clock's expiry list. The
// tick handler never calls the callback directly (§4.14): it moves expired
// timers onto a small pending-fire queue and wakes the dispatch thread,
// which runs callbacks in ordinary thread context so they may use blocking
// primitives.
type UserTimer struct {
	k        *Kernel
	callback func(arg any)
	arg      any
	kind     TimerKind
	period   uint64 // ticks

	active   bool
	nextTick uint64

	next, prev *UserTimer // clock.timers schedule, sorted by nextTick
	fireNext   *UserTimer // clock.pendingFire FIFO
}

// NewTimer creates a stopped timer. Call Start to arm it.
func (k *Kernel) NewTimer(callback func(arg any), arg any, period time.Duration, kind TimerKind) *UserTimer {
	return &UserTimer{
		k:        k,
		callback: callback,
		arg:      arg,
		kind:     kind,
		period:   k.durationToTicks(period),
	}
}

// Start arms the timer to fire after its configured period from now.
func (tm *UserTimer) Start() Status {
	if tm.callback == nil {
		return StatusInvalid
	}
	if tm.period == 0 {
		return StatusInvalid
	}
	k := tm.k
	tok := k.criticalEnter()
	defer k.criticalExit(tok)
	if tm.active {
		k.clock.removeTimerLocked(tm)
	}
	tm.active = true
	k.clock.insertTimerLocked(tm, k.clock.now()+tm.period)
	return StatusOK
}

// Stop disarms the timer. A callback already handed to the dispatch thread
// still runs to completion.
func (tm *UserTimer) Stop() Status {
	k := tm.k
	tok := k.criticalEnter()
	defer k.criticalExit(tok)
	if !tm.active {
		return StatusInvalid
	}
	k.clock.removeTimerLocked(tm)
	tm.active = false
	return StatusOK
}

func (c *clock) insertTimerLocked(tm *UserTimer, nextTick uint64) {
	tm.nextTick = nextTick
	tm.active = true
	var after *UserTimer
	cur := c.timersTail()
	for cur != nil && cur.nextTick > nextTick {
		after = cur
		cur = cur.prev
	}
	tm.next = after
	tm.prev = cur
	if cur != nil {
		cur.next = tm
	} else {
		c.timers = tm
	}
	if after != nil {
		after.prev = tm
	} else {
		c.timersTailPtr = tm
	}
}

func (c *clock) timersTail() *UserTimer { return c.timersTailPtr }

func (c *clock) removeTimerLocked(tm *UserTimer) {
	if tm.prev != nil {
		tm.prev.next = tm.next
	} else if c.timers == tm {
		c.timers = tm.next
	}
	if tm.next != nil {
		tm.next.prev = tm.prev
	} else if c.timersTailPtr == tm {
		c.timersTailPtr = tm.prev
	}
	tm.next, tm.prev = nil, nil
}

// fireExpiredTimersLocked moves every due timer onto the pending-fire FIFO
// and wakes the dispatch thread if it added anything. Assumes the critical
// section is held; called only from TickHandler.
func (k *Kernel) fireExpiredTimersLocked(now uint64) {
	c := &k.clock
	fired := false
	for c.timers != nil && c.timers.nextTick <= now {
		tm := c.timers
		c.removeTimerLocked(tm)
		tm.active = false
		if tm.kind == TimerPeriodic {
			// Rearm relative to the tick it fired on, so drift does not
			// accumulate across dispatch-thread scheduling delays.
			c.insertTimerLocked(tm, now+tm.period)
		}
		tm.fireNext = nil
		if c.pendingFireTail != nil {
			c.pendingFireTail.fireNext = tm
		} else {
			c.pendingFireHead = tm
		}
		c.pendingFireTail = tm
		fired = true
	}
	if fired && k.timerDispatch != nil && k.timerDispatch.awaitingTimerFire {
		k.unparkLocked(k.timerDispatch, WakeEvent)
	}
}

func (c *clock) popPendingFireLocked() *UserTimer {
	tm := c.pendingFireHead
	if tm == nil {
		return nil
	}
	c.pendingFireHead = tm.fireNext
	if c.pendingFireHead == nil {
		c.pendingFireTail = nil
	}
	tm.fireNext = nil
	return tm
}

// timerDispatchLoop is the entry function of the reserved high-priority
// dispatch thread created in Start (§4.14): it never touches the tick ISR
// path, so callbacks are free to call blocking primitives.
func (k *Kernel) timerDispatchLoop(any) any {
	self := k.timerDispatch
	for {
		k.mu.Lock()
		for k.clock.pendingFireHead == nil {
			self.awaitingTimerFire = true
			k.parkLocked(self, nil, nil)
			k.blockUntilWoken(self)
			self.awaitingTimerFire = false
		}
		tm := k.clock.popPendingFireLocked()
		k.mu.Unlock()

		if tm != nil && tm.callback != nil {
			tm.callback(tm.arg)
		}
	}
}
