package kernel

import "time"

// MutexType selects re-lock-by-owner behaviour (§4.8).
type MutexType uint8

const (
	MutexNormal MutexType = iota
	MutexErrorCheck
	MutexRecursive
)

// MutexProtocol selects the priority-inversion mitigation a mutex applies
// to its owner (§4.8).
type MutexProtocol uint8

const (
	ProtocolNone MutexProtocol = iota
	ProtocolInherit
	ProtocolProtect
)

// MutexRobustness selects whether a dead owner poisons the mutex
// recoverably (§4.8).
type MutexRobustness uint8

const (
	Stalled MutexRobustness = iota
	Robust
)

// maxMutexRecursion bounds MutexRecursive's count; spec leaves the exact
// ceiling implementation-defined (§4.8).
const maxMutexRecursion = 1 << 16

// MutexAttr configures NewMutex.
type MutexAttr struct {
	Type       MutexType
	Protocol   MutexProtocol
	Robustness MutexRobustness
	Ceiling    Priority // only meaningful when Protocol == ProtocolProtect
}

// Mutex is an ownership lock with configurable re-lock semantics,
// priority-inversion protocol, and robustness (§3, §4.8).
type Mutex struct {
	k *Kernel

	typ        MutexType
	protocol   MutexProtocol
	robustness MutexRobustness
	ceiling    Priority

	owner          *Thread
	recursionCount int

	inconsistent     bool
	consistentMarked bool
	notRecoverable   bool

	waiters waitList
}

// NewMutex creates an unlocked mutex.
func (k *Kernel) NewMutex(attr MutexAttr) *Mutex {
	return &Mutex{
		k:          k,
		typ:        attr.Type,
		protocol:   attr.Protocol,
		robustness: attr.Robustness,
		ceiling:    attr.Ceiling,
	}
}

func addOwnedMutex(t *Thread, m *Mutex) {
	if t.ownedMutexCount >= maxOwnedMutexes {
		return
	}
	t.ownedMutexes[t.ownedMutexCount] = m
	t.ownedMutexCount++
}

func removeOwnedMutex(t *Thread, m *Mutex) {
	for i := 0; i < t.ownedMutexCount; i++ {
		if t.ownedMutexes[i] == m {
			copy(t.ownedMutexes[i:t.ownedMutexCount-1], t.ownedMutexes[i+1:t.ownedMutexCount])
			t.ownedMutexCount--
			t.ownedMutexes[t.ownedMutexCount] = nil
			return
		}
	}
}

type lockMode uint8

const (
	lockIndefinite lockMode = iota
	lockTry
	lockTimed
)

func (m *Mutex) lockImpl(self *Thread, mode lockMode, dur time.Duration) Status {
	k := m.k
	if k.InISR() {
		return StatusNotPermitted
	}
	tok := k.criticalEnter()

	if m.notRecoverable {
		k.criticalExit(tok)
		return StatusNotRecoverable
	}
	if m.protocol == ProtocolProtect && self.basePriority > m.ceiling {
		k.criticalExit(tok)
		return StatusInvalid
	}

	if m.owner == nil {
		wasInconsistent := m.inconsistent
		m.owner = self
		m.recursionCount = 1
		addOwnedMutex(self, m)
		recomputeEffectivePriority(self)
		k.criticalExit(tok)
		if wasInconsistent {
			return StatusOwnerDead
		}
		return StatusOK
	}

	if m.owner == self {
		switch m.typ {
		case MutexRecursive:
			if m.recursionCount >= maxMutexRecursion {
				k.criticalExit(tok)
				return StatusAgain
			}
			m.recursionCount++
			k.criticalExit(tok)
			return StatusOK
		default:
			// normal: spec allows "blocks indefinitely" but self-deadlock is
			// always staticially detectable here, so we report it instead
			// of actually hanging the simulation.
			k.criticalExit(tok)
			return StatusDeadlock
		}
	}

	if mode == lockTry {
		k.criticalExit(tok)
		return StatusAgain
	}

	// Park self on the mutex's own wait list first, then recompute the
	// current owner's effective priority against the now-updated contention
	// set, before actually blocking (§9 "priority-inheritance tracking":
	// invalidate on mutex lock/unlock edges — parking a new waiter is such
	// an edge).
	var deadline *uint64
	if mode == lockTimed {
		d := k.clock.now() + k.durationToTicks(dur)
		deadline = &d
	}
	k.parkLocked(self, &m.waiters, deadline)
	if m.protocol == ProtocolInherit && m.owner != nil {
		recomputeEffectivePriority(m.owner)
		if m.owner.inReadyQueue {
			k.ready.remove(m.owner)
			k.ready.insert(m.owner)
		}
	}
	reason := k.blockUntilWoken(self)
	recomputeEffectivePriority(self)

	switch reason {
	case WakeTimeout, WakeInterrupted:
		// self left m.waiters without ever taking ownership (unparkLocked
		// already removed it above); the owner's inherited boost may no
		// longer be justified, so re-derive it against the contention set
		// as it now stands, mirroring the park-time boost (§4.8 "restored
		// on release" applies just as much to a waiter giving up as to one
		// that acquires).
		if m.protocol == ProtocolInherit && m.owner != nil {
			recomputeEffectivePriority(m.owner)
			if m.owner.inReadyQueue {
				k.ready.remove(m.owner)
				k.ready.insert(m.owner)
			}
		}
		k.criticalExit(tok)
		if reason == WakeTimeout {
			return StatusTimedOut
		}
		return StatusInterrupted
	}

	if m.notRecoverable {
		k.criticalExit(tok)
		return StatusNotRecoverable
	}
	wasInconsistent := m.owner == self && m.inconsistent
	k.criticalExit(tok)
	if wasInconsistent {
		return StatusOwnerDead
	}
	return StatusOK
}

// Lock blocks indefinitely until the mutex is acquired.
func (t *Thread) Lock(m *Mutex) Status { return m.lockImpl(t, lockIndefinite, 0) }

// TryLock returns StatusAgain instead of blocking on contention.
func (t *Thread) TryLock(m *Mutex) Status { return m.lockImpl(t, lockTry, 0) }

// TimedLock blocks at most dur.
func (t *Thread) TimedLock(m *Mutex, dur time.Duration) Status {
	return m.lockImpl(t, lockTimed, dur)
}

// unlockLocked runs the ownership-release side effects of Unlock, including
// handing off to the next waiter if any, but does not reschedule or gate.
// Assumes the critical section is already held. Factored out so a caller
// that needs to release the mutex and park on some other wait list in the
// same critical section — CondVar.Wait's "atomically releases the mutex and
// parks the caller" (§4.9) — can do so indivisibly, instead of going through
// Unlock's own reschedule-and-gate and risking a lost wakeup in the gap.
func (m *Mutex) unlockLocked(self *Thread) Status {
	k := m.k
	if m.owner != self {
		return StatusNotPermitted
	}

	if m.typ == MutexRecursive && m.recursionCount > 1 {
		m.recursionCount--
		return StatusOK
	}

	removeOwnedMutex(self, m)
	recomputeEffectivePriority(self)

	if m.robustness == Robust && m.inconsistent && !m.consistentMarked {
		m.notRecoverable = true
		m.inconsistent = false
		m.owner = nil
		m.recursionCount = 0
		for _, w := range m.waiters.drain() {
			k.unparkLocked(w, WakeEvent)
		}
		return StatusOK
	}

	m.consistentMarked = false
	next := m.waiters.popHighest()
	if next != nil {
		m.owner = next
		m.recursionCount = 1
		addOwnedMutex(next, m)
		recomputeEffectivePriority(next)
		k.unparkLocked(next, WakeEvent)
	} else {
		m.owner = nil
		m.recursionCount = 0
	}
	return StatusOK
}

// Unlock releases ownership, required for errorcheck/recursive/robust
// mutexes (returns StatusNotPermitted otherwise); for recursive it
// decrements first and only fully releases at count zero (§4.8).
func (m *Mutex) Unlock(self *Thread) Status {
	k := m.k
	tok := k.criticalEnter()
	st := m.unlockLocked(self)
	if st != StatusOK {
		k.criticalExit(tok)
		return st
	}
	k.rescheduleLocked(self)
	k.criticalExitAndGate(tok, self)
	return StatusOK
}

// MarkConsistent clears the inconsistent-recoverable flag after a robust
// mutex was inherited from a dead owner (§4.8). Must be called by the
// current owner before Unlock, or the mutex becomes permanently
// not-recoverable.
func (m *Mutex) MarkConsistent(self *Thread) Status {
	k := m.k
	tok := k.criticalEnter()
	defer k.criticalExit(tok)
	if m.owner != self {
		return StatusNotPermitted
	}
	if !m.inconsistent {
		return StatusInvalid
	}
	m.inconsistent = false
	m.consistentMarked = true
	return StatusOK
}

// onOwnerDied runs the robust-mutex protocol when its owner terminates
// without unlocking (§4.8, §4.4 destroyer protocol). Assumes the critical
// section is already held (called from threadExit).
func (m *Mutex) onOwnerDied(t *Thread) {
	if m.owner != t {
		return
	}
	if m.robustness == Robust {
		m.inconsistent = true
		m.consistentMarked = false
	}
	m.owner = nil
	m.recursionCount = 0
	next := m.waiters.popHighest()
	if next != nil {
		m.owner = next
		m.recursionCount = 1
		addOwnedMutex(next, m)
		recomputeEffectivePriority(next)
		m.k.unparkLocked(next, WakeEvent)
	}
}
