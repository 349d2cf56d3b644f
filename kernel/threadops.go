package kernel

import "sparkrt/trace"

// ThreadAttr configures thread creation (§4.5).
type ThreadAttr struct {
	Name      string
	Priority  Priority
	Stack     []byte // nil => kernel acquires DefaultStackBytes
	StackSize int    // used only when Stack is nil
	RunOnCreate bool // reserved for symmetry with other kernels; Create always runs on create
}

// newThread allocates a Thread, fills its stack with the sentinel pattern
// (§4.5), and spawns its trampoline goroutine parked at the gate. It does
// not make the thread ready; callers decide when to publish it.
func (k *Kernel) newThread(name string, prio Priority, entry EntryFunc, arg any, stackSize int, userStack []byte) (*Thread, Status) {
	if entry == nil {
		return nil, StatusInvalid
	}
	if prio != PriorityIdle && prio != PriorityTimerDispatch && !validUserPriority(prio) {
		return nil, StatusInvalid
	}

	k.mu.Lock()
	if len(k.threads) >= k.cfg.MaxThreads {
		k.mu.Unlock()
		return nil, StatusAgain
	}
	k.nextThreadID++
	id := k.nextThreadID
	k.mu.Unlock()

	t := &Thread{
		k:                 k,
		id:                id,
		name:              name,
		basePriority:      prio,
		effectivePriority: prio,
		state:             StateInactive,
		entry:             entry,
		arg:               arg,
	}

	if userStack != nil {
		t.stack = userStack
		t.ownsStack = false
	} else {
		if stackSize < k.cfg.MinStackBytes {
			stackSize = k.cfg.DefaultStackBytes
		}
		t.stack = make([]byte, stackSize)
		t.ownsStack = true
	}
	for i := range t.stack {
		t.stack[i] = stackSentinel
	}
	t.stackSize = len(t.stack)

	if k.cfg.UserDataBytes > 0 {
		t.userData = make([]byte, k.cfg.UserDataBytes)
	}

	k.mu.Lock()
	k.threads[id] = t
	k.mu.Unlock()

	go k.trampoline(t)
	return t, StatusOK
}

func (k *Kernel) trampoline(t *Thread) {
	k.gate(t)
	exitVal := t.entry(t.arg)
	k.threadExit(t, exitVal)
}

// CreateThread constructs a thread in state inactive and immediately makes
// it ready (§4.5). caller is the creating thread (nil if called from the
// host goroutine before Start, e.g. to pre-populate threads).
func (k *Kernel) CreateThread(caller *Thread, entry EntryFunc, arg any, attr ThreadAttr) (*Thread, Status) {
	if k.InISR() {
		return nil, StatusNotPermitted
	}
	if attr.Priority == PriorityNone {
		attr.Priority = PriorityMin
	}
	t, st := k.newThread(attr.Name, attr.Priority, entry, arg, attr.StackSize, attr.Stack)
	if st != StatusOK {
		return nil, st
	}

	tok := k.criticalEnter()
	t.state = StateReady
	k.ready.insert(t)
	if k.cfg.EnableStats {
		k.stats.ThreadsCreated++
	}
	trace.Emit(trace.Event{Kind: trace.EventThreadCreated, Tick: k.clock.now(), ThreadID: t.id, ThreadName: t.name, State: t.state.String()})
	k.rescheduleLocked(caller)
	k.criticalExit(tok)
	k.gate(caller)
	return t, StatusOK
}

// threadExit runs the destroyer protocol (§4.4): wake the joiner if any,
// drop the thread from the kernel's thread table (detached or not), then
// hand control back to the scheduler for good.
func (k *Kernel) threadExit(t *Thread, exitVal any) {
	tok := k.criticalEnter()
	t.exit = exitVal
	t.state = StateTerminated
	for i := 0; i < t.ownedMutexCount; i++ {
		t.ownedMutexes[i].onOwnerDied(t)
	}
	t.ownedMutexCount = 0
	if t.joiner != nil {
		k.unparkLocked(t.joiner, WakeEvent)
	}
	if k.cfg.EnableStats {
		k.stats.ThreadsTerminated++
	}
	trace.Emit(trace.Event{Kind: trace.EventThreadTerminated, Tick: k.clock.now(), ThreadID: t.id, ThreadName: t.name, State: t.state.String()})
	delete(k.threads, t.id)
	k.rescheduleLocked(nil)
	k.criticalExit(tok)
	// A terminated thread's goroutine never gates again; it simply returns
	// and the trampoline function ends, freeing the goroutine.
}

// Join blocks until target terminates and returns its exit value (§4.5).
// Forbidden from ISR context. Only one joiner is supported per thread, the
// same restriction pthread_join places on its callers.
func (self_ *Thread) Join(target *Thread) (any, Status) {
	k := self_.k
	if k.InISR() {
		return nil, StatusNotPermitted
	}
	if target == nil || target == self_ {
		return nil, StatusInvalid
	}
	tok := k.criticalEnter()
	if target.state == StateTerminated || target.state == StateDestroyed {
		exit := target.exit
		k.criticalExit(tok)
		return exit, StatusOK
	}
	if target.joiner != nil {
		k.criticalExit(tok)
		return nil, StatusInvalid
	}
	target.joiner = self_
	reason := k.parkIndefinitelyLocked(self_, nil)
	exit := target.exit
	k.criticalExit(tok)
	if reason == WakeInterrupted {
		return nil, StatusInterrupted
	}
	return exit, StatusOK
}

// Detach marks that no joiner will come; on termination the thread's
// bookkeeping is released without anyone calling Join.
func (t *Thread) Detach() Status {
	tok := t.k.criticalEnter()
	defer t.k.criticalExit(tok)
	if t.detached {
		return StatusInvalid
	}
	t.detached = true
	return StatusOK
}

// SetPriority changes a thread's base priority and reschedules (§4.5).
func (t *Thread) SetPriority(p Priority) Status {
	if !validUserPriority(p) {
		return StatusInvalid
	}
	k := t.k
	tok := k.criticalEnter()
	t.basePriority = p
	recomputeEffectivePriority(t)
	if t.inReadyQueue {
		k.ready.remove(t)
		k.ready.insert(t)
	}
	caller := k.current
	k.rescheduleLocked(caller)
	k.criticalExit(tok)
	k.gate(caller)
	return StatusOK
}

// GetPriority returns the thread's base priority.
func (t *Thread) GetPriority() Priority { return t.basePriority }

// Kill forces termination and releases the thread's kernel bookkeeping. A
// thread killed while ready or waiting never runs again. When t is the
// calling thread itself, Kill only reclaims the bookkeeping: its goroutine
// returns from Kill and keeps executing.
func (t *Thread) Kill() Status {
	if t.state == StateTerminated || t.state == StateDestroyed {
		return StatusInvalid
	}
	k := t.k
	tok := k.criticalEnter()
	if t.inReadyQueue {
		k.ready.remove(t)
	}
	if t.waitOn != nil {
		t.waitOn.remove(t)
	}
	if t.inSleepList {
		k.clock.sleepRemove(t)
	}
	wasCurrent := k.current == t
	k.criticalExit(tok)
	if wasCurrent {
		// The victim cannot be told to unwind arbitrary Go code; killing
		// the currently-running thread only reclaims kernel bookkeeping.
	}
	k.threadExit(t, nil)
	return StatusOK
}

// recomputeEffectivePriority derives a thread's effective priority from its
// base priority and the priority-inherit/ceiling contention it is party to
// as an owner (§4.8, §9 "priority-inheritance tracking"). It must be called
// with the critical section held.
func recomputeEffectivePriority(t *Thread) {
	eff := t.basePriority
	for i := 0; i < t.ownedMutexCount; i++ {
		m := t.ownedMutexes[i]
		switch m.protocol {
		case ProtocolInherit:
			if hp := m.waiters.highestPriority(); hp > eff {
				eff = hp
			}
		case ProtocolProtect:
			if m.ceiling > eff {
				eff = m.ceiling
			}
		}
	}
	t.effectivePriority = eff
}
