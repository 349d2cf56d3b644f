package kernel

// ThreadState is the scheduler state machine position of a thread (§3).
type ThreadState uint8

const (
	StateUndefined ThreadState = iota
	StateInactive
	StateReady
	StateRunning
	StateWaiting
	StateTerminated
	StateDestroyed
)

func (s ThreadState) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateWaiting:
		return "waiting"
	case StateTerminated:
		return "terminated"
	case StateDestroyed:
		return "destroyed"
	default:
		return "undefined"
	}
}

// WakeReason records why a parked thread was unparked (§4.6, §5).
type WakeReason uint8

const (
	WakeNone WakeReason = iota
	WakeEvent
	WakeTimeout
	WakeInterrupted
)

func (r WakeReason) String() string {
	switch r {
	case WakeEvent:
		return "event"
	case WakeTimeout:
		return "timeout"
	case WakeInterrupted:
		return "interrupted"
	default:
		return "none"
	}
}

const maxOwnedMutexes = 8

// stackSentinel fills user-supplied stacks so stack_available() can find the
// still-untouched high-water prefix (§4.5).
const stackSentinel = 0xA5

// EntryFunc is a thread's body. It receives the opaque argument supplied at
// creation and returns the thread's exit value.
type EntryFunc func(arg any) any

// Thread is one schedulable unit of execution. Every field reachable from
// the tick ISR (state, links, wakeReason, pendingSignals) is only ever
// mutated while the kernel's critical section is held; fields that are
// thread-private (stack, userData, entry/arg) are never touched from ISR
// context.
type Thread struct {
	k    *Kernel
	id   uint32
	name string

	basePriority      Priority
	effectivePriority Priority

	state      ThreadState
	wakeReason WakeReason

	entry EntryFunc
	arg   any
	exit  any

	stack     []byte
	stackSize int
	ownsStack bool

	pendingSignals uint32

	detached bool
	joiner   *Thread

	userData []byte

	ownedMutexes    [maxOwnedMutexes]*Mutex
	ownedMutexCount int

	// wakeupTick is this thread's deadline while it sits in the sleep list.
	wakeupTick uint64
	deadlineOK bool

	// intrusive links
	readyNext, readyPrev *Thread
	inReadyQueue         bool
	readyLevel           Priority

	waitOn             *waitList
	waitNext, waitPrev *Thread

	sleepNext, sleepPrev *Thread
	inSleepList          bool

	// sigWait records what the current sig_wait/timed_sig_wait call is
	// looking for, so raise() can evaluate the predicate.
	sigWaitMask uint32
	sigWaitMode SigMode
	sigWaiting  bool

	// observedAtWake freezes the flags an event-flags waiter saw at the
	// instant it was woken, so a racing second Raise before it resumes
	// cannot change what it reports for a clear-on-match wait.
	observedAtWake uint32

	// awaitingTimerFire is true only while the timer dispatch thread is
	// parked waiting for the next pending-fire entry, as opposed to blocked
	// inside a callback on some unrelated primitive. fireExpiredTimersLocked
	// checks this before waking it, since unparkLocked has no way to tell
	// which wait a StateWaiting thread is actually parked on.
	awaitingTimerFire bool
}

// ID returns the thread's stable identity.
func (t *Thread) ID() uint32 { return t.id }

// Name returns the thread's human-readable name.
func (t *Thread) Name() string { return t.name }

// State returns the thread's current scheduler state.
func (t *Thread) State() ThreadState { return t.state }

// Priority returns the thread's base (configured) priority.
func (t *Thread) Priority() Priority { return t.basePriority }

// EffectivePriority returns the thread's current effective priority,
// including any mutex-protocol boost (§4.8).
func (t *Thread) EffectivePriority() Priority { return t.effectivePriority }

// WakeReason returns the reason the thread's most recent blocking call
// returned.
func (t *Thread) WakeReason() WakeReason { return t.wakeReason }

// UserData returns the thread's configurable user-storage blob.
func (t *Thread) UserData() []byte { return t.userData }

// StackAvailable returns the number of still-untouched sentinel bytes at
// the start of the thread's stack buffer, i.e. the unused headroom (§4.5).
// User-supplied and kernel-acquired stacks are both sentinel-filled and
// counted the same way. It returns -1 only for an empty stack buffer.
func (t *Thread) StackAvailable() int {
	if len(t.stack) == 0 {
		return -1
	}
	n := 0
	for _, b := range t.stack {
		if b != stackSentinel {
			break
		}
		n++
	}
	return n
}
