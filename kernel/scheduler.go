package kernel

import (
	"context"
	"sync"

	"sparkrt/internal/port"
	"sparkrt/trace"
)

// Config carries the compile-time options §6 lists as recognized: tick
// frequency, stack sizing, per-thread user-storage size, and the optional
// statistics counters. It plays the role the teacher's exported
// buildinfo/config vars play for the application layer, but scoped to one
// Kernel value instead of process globals, since nothing here needs a
// single global kernel (see DESIGN.md).
type Config struct {
	TickHz            uint32
	DefaultStackBytes int
	MinStackBytes     int
	MainStackBytes    int
	UserDataBytes     int
	MaxThreads        int
	EnableStats       bool
	// Port backs interrupt masking and context-switch requests. Nil selects
	// port.NewGoPort(), the host-simulation default (§6 "Port layer").
	Port port.Port
}

// DefaultConfig returns the configuration a bare embedder gets if it does
// not build one itself.
func DefaultConfig() Config {
	return Config{
		TickHz:            1000,
		DefaultStackBytes: 4096,
		MinStackBytes:     512,
		MainStackBytes:    8192,
		UserDataBytes:     0,
		MaxThreads:        64,
		EnableStats:       true,
	}
}

// Kernel is the scheduler core (§4.4) plus the shared critical section
// every other component in this package rides on. There is exactly one
// Kernel per simulated MCU; unlike the teacher's process-wide kernel
// singleton, this module threads *Kernel explicitly so multiple
// independent kernel instances can coexist in one test binary (§9 notes
// the single global is legitimate on real hardware only because there is
// no multi-tenant scope; a test binary is exactly such a tenant boundary).
type Kernel struct {
	cfg Config

	mu   sync.Mutex
	cond *sync.Cond

	started bool
	current *Thread
	ready   readyQueue
	lockCnt int

	clock clock

	nextThreadID uint32
	threads      map[uint32]*Thread

	idle          *Thread
	main          *Thread
	timerDispatch *Thread

	stats Stats

	inISR bool

	port port.Port
}

// NewKernel constructs an uninitialised kernel around cfg. Call Start to
// bring up the idle and main threads.
func NewKernel(cfg Config) *Kernel {
	if cfg.TickHz == 0 {
		cfg.TickHz = DefaultConfig().TickHz
	}
	if cfg.DefaultStackBytes == 0 {
		cfg.DefaultStackBytes = DefaultConfig().DefaultStackBytes
	}
	if cfg.MainStackBytes == 0 {
		cfg.MainStackBytes = DefaultConfig().MainStackBytes
	}
	if cfg.MaxThreads == 0 {
		cfg.MaxThreads = DefaultConfig().MaxThreads
	}
	if cfg.Port == nil {
		cfg.Port = port.NewGoPort()
	}
	k := &Kernel{
		cfg:     cfg,
		threads: make(map[uint32]*Thread, cfg.MaxThreads),
		port:    cfg.Port,
	}
	k.cond = sync.NewCond(&k.mu)
	k.clock.k = k
	return k
}

// IsStarted reports whether Start has completed bring-up.
func (k *Kernel) IsStarted() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.started
}

// criticalEnter/criticalExit form the interrupt-mask critical section (C1,
// §4.1). Every helper below this line assumes the caller already holds the
// section; only the exported, top-of-call-stack operations call these
// directly, so "nesting" the spec's IRQState token describes is free: an
// inner helper never re-acquires the lock it was called under.
type IRQState struct {
	portTok port.Token
}

func (k *Kernel) criticalEnter() IRQState {
	k.mu.Lock()
	return IRQState{portTok: k.port.DisableInterrupts()}
}

func (k *Kernel) criticalExit(tok IRQState) {
	k.port.RestoreInterrupts(tok.portTok)
	k.mu.Unlock()
}

// criticalExitAndGate releases the critical section and, for thread-context
// callers, blocks until the scheduler grants them their turn again. It is
// the common tail of every blocking primitive's "wake the next waiter, then
// let the scheduler decide who runs" sequence.
func (k *Kernel) criticalExitAndGate(tok IRQState, self *Thread) {
	k.criticalExit(tok)
	k.gate(self)
}

// uncriticalEnter/uncriticalExit temporarily re-open the critical section
// so the tick ISR can make progress while a primitive holds a long-running
// software lock (§4.1). Callers must not assume any invariant they checked
// before uncriticalEnter still holds after uncriticalExit.
func (k *Kernel) uncriticalEnter() IRQState {
	k.mu.Unlock()
	return IRQState{}
}

func (k *Kernel) uncriticalExit(IRQState) {
	k.mu.Lock()
}

// gate blocks the calling thread's goroutine until the scheduler has made
// it the current thread. It is the Go-native stand-in for the port layer's
// context_switch primitive: Go has no user-mode stack-switch call to bind
// to, so the "switch" is a condition-variable wait keyed on k.current
// (see SPEC_FULL.md, "Port layer & goroutine-gate scheduling primitive").
// Every public operation that changes ready/wait/sleep state from thread
// context must call reschedule() and then gate(self); gate returns
// immediately if self is already current, so calling it unconditionally is
// always safe.
func (k *Kernel) gate(self *Thread) {
	if self == nil {
		return
	}
	k.mu.Lock()
	for k.current != self {
		k.cond.Wait()
	}
	k.mu.Unlock()
}

// reschedule recomputes the highest-priority ready thread and, if it
// differs from the current one, performs the handoff (§4.4). self is the
// thread whose goroutine is making the call, or nil from ISR/tick context,
// which never blocks. reschedule itself never blocks; pair it with gate to
// actually suspend a preempted or newly-parked caller.
func (k *Kernel) reschedule(self *Thread) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.rescheduleLocked(self)
}

// rescheduleLocked assumes k.mu is already held.
func (k *Kernel) rescheduleLocked(self *Thread) {
	if !k.started || k.lockCnt > 0 {
		return
	}
	next := k.ready.peekHighest()
	if next == nil {
		return
	}
	cur := k.current
	if cur == next {
		return
	}
	if cur != nil && cur.state == StateRunning && next.effectivePriority <= cur.effectivePriority {
		return
	}
	k.ready.remove(next)
	if cur != nil && cur.state == StateRunning {
		cur.state = StateReady
		k.ready.insert(cur)
	}
	k.current = next
	next.state = StateRunning
	if k.cfg.EnableStats {
		k.stats.ContextSwitches++
	}
	trace.Emit(trace.Event{
		Kind:       trace.EventContextSwitch,
		Tick:       k.clock.now(),
		ThreadID:   next.id,
		ThreadName: next.name,
		State:      next.state.String(),
	})
	k.port.RequestContextSwitch()
	k.cond.Broadcast()
}

// Lock defers context switches without masking interrupts (§4.4). It
// returns the prior lock depth so callers can restore it; nestable.
func (k *Kernel) Lock() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	prev := k.lockCnt
	k.lockCnt++
	return prev
}

// Unlock restores the scheduler lock depth. When it reaches zero a
// reschedule is attempted immediately, since state may have changed while
// switching was deferred.
func (k *Kernel) Unlock(self *Thread) int {
	k.mu.Lock()
	if k.lockCnt > 0 {
		k.lockCnt--
	}
	depth := k.lockCnt
	k.mu.Unlock()
	if depth == 0 {
		k.reschedule(self)
		k.gate(self)
	}
	return depth
}

// IsLocked reports whether the scheduler lock is currently held.
func (k *Kernel) IsLocked() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.lockCnt > 0
}

// Yield voluntarily relinquishes the CPU to the next runnable thread at the
// same priority (round-robin) or better (§4.4, §5).
func (t *Thread) Yield() Status {
	if t.k.InISR() {
		return StatusNotPermitted
	}
	k := t.k
	tok := k.criticalEnter()
	t.state = StateReady
	k.ready.insert(t)
	k.current = nil
	k.rescheduleLocked(t)
	k.criticalExit(tok)
	k.gate(t)
	return StatusOK
}

// Current returns the calling goroutine's thread, or nil if none is
// registered (e.g. the host test goroutine before Start).
func (k *Kernel) Current() *Thread {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.current
}

// InISR reports whether the kernel is currently executing the tick
// handler. Operations documented as ISR-forbidden check this (§4.4, §5).
func (k *Kernel) InISR() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.inISR
}

// Start brings up the idle thread and the application main thread, then
// blocks the calling goroutine until ctx is cancelled — the Go rendition
// of "start... never returns" (§4.4): on real hardware control never
// returns to the reset handler either; here it returns control to the
// caller only at simulated power-off.
func (k *Kernel) Start(ctx context.Context, mainEntry EntryFunc, mainArg any) Status {
	k.mu.Lock()
	if k.started {
		k.mu.Unlock()
		return StatusInvalid
	}
	k.mu.Unlock()

	idle, st := k.newThread("idle", PriorityIdle, func(any) any {
		<-ctx.Done()
		return nil
	}, nil, k.cfg.DefaultStackBytes, nil)
	if st != StatusOK {
		return st
	}
	k.idle = idle

	main, st := k.newThread("main", PriorityMin+1, mainEntry, mainArg, k.cfg.MainStackBytes, nil)
	if st != StatusOK {
		return st
	}
	k.main = main

	dispatch, st := k.newThread("timer-dispatch", PriorityTimerDispatch, k.timerDispatchLoop, nil, k.cfg.DefaultStackBytes, nil)
	if st != StatusOK {
		return st
	}
	k.timerDispatch = dispatch

	k.mu.Lock()
	for _, th := range []*Thread{idle, main, dispatch} {
		th.state = StateReady
		k.ready.insert(th)
	}
	k.started = true
	k.rescheduleLocked(nil)
	k.mu.Unlock()

	<-ctx.Done()
	return StatusOK
}
