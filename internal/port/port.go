// Package port defines the CPU-port contract the kernel core requires
// from its environment (§6 "Port layer"): interrupt masking and a
// context-switch request. Initial-stack setup is not part of this
// interface, since every thread runs on its own Go-managed goroutine
// stack. It mirrors the shape of the teacher's hal.Logger/hal.LED
// style abstractions — a small interface plus one concrete
// implementation — but stands in for hardware register access.
package port

// Port is the abstract CPU-port contract. A real embedded build backs
// this with SysTick configuration and inline assembly for the actual
// register save/restore. In this module the switch itself is the
// kernel's goroutine-gate baton (Kernel.gate), since Go supplies no
// user-mode stack-switch primitive to bind the literal contract to, and
// the default implementation GoPort is a set of no-ops (see DESIGN.md,
// "Port layer").
type Port interface {
	// DisableInterrupts masks interrupts at or below the scheduler's
	// priority and returns an opaque token capturing the prior mask.
	DisableInterrupts() Token
	// RestoreInterrupts restores the mask captured by tok.
	RestoreInterrupts(tok Token)
	// RequestContextSwitch asks the port to arrange for the scheduler to
	// reconsider who should run, at the next safe point (ISR exit on real
	// hardware; immediately here).
	RequestContextSwitch()
}

// Token is the opaque interrupt-mask state a Port hands back from
// DisableInterrupts. Its representation is entirely port-specific; the
// kernel core never inspects it.
type Token any

// GoPort is the default Port implementation used by this module's
// simulation: interrupt masking is realized as a no-op since the
// kernel's own critical section (kernel.Kernel.criticalEnter/Exit)
// already serializes the state a real port's interrupt mask would
// protect, and RequestContextSwitch is likewise a no-op because the
// kernel calls its own reschedule hook directly rather than waiting
// for a port callback. GoPort exists so the port.Port contract has one
// concrete, embeddable implementation, matching §6's requirement that
// the core depend only on the interface.
type GoPort struct{}

// NewGoPort constructs the default host-simulation port.
func NewGoPort() *GoPort { return &GoPort{} }

func (p *GoPort) DisableInterrupts() Token    { return struct{}{} }
func (p *GoPort) RestoreInterrupts(tok Token) {}
func (p *GoPort) RequestContextSwitch()       {}
