// Package cface documents the shape a C façade over the kernel core
// would take (§6 "C façade": "a flat, struct-opaque C binding is
// exposed alongside the native API... behaviourally identical"). It
// does not emit cgo: this workspace never runs a cgo cross-compile, and
// a full façade is infrastructure outside a pure-Go module's normal
// surface. What follows is the type table a //export layer would bind
// against. This package does not import kernel: StatusCode's order is
// kept equal to kernel.Status's by hand, and the compiler does not check
// the correspondence.
//
// A real façade would:
//   - box every *kernel.Thread / *kernel.Mutex / ... behind an opaque
//     handle (a registry index cast to uintptr, never a raw pointer
//     exposed to C, so the Go GC is never asked to track a C-held
//     reference);
//   - export one C-callable wrapper per native operation, translating
//     kernel.Status to the matching C int constant from the table
//     below and copying argument/result bytes across the boundary;
//   - never allow a goroutine started on the Go side to be the one a
//     C caller blocks on — cgo callback reentrancy and goroutine
//     gating don't mix, so the façade would need its own dedicated
//     OS thread per call into blocking kernel operations (cgo's
//     runtime.LockOSThread discipline), which the Go-only host
//     simulation here has no need of.
package cface

// Handle is the opaque identity a C caller holds in place of a Go
// pointer. The zero Handle is never valid.
type Handle uint32

// StatusCode mirrors kernel.Status as the flat integer constants a C
// header would declare.
type StatusCode int32

const (
	StatusCodeOK StatusCode = iota
	StatusCodeNotPermitted
	StatusCodeInvalid
	StatusCodeAgain
	StatusCodeNotRecoverable
	StatusCodeDeadlock
	StatusCodeMsgSize
	StatusCodeBadMsg
	StatusCodeInterrupted
	StatusCodeTimedOut
	StatusCodeOwnerDead
	StatusCodeOverflow
)
