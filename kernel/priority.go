package kernel

// Priority orders threads in the ready queue and every wait list: higher
// numeric value runs first. The space is split the way §4.3 reserves it.
type Priority uint8

const (
	// PriorityNone marks an uninitialised thread; never runnable.
	PriorityNone Priority = 0
	// PriorityIdle is reserved for the kernel's idle thread.
	PriorityIdle Priority = 1
	// PriorityMin/PriorityMax bound the range application threads may request.
	PriorityMin Priority = 2
	PriorityMax Priority = 250
	// PriorityTimerDispatch is reserved for the user-timer dispatch thread (§4.14).
	PriorityTimerDispatch Priority = 253
	// PriorityISRDeferred is reserved for ISR-deferred work dispatch.
	PriorityISRDeferred Priority = 254
	// PriorityErrorSentinel marks an invalid/error value, never assigned to a thread.
	PriorityErrorSentinel Priority = 255
)

func validUserPriority(p Priority) bool {
	return p >= PriorityMin && p <= PriorityMax
}

const numPriorityLevels = 256
