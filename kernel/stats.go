package kernel

// Stats holds the optional statistics counters §6 lists as a recognized
// compile-time option. They are always compiled in and cheap to update;
// Config.EnableStats gates whether the kernel bothers incrementing them.
type Stats struct {
	ContextSwitches   uint64
	TicksProcessed    uint64
	ThreadsCreated    uint64
	ThreadsTerminated uint64
}

// Stats returns a snapshot of the kernel's statistics counters.
func (k *Kernel) Stats() Stats {
	tok := k.criticalEnter()
	defer k.criticalExit(tok)
	return k.stats
}
