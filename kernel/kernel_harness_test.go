package kernel_test

import (
	"context"
	"testing"
	"time"

	"sparkrt/harness"
	"sparkrt/kernel"
)

// runMain brings up a kernel and runs body as the main thread's entry
// function, blocking until the harness's 3s Duration elapses (body
// returning early does not end the run). Every
// primitive test in this package needs a live scheduler to exercise
// blocking behaviour against, so they all funnel through this helper
// rather than constructing a Kernel by hand.
func runMain(t *testing.T, body func(k *kernel.Kernel)) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := kernel.DefaultConfig()
	cfg.MaxThreads = 16

	_, err := harness.Run(ctx, harness.Options{
		Config:       cfg,
		TickInterval: time.Millisecond,
		Duration:     3 * time.Second,
		MainFactory: func(k *kernel.Kernel) kernel.EntryFunc {
			return func(any) any {
				body(k)
				return nil
			}
		},
	})
	if err != nil {
		t.Fatalf("harness.Run: %v", err)
	}
}
