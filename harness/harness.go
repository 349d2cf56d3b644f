// Package harness is the host-side glue that runs a kernel.Kernel
// against a simulated tick source and an application entry point,
// external to the RTOS core (§1's "out of scope, treated as external
// collaborators" — the tick ISR and startup glue are the port layer's
// job). It supervises the goroutines standing in for the tick ISR and
// the main thread with golang.org/x/sync/errgroup, the way the
// teacher's driver package supervises parallel file-processing workers
// (vovakirdan-surge/internal/driver/parallel.go).
package harness

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"sparkrt/kernel"
)

// Options configures one Run.
type Options struct {
	Config kernel.Config
	// TickInterval is the wall-clock period between simulated SysTick
	// interrupts. Zero or negative selects one millisecond; the ticker
	// always runs.
	TickInterval time.Duration
	// Duration bounds how long the simulation runs before Run cancels it
	// and returns. Zero means run until ctx is cancelled by the caller.
	Duration time.Duration
	// MainFactory builds the main thread's entry function once the
	// kernel exists, so the caller's scenario code can close over k
	// (e.g. to call k.CreateThread from within the main thread body).
	MainFactory func(k *kernel.Kernel) kernel.EntryFunc
	MainArg     any
}

// Result carries a Run's outcome.
type Result struct {
	Kernel *kernel.Kernel
	Ticks  uint64
	Stats  kernel.Stats
}

// Run brings up a kernel with the given options, drives its tick source
// on a dedicated goroutine, and blocks until the simulation's context is
// done — either Duration elapsing or the caller's ctx being cancelled.
// The first goroutine to return a non-nil error (kernel.Start does not,
// short of a programmer error) cancels the group's context and aborts
// the run.
func Run(ctx context.Context, opts Options) (Result, error) {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Millisecond
	}
	runCtx := ctx
	var cancel context.CancelFunc
	if opts.Duration > 0 {
		runCtx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	k := kernel.NewKernel(opts.Config)

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		ticker := time.NewTicker(opts.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				k.TickHandler()
			}
		}
	})

	g.Go(func() error {
		if st := k.Start(gctx, opts.MainFactory(k), opts.MainArg); !st.OK() {
			return st
		}
		return nil
	})

	err := g.Wait()
	if err == context.Canceled || err == context.DeadlineExceeded {
		err = nil
	}
	return Result{Kernel: k, Ticks: k.Now(), Stats: k.Stats()}, err
}
