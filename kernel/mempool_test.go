package kernel_test

import (
	"testing"
	"time"

	"sparkrt/kernel"
)

func TestMemPoolAllocFreeCycle(t *testing.T) {
	runMain(t, func(k *kernel.Kernel) {
		self := k.Current()
		p := k.NewMemPool(nil, 8, 2)

		b1, st := self.AllocBlock(p)
		if st != kernel.StatusOK || len(b1) != 8 {
			t.Fatalf("alloc 1: st=%s len=%d", st, len(b1))
		}
		if p.Live() != 1 {
			t.Fatalf("expected live=1, got %d", p.Live())
		}
		if st := p.Free(b1); st != kernel.StatusOK {
			t.Fatalf("free: %s", st)
		}
		if p.Live() != 0 {
			t.Fatalf("expected live=0 after free, got %d", p.Live())
		}
	})
}

func TestMemPoolBlockingAllocWhenExhausted(t *testing.T) {
	runMain(t, func(k *kernel.Kernel) {
		self := k.Current()
		p := k.NewMemPool(nil, 4, 1)

		held, st := self.AllocBlock(p)
		if st != kernel.StatusOK {
			t.Fatalf("initial alloc: %s", st)
		}
		if _, st := self.TryAllocBlock(p); st != kernel.StatusAgain {
			t.Fatalf("expected pool exhausted, got %s", st)
		}

		var waitSt kernel.Status
		w, _ := k.CreateThread(self, func(any) any {
			me := k.Current()
			_, waitSt = me.AllocBlock(p)
			return nil
		}, nil, kernel.ThreadAttr{Name: "W", Priority: 5})

		p.Free(held)
		self.Join(w)

		if waitSt != kernel.StatusOK {
			t.Fatalf("expected blocked allocator to succeed after free, got %s", waitSt)
		}
	})
}

func TestMemPoolFreeRejectsForeignPointer(t *testing.T) {
	runMain(t, func(k *kernel.Kernel) {
		p := k.NewMemPool(nil, 8, 1)
		foreign := make([]byte, 8)
		if st := p.Free(foreign); st != kernel.StatusInvalid {
			t.Fatalf("expected StatusInvalid for foreign pointer, got %s", st)
		}
	})
}

func TestMemPoolTimedAllocTimesOut(t *testing.T) {
	runMain(t, func(k *kernel.Kernel) {
		self := k.Current()
		p := k.NewMemPool(nil, 4, 1)
		self.AllocBlock(p)

		entry := k.Now()
		_, st := self.TimedAllocBlock(p, 10*time.Millisecond)
		wake := k.Now()
		if st != kernel.StatusTimedOut {
			t.Fatalf("expected StatusTimedOut, got %s", st)
		}
		if wake < entry+10 {
			t.Fatalf("woke too early: entry=%d wake=%d", entry, wake)
		}
	})
}

func TestMemPoolResetPoisonsPermanently(t *testing.T) {
	runMain(t, func(k *kernel.Kernel) {
		self := k.Current()
		p := k.NewMemPool(nil, 4, 2)

		var waitSt kernel.Status
		self.AllocBlock(p)
		self.AllocBlock(p)
		w, _ := k.CreateThread(self, func(any) any {
			me := k.Current()
			_, waitSt = me.AllocBlock(p)
			return nil
		}, nil, kernel.ThreadAttr{Name: "W", Priority: 5})

		p.Reset()
		self.Join(w)

		if waitSt != kernel.StatusNotRecoverable {
			t.Fatalf("expected StatusNotRecoverable after reset, got %s", waitSt)
		}
		if _, st := self.TryAllocBlock(p); st != kernel.StatusNotRecoverable {
			t.Fatalf("expected pool to stay poisoned (fail in place), got %s", st)
		}
	})
}
