package kernel_test

import (
	"testing"
	"time"

	"sparkrt/kernel"
)

func TestJoinOnAlreadyTerminatedThreadReturnsImmediately(t *testing.T) {
	runMain(t, func(k *kernel.Kernel) {
		self := k.Current()
		w, _ := k.CreateThread(self, func(any) any { return 42 }, nil, kernel.ThreadAttr{Name: "W", Priority: 5})

		exit, st := self.Join(w)
		if st != kernel.StatusOK || exit != 42 {
			t.Fatalf("first join: exit=%v st=%s", exit, st)
		}
		// Second join finds it already terminated and returns the same
		// recorded exit value without blocking again.
		exit2, st2 := self.Join(w)
		if st2 != kernel.StatusOK || exit2 != 42 {
			t.Fatalf("second join on terminated thread: exit=%v st=%s", exit2, st2)
		}
	})
}

func TestJoinBlocksUntilTermination(t *testing.T) {
	runMain(t, func(k *kernel.Kernel) {
		self := k.Current()
		w, _ := k.CreateThread(self, func(any) any {
			me := k.Current()
			me.SleepFor(10 * time.Millisecond)
			return "done"
		}, nil, kernel.ThreadAttr{Name: "W", Priority: 5})

		entry := k.Now()
		exit, st := self.Join(w)
		wake := k.Now()
		if st != kernel.StatusOK || exit != "done" {
			t.Fatalf("exit=%v st=%s", exit, st)
		}
		if wake < entry+k.TicksFromMicros(uint64((10*time.Millisecond).Microseconds())) {
			t.Fatalf("join returned before target's sleep completed: entry=%d wake=%d", entry, wake)
		}
	})
}

func TestSetPriorityUpdatesBaseAndEffective(t *testing.T) {
	runMain(t, func(k *kernel.Kernel) {
		self := k.Current()
		sem := k.NewSemaphore(0, 1)

		w, _ := k.CreateThread(self, func(any) any {
			me := k.Current()
			me.SemWait(sem)
			return nil
		}, nil, kernel.ThreadAttr{Name: "W", Priority: 5})

		self.SleepFor(2 * time.Millisecond)
		if st := w.SetPriority(9); st != kernel.StatusOK {
			t.Fatalf("SetPriority: %s", st)
		}
		if w.GetPriority() != 9 {
			t.Fatalf("expected base priority 9, got %d", w.GetPriority())
		}
		if w.EffectivePriority() != 9 {
			t.Fatalf("expected effective priority 9 with no contention, got %d", w.EffectivePriority())
		}

		sem.Post()
		self.Join(w)
	})
}

func TestSetPriorityRejectsReservedLevel(t *testing.T) {
	runMain(t, func(k *kernel.Kernel) {
		self := k.Current()
		if st := self.SetPriority(kernel.PriorityIdle); st != kernel.StatusInvalid {
			t.Fatalf("expected StatusInvalid for a reserved priority level, got %s", st)
		}
	})
}

func TestDetachRejectsDoubleDetach(t *testing.T) {
	runMain(t, func(k *kernel.Kernel) {
		self := k.Current()
		w, _ := k.CreateThread(self, func(any) any {
			me := k.Current()
			me.SleepFor(5 * time.Millisecond)
			return nil
		}, nil, kernel.ThreadAttr{Name: "W", Priority: 5})

		if st := w.Detach(); st != kernel.StatusOK {
			t.Fatalf("first detach: %s", st)
		}
		if st := w.Detach(); st != kernel.StatusInvalid {
			t.Fatalf("expected StatusInvalid on double detach, got %s", st)
		}
	})
}

func TestKillRemovesBlockedThreadFromWaitList(t *testing.T) {
	runMain(t, func(k *kernel.Kernel) {
		self := k.Current()
		sem := k.NewSemaphore(0, 1)

		w, _ := k.CreateThread(self, func(any) any {
			me := k.Current()
			me.SemWait(sem)
			return nil
		}, nil, kernel.ThreadAttr{Name: "W", Priority: 5})

		self.SleepFor(2 * time.Millisecond)
		if st := w.Kill(); st != kernel.StatusOK {
			t.Fatalf("kill: %s", st)
		}
		if w.State() != kernel.StateTerminated {
			t.Fatalf("expected killed thread to be terminated, got %v", w.State())
		}
		// A subsequent post must not panic or hang looking for the killed
		// waiter; the semaphore's waiter list must be empty.
		if st := sem.Post(); st != kernel.StatusOK {
			t.Fatalf("post after kill: %s", st)
		}
		// With no waiter left to hand the unit to, Post raises the count.
		if c := sem.Count(); c != 1 {
			t.Fatalf("expected count 1 after post with no waiter, got %d", c)
		}
	})
}
