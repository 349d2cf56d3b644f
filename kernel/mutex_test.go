package kernel_test

import (
	"testing"
	"time"

	"sparkrt/kernel"
)

func TestMutexRecursiveRelock(t *testing.T) {
	runMain(t, func(k *kernel.Kernel) {
		self := k.Current()
		m := k.NewMutex(kernel.MutexAttr{Type: kernel.MutexRecursive})

		if st := self.Lock(m); st != kernel.StatusOK {
			t.Fatalf("first lock: %s", st)
		}
		if st := self.Lock(m); st != kernel.StatusOK {
			t.Fatalf("second (recursive) lock: %s", st)
		}
		if st := m.Unlock(self); st != kernel.StatusOK {
			t.Fatalf("first unlock: %s", st)
		}
		// Still held once more: a third thread's try-lock must fail.
		var trySt kernel.Status
		var other *kernel.Thread
		other, _ = k.CreateThread(self, func(any) any {
			me := k.Current()
			trySt = me.TryLock(m)
			return nil
		}, nil, kernel.ThreadAttr{Name: "other", Priority: 5})
		self.Join(other)
		if trySt != kernel.StatusAgain {
			t.Fatalf("expected StatusAgain while still held, got %s", trySt)
		}
		if st := m.Unlock(self); st != kernel.StatusOK {
			t.Fatalf("final unlock: %s", st)
		}
	})
}

func TestMutexNormalSelfDeadlockDetected(t *testing.T) {
	runMain(t, func(k *kernel.Kernel) {
		self := k.Current()
		m := k.NewMutex(kernel.MutexAttr{})
		if st := self.Lock(m); st != kernel.StatusOK {
			t.Fatalf("lock: %s", st)
		}
		if st := self.Lock(m); st != kernel.StatusDeadlock {
			t.Fatalf("expected StatusDeadlock on self re-lock, got %s", st)
		}
		m.Unlock(self)
	})
}

func TestMutexPriorityInheritance(t *testing.T) {
	runMain(t, func(k *kernel.Kernel) {
		self := k.Current()
		m := k.NewMutex(kernel.MutexAttr{Protocol: kernel.ProtocolInherit})

		var boosted kernel.Priority
		l, _ := k.CreateThread(self, func(any) any {
			me := k.Current()
			me.Lock(m)
			me.SleepFor(20 * time.Millisecond)
			boosted = me.EffectivePriority()
			m.Unlock(me)
			return nil
		}, nil, kernel.ThreadAttr{Name: "L", Priority: 4})

		h, _ := k.CreateThread(self, func(any) any {
			me := k.Current()
			me.Lock(m)
			m.Unlock(me)
			return nil
		}, nil, kernel.ThreadAttr{Name: "H", Priority: 10})

		self.Join(l)
		self.Join(h)

		if boosted != 10 {
			t.Fatalf("expected L boosted to 10 while H waited, got %d", boosted)
		}
		if got := l.EffectivePriority(); got != l.Priority() {
			t.Fatalf("expected L's boost to drop back to base %d after unlock, got %d", l.Priority(), got)
		}
	})
}

func TestMutexRobustOwnerDeath(t *testing.T) {
	runMain(t, func(k *kernel.Kernel) {
		self := k.Current()
		m := k.NewMutex(kernel.MutexAttr{Robustness: kernel.Robust})

		a, _ := k.CreateThread(self, func(any) any {
			me := k.Current()
			me.Lock(m)
			return nil // exits without unlocking
		}, nil, kernel.ThreadAttr{Name: "A", Priority: 5})
		self.Join(a)

		var lockSt, unlockSt, secondLockSt kernel.Status
		b, _ := k.CreateThread(self, func(any) any {
			me := k.Current()
			lockSt = me.Lock(m)
			// B unlocks without ever calling MarkConsistent: the mutex must
			// poison permanently rather than silently clear inconsistent.
			unlockSt = m.Unlock(me)
			return nil
		}, nil, kernel.ThreadAttr{Name: "B", Priority: 5})
		self.Join(b)

		c, _ := k.CreateThread(self, func(any) any {
			me := k.Current()
			secondLockSt = me.Lock(m)
			return nil
		}, nil, kernel.ThreadAttr{Name: "C", Priority: 5})
		self.Join(c)

		if lockSt != kernel.StatusOwnerDead {
			t.Fatalf("expected StatusOwnerDead, got %s", lockSt)
		}
		if unlockSt != kernel.StatusOK {
			t.Fatalf("expected Unlock itself to report ok, got %s", unlockSt)
		}
		if secondLockSt != kernel.StatusNotRecoverable {
			t.Fatalf("expected StatusNotRecoverable after unlock without MarkConsistent, got %s", secondLockSt)
		}
	})
}

func TestMutexRobustMarkConsistentRecovers(t *testing.T) {
	runMain(t, func(k *kernel.Kernel) {
		self := k.Current()
		m := k.NewMutex(kernel.MutexAttr{Robustness: kernel.Robust})

		a, _ := k.CreateThread(self, func(any) any {
			me := k.Current()
			me.Lock(m)
			return nil
		}, nil, kernel.ThreadAttr{Name: "A", Priority: 5})
		self.Join(a)

		var lockSt, markSt, unlockSt, nextLockSt kernel.Status
		b, _ := k.CreateThread(self, func(any) any {
			me := k.Current()
			lockSt = me.Lock(m)
			markSt = m.MarkConsistent(me)
			unlockSt = m.Unlock(me)
			return nil
		}, nil, kernel.ThreadAttr{Name: "B", Priority: 5})
		self.Join(b)

		c, _ := k.CreateThread(self, func(any) any {
			me := k.Current()
			nextLockSt = me.Lock(m)
			m.Unlock(me)
			return nil
		}, nil, kernel.ThreadAttr{Name: "C", Priority: 5})
		self.Join(c)

		if lockSt != kernel.StatusOwnerDead {
			t.Fatalf("expected StatusOwnerDead, got %s", lockSt)
		}
		if markSt != kernel.StatusOK {
			t.Fatalf("MarkConsistent: %s", markSt)
		}
		if unlockSt != kernel.StatusOK {
			t.Fatalf("unlock after MarkConsistent: %s", unlockSt)
		}
		if nextLockSt != kernel.StatusOK {
			t.Fatalf("expected mutex usable again after MarkConsistent, got %s", nextLockSt)
		}
	})
}
