package kernel_test

import (
	"testing"

	"sparkrt/kernel"
)

func TestEventFlagsAnyVsAll(t *testing.T) {
	runMain(t, func(k *kernel.Kernel) {
		self := k.Current()
		e := k.NewEventFlags()

		e.Raise(0x01)
		if got, st := self.TryWaitFlags(e, 0x01|0x02, kernel.SigAny); st != kernel.StatusOK || got != 0x01 {
			t.Fatalf("any-wait: got=%#x st=%s", got, st)
		}
		if _, st := self.TryWaitFlags(e, 0x01|0x02, kernel.SigAll); st != kernel.StatusAgain {
			t.Fatalf("all-wait should not be satisfied yet, got %s", st)
		}
		e.Raise(0x02)
		if got, st := self.TryWaitFlags(e, 0x01|0x02, kernel.SigAll); st != kernel.StatusOK || got != 0x03 {
			t.Fatalf("all-wait: got=%#x st=%s", got, st)
		}
	})
}

func TestEventFlagsClearOnMatch(t *testing.T) {
	runMain(t, func(k *kernel.Kernel) {
		self := k.Current()
		e := k.NewEventFlags()
		e.Raise(0x07)

		got, st := self.TryWaitFlags(e, 0x01, kernel.SigAny|kernel.SigClear)
		if st != kernel.StatusOK || got != 0x07 {
			t.Fatalf("got=%#x st=%s", got, st)
		}
		if e.Get() != 0x06 {
			t.Fatalf("expected bit 0x01 cleared, pending=%#x", e.Get())
		}
	})
}

func TestEventFlagsRaiseWakesMatchingWaiterOnly(t *testing.T) {
	runMain(t, func(k *kernel.Kernel) {
		self := k.Current()
		e := k.NewEventFlags()

		var gotA, gotB uint32
		var stA, stB kernel.Status
		a, _ := k.CreateThread(self, func(any) any {
			me := k.Current()
			gotA, stA = me.WaitFlags(e, 0x01, kernel.SigAny)
			return nil
		}, nil, kernel.ThreadAttr{Name: "A", Priority: 5})

		b, _ := k.CreateThread(self, func(any) any {
			me := k.Current()
			gotB, stB = me.WaitFlags(e, 0x02, kernel.SigAny)
			return nil
		}, nil, kernel.ThreadAttr{Name: "B", Priority: 5})

		e.Raise(0x01)
		self.Join(a)

		if stA != kernel.StatusOK || gotA != 0x01 {
			t.Fatalf("A: got=%#x st=%s", gotA, stA)
		}
		if b.State() == kernel.StateTerminated {
			t.Fatal("B should still be waiting on bit 0x02")
		}

		e.Raise(0x02)
		self.Join(b)
		if stB != kernel.StatusOK || gotB&0x02 == 0 {
			t.Fatalf("B: got=%#x st=%s", gotB, stB)
		}
	})
}
