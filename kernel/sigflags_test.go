package kernel_test

import (
	"testing"
	"time"

	"sparkrt/kernel"
)

func TestSigWaitAnyAndClear(t *testing.T) {
	runMain(t, func(k *kernel.Kernel) {
		self := k.Current()
		self.RaiseSignal(0x04)

		got, st := self.TrySigWait(0x04|0x01, kernel.SigAny|kernel.SigClear)
		if st != kernel.StatusOK || got != 0x04 {
			t.Fatalf("got=%#x st=%s", got, st)
		}
		if got2, _ := self.TrySigWait(0x04, kernel.SigAny); got2&0x04 != 0 {
			t.Fatalf("expected bit 0x04 cleared, still set in %#x", got2)
		}
	})
}

func TestSigWaitAllNotYetSatisfied(t *testing.T) {
	runMain(t, func(k *kernel.Kernel) {
		self := k.Current()
		self.RaiseSignal(0x01)
		if _, st := self.TrySigWait(0x01|0x02, kernel.SigAll); st != kernel.StatusAgain {
			t.Fatalf("expected StatusAgain, got %s", st)
		}
		self.RaiseSignal(0x02)
		got, st := self.TrySigWait(0x01|0x02, kernel.SigAll)
		if st != kernel.StatusOK || got != 0x03 {
			t.Fatalf("got=%#x st=%s", got, st)
		}
	})
}

func TestTrySigWaitMaskZeroNeverBlocks(t *testing.T) {
	runMain(t, func(k *kernel.Kernel) {
		self := k.Current()
		self.RaiseSignal(0x09)
		got, st := self.TrySigWait(0, kernel.SigAny)
		if st != kernel.StatusOK || got != 0x09 {
			t.Fatalf("expected observe-only snapshot 0x09, got=%#x st=%s", got, st)
		}
		// Observing with mask 0 must not clear anything.
		if got2, _ := self.TrySigWait(0x09, kernel.SigAny); got2 != 0x09 {
			t.Fatalf("mask-0 wait must not clear flags, got %#x", got2)
		}
	})
}

func TestSigWaitBlocksUntilRaised(t *testing.T) {
	runMain(t, func(k *kernel.Kernel) {
		self := k.Current()
		var got uint32
		var st kernel.Status
		w, _ := k.CreateThread(self, func(any) any {
			me := k.Current()
			got, st = me.SigWait(0x02, kernel.SigAny)
			return nil
		}, nil, kernel.ThreadAttr{Name: "W", Priority: 5})

		w.RaiseSignal(0x02)
		self.Join(w)

		if st != kernel.StatusOK || got&0x02 == 0 {
			t.Fatalf("got=%#x st=%s", got, st)
		}
	})
}

func TestTimedSigWaitTimesOut(t *testing.T) {
	runMain(t, func(k *kernel.Kernel) {
		self := k.Current()
		entry := k.Now()
		_, st := self.TimedSigWait(0x80, kernel.SigAny, 10*time.Millisecond)
		wake := k.Now()
		if st != kernel.StatusTimedOut {
			t.Fatalf("expected StatusTimedOut, got %s", st)
		}
		if wake < entry+10 {
			t.Fatalf("woke too early: entry=%d wake=%d", entry, wake)
		}
	})
}

func TestSigClearDirect(t *testing.T) {
	runMain(t, func(k *kernel.Kernel) {
		self := k.Current()
		self.RaiseSignal(0x0f)
		prev := self.SigClear(0x03)
		if prev != 0x03 {
			t.Fatalf("expected SigClear(0x03) on 0x0f to return the previously set bits 0x03, got %#x", prev)
		}
		if remaining, _ := self.TrySigWait(0, kernel.SigAny); remaining != 0x0c {
			t.Fatalf("expected 0x0c remaining after clearing 0x03 from 0x0f, got %#x", remaining)
		}
	})
}
