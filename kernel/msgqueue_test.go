package kernel_test

import (
	"testing"
	"time"

	"sparkrt/kernel"
)

func TestMsgQueuePriorityOrderingWithFIFOTieBreak(t *testing.T) {
	runMain(t, func(k *kernel.Kernel) {
		self := k.Current()
		q := k.NewMsgQueue(8, 4)

		send := func(v byte, prio uint8) {
			if st := self.SendMsg(q, []byte{v}, prio); st != kernel.StatusOK {
				t.Fatalf("send %d: %s", v, st)
			}
		}
		send(1, 3)
		send(2, 7)
		send(3, 5)
		send(4, 7)

		want := []byte{2, 4, 3, 1}
		dst := make([]byte, 4)
		for i, w := range want {
			n, _, st := self.ReceiveMsg(q, dst)
			if st != kernel.StatusOK {
				t.Fatalf("recv %d: %s", i, st)
			}
			if n < 1 || dst[0] != w {
				t.Fatalf("recv %d: got %v want %d", i, dst[:n], w)
			}
		}
	})
}

func TestMsgQueueSizeMismatch(t *testing.T) {
	runMain(t, func(k *kernel.Kernel) {
		self := k.Current()
		q := k.NewMsgQueue(2, 4)
		if st := self.SendMsg(q, []byte{1, 2, 3, 4, 5}, 0); st != kernel.StatusMsgSize {
			t.Fatalf("expected StatusMsgSize on oversized send, got %s", st)
		}
		self.SendMsg(q, []byte{9, 9, 9, 9}, 0)
		short := make([]byte, 2)
		if _, _, st := self.ReceiveMsg(q, short); st != kernel.StatusMsgSize {
			t.Fatalf("expected StatusMsgSize on undersized dst, got %s", st)
		}
	})
}

func TestMsgQueueTrySendReturnsAgainWhenFull(t *testing.T) {
	runMain(t, func(k *kernel.Kernel) {
		self := k.Current()
		q := k.NewMsgQueue(1, 4)
		if st := self.TrySendMsg(q, []byte{1, 2, 3, 4}, 0); st != kernel.StatusOK {
			t.Fatalf("first try-send: %s", st)
		}
		if st := self.TrySendMsg(q, []byte{5, 6, 7, 8}, 0); st != kernel.StatusAgain {
			t.Fatalf("expected StatusAgain when full, got %s", st)
		}
	})
}

func TestMsgQueueTimedReceiveTimesOut(t *testing.T) {
	runMain(t, func(k *kernel.Kernel) {
		self := k.Current()
		q := k.NewMsgQueue(1, 4)
		dst := make([]byte, 4)
		entry := k.Now()
		_, _, st := self.TimedReceiveMsg(q, dst, 10*time.Millisecond)
		wake := k.Now()
		if st != kernel.StatusTimedOut {
			t.Fatalf("expected StatusTimedOut, got %s", st)
		}
		if wake < entry+10 {
			t.Fatalf("woke too early: entry=%d wake=%d", entry, wake)
		}
	})
}

func TestMsgQueueResetFailsWaitersInPlace(t *testing.T) {
	runMain(t, func(k *kernel.Kernel) {
		self := k.Current()
		q := k.NewMsgQueue(1, 4)

		var recvSt kernel.Status
		r, _ := k.CreateThread(self, func(any) any {
			me := k.Current()
			dst := make([]byte, 4)
			_, _, recvSt = me.ReceiveMsg(q, dst)
			return nil
		}, nil, kernel.ThreadAttr{Name: "R", Priority: 5})

		q.Reset()
		self.Join(r)

		if recvSt != kernel.StatusNotRecoverable {
			t.Fatalf("expected StatusNotRecoverable after reset, got %s", recvSt)
		}
		if st := self.SendMsg(q, []byte{1, 2, 3, 4}, 0); st != kernel.StatusNotRecoverable {
			t.Fatalf("expected queue to stay poisoned (fail in place), got %s", st)
		}
	})
}
