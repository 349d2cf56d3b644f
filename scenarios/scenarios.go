// Package scenarios implements the §8 end-to-end demonstration
// scenarios as runnable programs against a live kernel.Kernel, driven
// through harness.Run. Each scenario is intentionally small and
// self-checking: it returns a Report describing what it observed so
// cmd/sparkrtctl can print a pass/fail line without needing a testing.T.
package scenarios

import (
	"context"
	"fmt"
	"time"

	"sparkrt/harness"
	"sparkrt/kernel"
)

// Report is one scenario's outcome.
type Report struct {
	Name    string
	Passed  bool
	Detail  string
	Elapsed time.Duration
}

// Scenario is a named, runnable demonstration.
type Scenario struct {
	Name string
	Run  func(ctx context.Context) Report
}

// All lists every scenario in the order they appear in §8.
func All() []Scenario {
	return []Scenario{
		{"priority-preemption", PriorityPreemption},
		{"mutex-inheritance", MutexInheritance},
		{"condvar", CondVarScenario},
		{"robust-mutex", RobustMutex},
		{"msgqueue-priority", MsgQueuePriority},
		{"timed-wait-timeout", TimedWaitTimeout},
	}
}

func baseConfig() kernel.Config {
	cfg := kernel.DefaultConfig()
	cfg.MaxThreads = 16
	return cfg
}

// PriorityPreemption: A(prio=5) sleeps 100 ticks; B(prio=10), created
// while A sleeps, is expected to run to completion before A wakes.
func PriorityPreemption(ctx context.Context) Report {
	start := time.Now()
	var bRanFirst bool
	var order []string

	res, err := harness.Run(ctx, harness.Options{
		Config:       baseConfig(),
		TickInterval: time.Millisecond,
		Duration:     2 * time.Second,
		MainFactory: func(k *kernel.Kernel) kernel.EntryFunc { return func(any) any {
			self := k.Current()

			var a *kernel.Thread
			a, _ = k.CreateThread(self, func(any) any {
				me := k.Current()
				order = append(order, "A-start")
				me.SleepFor(100 * time.Millisecond)
				order = append(order, "A-resume")
				return nil
			}, nil, kernel.ThreadAttr{Name: "A", Priority: 5})

			time.Sleep(5 * time.Millisecond) // let A start and enter sleep

			var b *kernel.Thread
			b, _ = k.CreateThread(self, func(any) any {
				order = append(order, "B-run")
				// B runs after A started and before A resumed from its sleep.
				bRanFirst = len(order) == 2 && order[0] == "A-start"
				return nil
			}, nil, kernel.ThreadAttr{Name: "B", Priority: 10})

			self.Join(a)
			self.Join(b)
			return nil
		} },
	})
	_ = res
	passed := err == nil && bRanFirst
	return Report{
		Name:    "priority-preemption",
		Passed:  passed,
		Detail:  fmt.Sprintf("order=%v err=%v", order, err),
		Elapsed: time.Since(start),
	}
}

// MutexInheritance: L(prio=4) holds M; H(prio=10) blocks on lock(M);
// L's effective priority should rise to 10 until it unlocks.
func MutexInheritance(ctx context.Context) Report {
	start := time.Now()
	var observedBoost kernel.Priority

	_, err := harness.Run(ctx, harness.Options{
		Config:       baseConfig(),
		TickInterval: time.Millisecond,
		Duration:     2 * time.Second,
		MainFactory: func(k *kernel.Kernel) kernel.EntryFunc { return func(any) any {
			self := k.Current()
			m := k.NewMutex(kernel.MutexAttr{Protocol: kernel.ProtocolInherit})

			var l *kernel.Thread
			l, _ = k.CreateThread(self, func(any) any {
				me := k.Current()
				me.Lock(m)
				me.SleepFor(20 * time.Millisecond)
				observedBoost = me.EffectivePriority()
				m.Unlock(me)
				return nil
			}, nil, kernel.ThreadAttr{Name: "L", Priority: 4})

			time.Sleep(5 * time.Millisecond)

			var h *kernel.Thread
			h, _ = k.CreateThread(self, func(any) any {
				me := k.Current()
				me.Lock(m)
				m.Unlock(me)
				return nil
			}, nil, kernel.ThreadAttr{Name: "H", Priority: 10})

			self.Join(l)
			self.Join(h)
			return nil
		} },
	})

	passed := err == nil && observedBoost == 10
	return Report{
		Name:    "mutex-inheritance",
		Passed:  passed,
		Detail:  fmt.Sprintf("L effective priority while held=%d err=%v", observedBoost, err),
		Elapsed: time.Since(start),
	}
}

// CondVarScenario: W waits on a condvar paired with mx; S signals it
// after acquiring mx. A second signal with no waiter must be a no-op.
func CondVarScenario(ctx context.Context) Report {
	start := time.Now()
	var wOK, secondSignalOK bool

	_, err := harness.Run(ctx, harness.Options{
		Config:       baseConfig(),
		TickInterval: time.Millisecond,
		Duration:     2 * time.Second,
		MainFactory: func(k *kernel.Kernel) kernel.EntryFunc { return func(any) any {
			self := k.Current()
			mx := k.NewMutex(kernel.MutexAttr{})
			cv := k.NewCondVar()

			var w *kernel.Thread
			w, _ = k.CreateThread(self, func(any) any {
				me := k.Current()
				me.Lock(mx)
				st := cv.Wait(me, mx)
				wOK = st.OK()
				mx.Unlock(me)
				return nil
			}, nil, kernel.ThreadAttr{Name: "W", Priority: 5})

			time.Sleep(5 * time.Millisecond)

			var s *kernel.Thread
			s, _ = k.CreateThread(self, func(any) any {
				me := k.Current()
				me.Lock(mx)
				cv.Signal(me)
				mx.Unlock(me)
				return nil
			}, nil, kernel.ThreadAttr{Name: "S", Priority: 5})

			self.Join(w)
			self.Join(s)

			st := cv.Signal(self)
			secondSignalOK = st.OK()
			return nil
		} },
	})

	passed := err == nil && wOK && secondSignalOK
	return Report{
		Name:    "condvar",
		Passed:  passed,
		Detail:  fmt.Sprintf("wOK=%v secondSignalOK=%v err=%v", wOK, secondSignalOK, err),
		Elapsed: time.Since(start),
	}
}

// RobustMutex: A terminates holding a robust mutex without unlocking;
// B's lock observes ownerdead; unlocking without mark_consistent
// poisons the mutex permanently.
func RobustMutex(ctx context.Context) Report {
	start := time.Now()
	var bLockStatus, bUnlockStatus, secondLockStatus kernel.Status

	_, err := harness.Run(ctx, harness.Options{
		Config:       baseConfig(),
		TickInterval: time.Millisecond,
		Duration:     2 * time.Second,
		MainFactory: func(k *kernel.Kernel) kernel.EntryFunc { return func(any) any {
			self := k.Current()
			m := k.NewMutex(kernel.MutexAttr{Robustness: kernel.Robust})

			var a *kernel.Thread
			a, _ = k.CreateThread(self, func(any) any {
				me := k.Current()
				me.Lock(m)
				return nil // exits without unlocking
			}, nil, kernel.ThreadAttr{Name: "A", Priority: 5})
			self.Join(a)

			var b *kernel.Thread
			b, _ = k.CreateThread(self, func(any) any {
				me := k.Current()
				bLockStatus = me.Lock(m)
				bUnlockStatus = m.Unlock(me)
				return nil
			}, nil, kernel.ThreadAttr{Name: "B", Priority: 5})
			self.Join(b)

			var c *kernel.Thread
			c, _ = k.CreateThread(self, func(any) any {
				me := k.Current()
				secondLockStatus = me.Lock(m)
				return nil
			}, nil, kernel.ThreadAttr{Name: "C", Priority: 5})
			self.Join(c)
			return nil
		} },
	})

	passed := err == nil &&
		bLockStatus == kernel.StatusOwnerDead &&
		bUnlockStatus == kernel.StatusOK &&
		secondLockStatus == kernel.StatusNotRecoverable
	return Report{
		Name:   "robust-mutex",
		Passed: passed,
		Detail: fmt.Sprintf("bLock=%v bUnlock=%v secondLock=%v err=%v",
			bLockStatus, bUnlockStatus, secondLockStatus, err),
		Elapsed: time.Since(start),
	}
}

// MsgQueuePriority: enqueue priorities [3,7,5,7], dequeue four times,
// expect [7,7,5,3] with the two 7s in insertion order.
func MsgQueuePriority(ctx context.Context) Report {
	start := time.Now()
	var got []uint8

	_, err := harness.Run(ctx, harness.Options{
		Config:       baseConfig(),
		TickInterval: time.Millisecond,
		Duration:     2 * time.Second,
		MainFactory: func(k *kernel.Kernel) kernel.EntryFunc { return func(any) any {
			self := k.Current()
			q := k.NewMsgQueue(8, 4)

			for i, p := range []uint8{3, 7, 5, 7} {
				msg := []byte(fmt.Sprintf("m%d", i))
				self.SendMsg(q, msg, p)
			}
			buf := make([]byte, 4)
			for i := 0; i < 4; i++ {
				_, prio, _ := self.ReceiveMsg(q, buf)
				got = append(got, prio)
			}
			return nil
		} },
	})

	want := []uint8{7, 7, 5, 3}
	passed := err == nil && len(got) == len(want)
	if passed {
		for i := range want {
			if got[i] != want[i] {
				passed = false
				break
			}
		}
	}
	return Report{
		Name:    "msgqueue-priority",
		Passed:  passed,
		Detail:  fmt.Sprintf("got=%v want=%v err=%v", got, want, err),
		Elapsed: time.Since(start),
	}
}

// TimedWaitTimeout: semaphore count 0, timed_wait(10 ticks), no post ⇒
// returns timedout at tick ≥ entry+10.
func TimedWaitTimeout(ctx context.Context) Report {
	start := time.Now()
	var st kernel.Status
	var entryTick, wakeTick uint64

	_, err := harness.Run(ctx, harness.Options{
		Config:       baseConfig(),
		TickInterval: time.Millisecond,
		Duration:     2 * time.Second,
		MainFactory: func(k *kernel.Kernel) kernel.EntryFunc { return func(any) any {
			self := k.Current()
			s := k.NewSemaphore(0, 1)

			entryTick = k.Now()
			st = self.TimedSemWait(s, 10*time.Millisecond)
			wakeTick = k.Now()
			return nil
		} },
	})

	passed := err == nil && st == kernel.StatusTimedOut && wakeTick >= entryTick+10
	return Report{
		Name:    "timed-wait-timeout",
		Passed:  passed,
		Detail:  fmt.Sprintf("status=%v entry=%d wake=%d err=%v", st, entryTick, wakeTick, err),
		Elapsed: time.Since(start),
	}
}
