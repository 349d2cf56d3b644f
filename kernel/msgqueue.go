package kernel

import "time"

// msgSlot is one fixed-size slot in a MsgQueue's ring, intrusively linked
// into either the free list or the priority-ordered ready list (§3, §9
// "intrusive lists everywhere" — the queue allocates nothing per message).
type msgSlot struct {
	data     []byte
	len      int
	priority uint8

	next, prev *msgSlot
}

// MsgQueue is a fixed-capacity, priority-FIFO ring of fixed-size messages
// (§3, §4.12).
type MsgQueue struct {
	k *Kernel

	msgSize int
	slots   []msgSlot

	freeHead *msgSlot

	readyHead, readyTail *msgSlot
	occupancy            int

	notRecoverable bool
	sendWaiters    waitList
	recvWaiters    waitList
}

// NewMsgQueue creates a queue of n slots, each msgSize bytes.
func (k *Kernel) NewMsgQueue(n, msgSize int) *MsgQueue {
	q := &MsgQueue{k: k, msgSize: msgSize, slots: make([]msgSlot, n)}
	for i := range q.slots {
		s := &q.slots[i]
		s.data = make([]byte, msgSize)
		q.freePush(s)
	}
	return q
}

func (q *MsgQueue) freePush(s *msgSlot) {
	s.next = q.freeHead
	s.prev = nil
	if q.freeHead != nil {
		q.freeHead.prev = s
	}
	q.freeHead = s
}

func (q *MsgQueue) freePop() *msgSlot {
	s := q.freeHead
	if s == nil {
		return nil
	}
	q.freeHead = s.next
	if q.freeHead != nil {
		q.freeHead.prev = nil
	}
	s.next = nil
	return s
}

// readyInsert keeps (priority DESC, arrival ASC), walking from the tail
// since most sends arrive at or below the priority already at the back.
func (q *MsgQueue) readyInsert(s *msgSlot) {
	var after *msgSlot
	cur := q.readyTail
	for cur != nil && cur.priority < s.priority {
		after = cur
		cur = cur.prev
	}
	s.next = after
	s.prev = cur
	if cur != nil {
		cur.next = s
	} else {
		q.readyHead = s
	}
	if after != nil {
		after.prev = s
	} else {
		q.readyTail = s
	}
}

func (q *MsgQueue) readyPopHighest() *msgSlot {
	s := q.readyHead
	if s == nil {
		return nil
	}
	q.readyHead = s.next
	if q.readyHead != nil {
		q.readyHead.prev = nil
	} else {
		q.readyTail = nil
	}
	s.next = nil
	s.prev = nil
	return s
}

func (q *MsgQueue) sendImpl(self *Thread, msg []byte, priority uint8, mode lockMode, dur time.Duration) Status {
	if len(msg) > q.msgSize {
		return StatusMsgSize
	}
	k := q.k
	isr := k.InISR()
	if isr && mode != lockTry {
		return StatusNotPermitted
	}
	tok := k.criticalEnter()

	if q.notRecoverable {
		k.criticalExit(tok)
		return StatusNotRecoverable
	}

	for q.freeHead == nil {
		if mode == lockTry {
			k.criticalExit(tok)
			return StatusAgain
		}
		var reason WakeReason
		if mode == lockTimed {
			reason = k.waitForLocked(self, &q.sendWaiters, dur)
		} else {
			reason = k.parkIndefinitelyLocked(self, &q.sendWaiters)
		}
		if q.notRecoverable {
			k.criticalExit(tok)
			return StatusNotRecoverable
		}
		switch reason {
		case WakeTimeout:
			k.criticalExit(tok)
			return StatusTimedOut
		case WakeInterrupted:
			k.criticalExit(tok)
			return StatusInterrupted
		}
	}

	s := q.freePop()
	copy(s.data, msg)
	s.len = len(msg)
	s.priority = priority
	q.readyInsert(s)
	q.occupancy++

	var caller *Thread
	if !isr {
		caller = self
	}
	next := q.recvWaiters.popHighest()
	if next != nil {
		k.unparkLocked(next, WakeEvent)
	}
	k.rescheduleLocked(caller)
	k.criticalExit(tok)
	if caller != nil {
		k.gate(caller)
	}
	return StatusOK
}

// SendMsg blocks until a slot is free.
func (t *Thread) SendMsg(q *MsgQueue, msg []byte, priority uint8) Status {
	return q.sendImpl(t, msg, priority, lockIndefinite, 0)
}

// TrySendMsg never blocks; it is the only send flavour permitted from ISR
// context (§4.12, §5).
func (t *Thread) TrySendMsg(q *MsgQueue, msg []byte, priority uint8) Status {
	return q.sendImpl(t, msg, priority, lockTry, 0)
}

// TimedSendMsg blocks at most dur.
func (t *Thread) TimedSendMsg(q *MsgQueue, msg []byte, priority uint8, dur time.Duration) Status {
	return q.sendImpl(t, msg, priority, lockTimed, dur)
}

// recvImpl returns the message into dst, the priority it was sent with,
// the number of bytes copied, and a status. dst shorter than the queue's
// msgSize is StatusMsgSize (§4.12).
func (q *MsgQueue) recvImpl(self *Thread, dst []byte, mode lockMode, dur time.Duration) (int, uint8, Status) {
	if len(dst) < q.msgSize {
		return 0, 0, StatusMsgSize
	}
	k := q.k
	if k.InISR() {
		return 0, 0, StatusNotPermitted
	}
	tok := k.criticalEnter()

	if q.notRecoverable {
		k.criticalExit(tok)
		return 0, 0, StatusNotRecoverable
	}

	for q.readyHead == nil {
		if mode == lockTry {
			k.criticalExit(tok)
			return 0, 0, StatusAgain
		}
		var reason WakeReason
		if mode == lockTimed {
			reason = k.waitForLocked(self, &q.recvWaiters, dur)
		} else {
			reason = k.parkIndefinitelyLocked(self, &q.recvWaiters)
		}
		if q.notRecoverable {
			k.criticalExit(tok)
			return 0, 0, StatusNotRecoverable
		}
		switch reason {
		case WakeTimeout:
			k.criticalExit(tok)
			return 0, 0, StatusTimedOut
		case WakeInterrupted:
			k.criticalExit(tok)
			return 0, 0, StatusInterrupted
		}
	}

	s := q.readyPopHighest()
	n := copy(dst, s.data[:s.len])
	prio := s.priority
	q.occupancy--
	q.freePush(s)

	next := q.sendWaiters.popHighest()
	if next != nil {
		k.unparkLocked(next, WakeEvent)
	}
	k.rescheduleLocked(self)
	k.criticalExit(tok)
	k.gate(self)
	return n, prio, StatusOK
}

// ReceiveMsg blocks until a message is available.
func (t *Thread) ReceiveMsg(q *MsgQueue, dst []byte) (int, uint8, Status) {
	return q.recvImpl(t, dst, lockIndefinite, 0)
}

// TryReceiveMsg never blocks.
func (t *Thread) TryReceiveMsg(q *MsgQueue, dst []byte) (int, uint8, Status) {
	return q.recvImpl(t, dst, lockTry, 0)
}

// TimedReceiveMsg blocks at most dur.
func (t *Thread) TimedReceiveMsg(q *MsgQueue, dst []byte, dur time.Duration) (int, uint8, Status) {
	return q.recvImpl(t, dst, lockTimed, dur)
}

// Occupancy returns the number of messages currently queued.
func (q *MsgQueue) Occupancy() int {
	k := q.k
	tok := k.criticalEnter()
	defer k.criticalExit(tok)
	return q.occupancy
}

// Reset discards all queued messages and wakes every waiter (both senders
// and receivers) with StatusNotRecoverable (§4.12, §9 open question
// resolution).
func (q *MsgQueue) Reset() Status {
	k := q.k
	var caller *Thread
	if !k.InISR() {
		caller = k.Current()
	}
	tok := k.criticalEnter()
	q.notRecoverable = true
	for s := q.readyPopHighest(); s != nil; s = q.readyPopHighest() {
		q.freePush(s)
	}
	q.occupancy = 0
	for _, w := range q.sendWaiters.drain() {
		k.unparkLocked(w, WakeEvent)
	}
	for _, w := range q.recvWaiters.drain() {
		k.unparkLocked(w, WakeEvent)
	}
	k.rescheduleLocked(caller)
	k.criticalExit(tok)
	if caller != nil {
		k.gate(caller)
	}
	return StatusOK
}
