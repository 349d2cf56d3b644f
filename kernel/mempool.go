package kernel

import (
	"time"
	"unsafe"
)

// freeBlock overlays the first word of a free block to chain it into the
// LIFO free list, exactly per §3's "intrusive free list chained through
// the blocks themselves" — no separate bookkeeping node is allocated.
type freeBlock struct {
	next *freeBlock
}

// MemPool is a fixed-block allocator over a single contiguous byte
// region, with blocking allocation on exhaustion (§3, §4.13).
type MemPool struct {
	k *Kernel

	region    []byte
	blockSize int
	numBlocks int
	ownsStore bool

	free *freeBlock
	live int

	notRecoverable bool
	waiters        waitList
}

// NewMemPool creates a pool of numBlocks blocks of blockSize bytes each.
// If region is nil, the kernel acquires its own backing storage, which it
// tracks for the destroyer protocol's "must be released on destruction"
// note (§3); this simulation has no explicit destroy call, so ownsStore is
// kept for parity with the native API shape. blockSize is rounded up to a
// multiple of the pointer size, because a free block holds its free-list
// link in its first word; a caller-supplied region must hold numBlocks
// blocks of that rounded size.
func (k *Kernel) NewMemPool(region []byte, blockSize, numBlocks int) *MemPool {
	if word := int(unsafe.Sizeof(freeBlock{})); blockSize%word != 0 {
		blockSize += word - blockSize%word
	}
	owns := false
	if region == nil {
		region = make([]byte, blockSize*numBlocks)
		owns = true
	}
	p := &MemPool{
		k:         k,
		region:    region,
		blockSize: blockSize,
		numBlocks: numBlocks,
		ownsStore: owns,
	}
	for i := numBlocks - 1; i >= 0; i-- {
		p.freePush(p.blockAt(i))
	}
	return p
}

func (p *MemPool) blockAt(i int) []byte {
	return p.region[i*p.blockSize : (i+1)*p.blockSize]
}

func (p *MemPool) freePush(b []byte) {
	fb := (*freeBlock)(unsafe.Pointer(&b[0]))
	fb.next = p.free
	p.free = fb
}

func (p *MemPool) freePop() []byte {
	fb := p.free
	if fb == nil {
		return nil
	}
	p.free = fb.next
	n := unsafe.Pointer(fb)
	return unsafe.Slice((*byte)(n), p.blockSize)
}

func (p *MemPool) allocImpl(self *Thread, mode lockMode, dur time.Duration) ([]byte, Status) {
	k := p.k
	if k.InISR() && mode != lockTry {
		return nil, StatusNotPermitted
	}
	tok := k.criticalEnter()

	if p.notRecoverable {
		k.criticalExit(tok)
		return nil, StatusNotRecoverable
	}

	for p.free == nil {
		if mode == lockTry {
			k.criticalExit(tok)
			return nil, StatusAgain
		}
		var reason WakeReason
		if mode == lockTimed {
			reason = k.waitForLocked(self, &p.waiters, dur)
		} else {
			reason = k.parkIndefinitelyLocked(self, &p.waiters)
		}
		if p.notRecoverable {
			k.criticalExit(tok)
			return nil, StatusNotRecoverable
		}
		switch reason {
		case WakeTimeout:
			k.criticalExit(tok)
			return nil, StatusTimedOut
		case WakeInterrupted:
			k.criticalExit(tok)
			return nil, StatusInterrupted
		}
	}

	b := p.freePop()
	p.live++
	k.criticalExit(tok)
	return b, StatusOK
}

// AllocBlock blocks until a block is available.
func (t *Thread) AllocBlock(p *MemPool) ([]byte, Status) { return p.allocImpl(t, lockIndefinite, 0) }

// TryAllocBlock never blocks.
func (t *Thread) TryAllocBlock(p *MemPool) ([]byte, Status) { return p.allocImpl(t, lockTry, 0) }

// TimedAllocBlock blocks at most dur.
func (t *Thread) TimedAllocBlock(p *MemPool, dur time.Duration) ([]byte, Status) {
	return p.allocImpl(t, lockTimed, dur)
}

// Free returns a block to the pool, waking the highest-priority blocked
// allocator if any. A pointer outside the pool's region is rejected with
// StatusInvalid (§4.13) rather than corrupting the free list.
func (p *MemPool) Free(block []byte) Status {
	if len(block) != p.blockSize || !p.owns(block) {
		return StatusInvalid
	}
	k := p.k
	var caller *Thread
	if !k.InISR() {
		caller = k.Current()
	}
	tok := k.criticalEnter()
	p.freePush(block)
	p.live--

	next := p.waiters.popHighest()
	if next != nil {
		k.unparkLocked(next, WakeEvent)
		k.rescheduleLocked(caller)
	}
	k.criticalExit(tok)
	if caller != nil {
		k.gate(caller)
	}
	return StatusOK
}

func (p *MemPool) owns(block []byte) bool {
	base := uintptr(unsafe.Pointer(&p.region[0]))
	end := base + uintptr(len(p.region))
	ptr := uintptr(unsafe.Pointer(&block[0]))
	if ptr < base || ptr >= end {
		return false
	}
	return (ptr-base)%uintptr(p.blockSize) == 0
}

// Live returns the number of blocks currently allocated.
func (p *MemPool) Live() int {
	k := p.k
	tok := k.criticalEnter()
	defer k.criticalExit(tok)
	return p.live
}

// Reset fails in place: it poisons the pool permanently and wakes every
// waiter so each observes StatusNotRecoverable on its own return path,
// rather than rebuilding the free list for further use (§4.13, §9 open
// question resolution).
func (p *MemPool) Reset() Status {
	k := p.k
	var caller *Thread
	if !k.InISR() {
		caller = k.Current()
	}
	tok := k.criticalEnter()
	p.notRecoverable = true
	for _, w := range p.waiters.drain() {
		k.unparkLocked(w, WakeEvent)
	}
	k.rescheduleLocked(caller)
	k.criticalExit(tok)
	if caller != nil {
		k.gate(caller)
	}
	return StatusOK
}
