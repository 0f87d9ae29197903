package limiter

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/bits-and-blooms/bitset"
)

// lifoSlot is one reservation in the backlog. seq orders slots by enqueue time so wakeNext can find the
// most-recently-enqueued occupied slot; wake is closed at most once, by wakeNext. A waiter that gives up clears its
// slot instead of closing wake.
type lifoSlot struct {
	seq  int64
	wake chan struct{}
}

// LIFOBlocking wraps a Limiter with a bounded backlog of waiters served in last-in-first-out order: the most
// recently enqueued waiter is the next one retried when a permit frees up. Occupancy of the fixed-size backlog is
// tracked in a bitset rather than a slice of pointers scanned for nil.
type LIFOBlocking struct {
	delegate Limiter
	backlog  uint

	mu       sync.Mutex
	occupied *bitset.BitSet
	slots    []*lifoSlot
	nextSeq  int64
}

// LIFOBlockingBuilder builds a LIFOBlocking decorator around delegate. Not concurrency safe; build once at
// startup.
type LIFOBlockingBuilder struct {
	delegate Limiter
	backlog  uint
}

// NewLIFOBlockingBuilder returns a LIFOBlockingBuilder wrapping delegate with a default backlog of 10 waiters.
func NewLIFOBlockingBuilder(delegate Limiter) *LIFOBlockingBuilder {
	return &LIFOBlockingBuilder{delegate: delegate, backlog: 10}
}

// WithBacklog sets the maximum number of waiters queued before Acquire starts rejecting outright.
func (b *LIFOBlockingBuilder) WithBacklog(n uint) *LIFOBlockingBuilder {
	b.backlog = n
	return b
}

// Build returns a ConfigError if the builder's settings are invalid, otherwise a new LIFOBlocking limiter.
func (b *LIFOBlockingBuilder) Build() (*LIFOBlocking, error) {
	if b.delegate == nil {
		return nil, &ConfigError{Field: "delegate", Message: "must not be nil"}
	}
	if b.backlog == 0 {
		return nil, &ConfigError{Field: "backlog", Message: "must be greater than zero"}
	}
	return &LIFOBlocking{
		delegate: b.delegate,
		backlog:  b.backlog,
		occupied: bitset.New(b.backlog),
		slots:    make([]*lifoSlot, b.backlog),
	}, nil
}

func (l *LIFOBlocking) Limit() int {
	return l.delegate.Limit()
}

func (l *LIFOBlocking) Inflight() int {
	return l.delegate.Inflight()
}

// Acquire tries the delegate first. If the delegate is at capacity, the caller is enqueued into the backlog (LIFO
// order on wake) rather than rejected immediately; it's only rejected outright if the backlog itself is full.
func (l *LIFOBlocking) Acquire(ctx context.Context) (Listener, bool) {
	if listener, ok := l.delegate.Acquire(ctx); ok {
		return &lifoReleaseListener{Listener: listener, owner: l}, true
	}

	slot, idx, ok := l.enqueue()
	if !ok {
		return nil, false
	}

	select {
	case <-slot.wake:
		if listener, ok := l.delegate.Acquire(ctx); ok {
			return &lifoReleaseListener{Listener: listener, owner: l}, true
		}
		return nil, false
	case <-ctx.Done():
		l.dequeue(idx, slot)
		return nil, false
	}
}

func (l *LIFOBlocking) enqueue() (*lifoSlot, uint, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx, ok := l.occupied.NextClear(0)
	if !ok || idx >= l.backlog {
		return nil, 0, false
	}
	l.occupied.Set(idx)
	l.nextSeq++
	slot := &lifoSlot{seq: l.nextSeq, wake: make(chan struct{})}
	l.slots[idx] = slot
	return slot, idx, true
}

// dequeue removes a waiter that gave up (ctx done) before being woken. A no-op if the slot was already claimed by
// wakeNext, which races harmlessly with this under the mutex.
func (l *LIFOBlocking) dequeue(idx uint, slot *lifoSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.slots[idx] == slot && l.occupied.Test(idx) {
		l.occupied.Clear(idx)
		l.slots[idx] = nil
	}
}

// wakeNext finds the occupied slot with the highest sequence number -- the most recently enqueued waiter -- and
// wakes it. A no-op if the backlog is empty.
func (l *LIFOBlocking) wakeNext() {
	l.mu.Lock()
	var bestIdx uint
	var bestSeq int64 = -1
	found := false
	for i, present := l.occupied.NextSet(0); present; i, present = l.occupied.NextSet(i + 1) {
		if l.slots[i] != nil && l.slots[i].seq > bestSeq {
			bestSeq = l.slots[i].seq
			bestIdx = i
			found = true
		}
	}
	if !found {
		l.mu.Unlock()
		return
	}
	slot := l.slots[bestIdx]
	l.occupied.Clear(bestIdx)
	l.slots[bestIdx] = nil
	l.mu.Unlock()
	close(slot.wake)
}

// lifoReleaseListener wakes the most recently enqueued backlog waiter after the wrapped listener releases its
// permit. Only the first terminal call wakes a waiter.
type lifoReleaseListener struct {
	Listener
	owner *LIFOBlocking
	done  atomic.Bool
}

func (l *lifoReleaseListener) OnSuccess() {
	l.Listener.OnSuccess()
	if l.done.CompareAndSwap(false, true) {
		l.owner.wakeNext()
	}
}

func (l *lifoReleaseListener) OnDropped() {
	l.Listener.OnDropped()
	if l.done.CompareAndSwap(false, true) {
		l.owner.wakeNext()
	}
}

func (l *lifoReleaseListener) OnIgnore() {
	l.Listener.OnIgnore()
	if l.done.CompareAndSwap(false, true) {
		l.owner.wakeNext()
	}
}
