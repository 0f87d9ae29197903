package bulkhead

import "sync"

// backlog is a bounded FIFO queue of tasks, sized per the bulkhead's sizing rule: negative capacity means
// unbounded, zero means synchronous handoff (no queueing at all -- Execute handles this case before ever
// touching the backlog), and a positive capacity bounds the queue to exactly that many pending tasks.
type backlog[R any] struct {
	mu       sync.Mutex
	tasks    []*task[R]
	capacity int
}

func newBacklog[R any](size int) *backlog[R] {
	capacity := size
	initialCap := 16
	switch {
	case size < 0:
		capacity = -1
	case size >= 10000:
		capacity = -1
		initialCap = 1024
	case size > 0 && size < 16:
		initialCap = size
	}
	return &backlog[R]{capacity: capacity, tasks: make([]*task[R], 0, initialCap)}
}

// synchronous reports whether this backlog represents the size-0 handoff case, where Execute never queues.
func (b *backlog[R]) synchronous() bool {
	return b.capacity == 0
}

func (b *backlog[R]) push(t *task[R]) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.capacity >= 0 && len(b.tasks) >= b.capacity {
		return false
	}
	b.tasks = append(b.tasks, t)
	return true
}

// peek returns the head of the queue without removing it, so the caller can attempt to acquire a permit using
// the head task's context before committing to dequeue it.
func (b *backlog[R]) peek() *task[R] {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.tasks) == 0 {
		return nil
	}
	return b.tasks[0]
}

// pop removes and returns the head of the queue, or nil if it's empty. It does not check that the head is the task
// an earlier peek returned; under the single-drainer election no other drainer pops in between.
func (b *backlog[R]) pop() *task[R] {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.tasks) == 0 {
		return nil
	}
	t := b.tasks[0]
	b.tasks = b.tasks[1:]
	return t
}
