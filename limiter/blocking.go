package limiter

import (
	"context"
	"sync"

	"github.com/climiter/climiter/limit"
)

// Blocking wraps a Limiter so that Acquire waits, instead of failing immediately, until the delegate admits the
// request or ctx is done. Waiters are woken by a condition variable broadcast on every release of a permit
// obtained through this decorator, and optionally on every change to an estimator's limit.
type Blocking struct {
	delegate Limiter
	mu       sync.Mutex
	cond     *sync.Cond
}

// BlockingBuilder builds a Blocking decorator around delegate. Not concurrency safe; build once at startup.
type BlockingBuilder struct {
	delegate  Limiter
	estimator limit.Limit
}

// NewBlockingBuilder returns a BlockingBuilder wrapping delegate.
func NewBlockingBuilder(delegate Limiter) *BlockingBuilder {
	return &BlockingBuilder{delegate: delegate}
}

// WithChangeSource additionally wakes blocked waiters whenever estimator's limit changes, so a capacity increase
// is noticed even if no in-flight request happens to complete around the same time.
func (b *BlockingBuilder) WithChangeSource(estimator limit.Limit) *BlockingBuilder {
	b.estimator = estimator
	return b
}

// Build returns a ConfigError if the builder's settings are invalid, otherwise a new Blocking limiter.
func (b *BlockingBuilder) Build() (*Blocking, error) {
	if b.delegate == nil {
		return nil, &ConfigError{Field: "delegate", Message: "must not be nil"}
	}
	l := &Blocking{delegate: b.delegate}
	l.cond = sync.NewCond(&l.mu)
	if b.estimator != nil {
		b.estimator.NotifyOnChange(func(int) { l.signal() })
	}
	return l, nil
}

func (b *Blocking) Limit() int {
	return b.delegate.Limit()
}

func (b *Blocking) Inflight() int {
	return b.delegate.Inflight()
}

// Acquire retries the delegate's Acquire, blocking between attempts until a release or limit change wakes it, or
// ctx is done.
func (b *Blocking) Acquire(ctx context.Context) (Listener, bool) {
	for {
		if listener, ok := b.delegate.Acquire(ctx); ok {
			return &blockingListener{Listener: listener, owner: b}, true
		}
		if !b.await(ctx) {
			return nil, false
		}
	}
}

func (b *Blocking) signal() {
	b.mu.Lock()
	b.cond.Broadcast()
	b.mu.Unlock()
}

// await blocks until woken by signal or ctx is done, returning false in the latter case. A goroutine watches
// ctx.Done() for the duration of this call and is told to exit when await returns.
func (b *Blocking) await(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return false
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			b.cond.Broadcast()
			b.mu.Unlock()
		case <-done:
		}
	}()

	b.cond.Wait()
	return ctx.Err() == nil
}

// blockingListener broadcasts to wake blocked waiters after the wrapped listener releases its permit.
type blockingListener struct {
	Listener
	owner *Blocking
}

func (l *blockingListener) OnSuccess() {
	l.Listener.OnSuccess()
	l.owner.signal()
}

func (l *blockingListener) OnDropped() {
	l.Listener.OnDropped()
	l.owner.signal()
}

func (l *blockingListener) OnIgnore() {
	l.Listener.OnIgnore()
	l.owner.signal()
}
