// Package bulkhead provides a non-blocking frontend that accepts asynchronous work, buffers it in a bounded
// backlog, and dispatches it under a limiter's permit count while preserving enqueue order.
package bulkhead

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/climiter/climiter/limiter"
)

// Outcome classifies how a task's work function completed, for Listener reporting.
type Outcome int

const (
	// OutcomeDropped reports an overload-indicative failure (timeout, unavailable) to the limiter's estimator.
	OutcomeDropped Outcome = iota
	// OutcomeIgnored reports a failure whose timing shouldn't influence the estimator.
	OutcomeIgnored
)

// ExceptionClassifier decides how a non-nil error returned by a task's work function should be reported. It's
// only ever called with a non-nil error; successful completions never reach it.
type ExceptionClassifier func(err error) Outcome

// alwaysDropped is the default classifier: every error is treated as an overload signal.
func alwaysDropped(error) Outcome { return OutcomeDropped }

// Future is the handle returned by Execute; the caller awaits it to learn the task's result once dispatched and
// completed. A rejected task's future is already completed with ErrRejected when Execute returns.
type Future[R any] struct {
	done   chan struct{}
	result R
	err    error
}

func newFuture[R any]() *Future[R] {
	return &Future[R]{done: make(chan struct{})}
}

func (f *Future[R]) complete(result R, err error) {
	f.result = result
	f.err = err
	close(f.done)
}

// Wait blocks until the task completes (or fails before dispatch), or ctx is done.
func (f *Future[R]) Wait(ctx context.Context) (R, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// Done returns a channel closed once the future completes, for use in a select alongside other work.
func (f *Future[R]) Done() <-chan struct{} {
	return f.done
}

type task[R any] struct {
	work   func(ctx context.Context) (R, error)
	ctx    context.Context
	future *Future[R]
}

// Bulkhead buffers asynchronous work in a bounded FIFO backlog and dispatches it as the wrapped limiter admits
// permits. This is the FIFO-parallel variant: dispatched tasks run concurrently and in no particular completion
// order, though they're pulled from the backlog in enqueue order.
type Bulkhead[R any] struct {
	limiter            limiter.Limiter
	classifier         ExceptionClassifier
	maxDispatchPerCall int
	logger             *slog.Logger
	backlog            *backlog[R]
	draining           atomic.Bool

	// afterDispatch, when set, runs after this bulkhead's own drain on every task completion. EnumContext uses it
	// to re-drain every other key's backlog too, since a permit freed by one key's task is visible to every key
	// sharing the same limiter, but only this key's own drain loop would otherwise notice it.
	afterDispatch func()
}

// Builder builds a Bulkhead. Not concurrency safe; build once at startup.
type Builder[R any] struct {
	limiter            limiter.Limiter
	backlogSize        int
	maxDispatchPerCall int
	classifier         ExceptionClassifier
	logger             *slog.Logger
}

// NewBuilder returns a Builder wrapping delegate, with an unbounded backlog and no per-call dispatch cap by
// default.
func NewBuilder[R any](delegate limiter.Limiter) *Builder[R] {
	return &Builder[R]{
		limiter:            delegate,
		backlogSize:        -1,
		maxDispatchPerCall: 0,
		classifier:         alwaysDropped,
	}
}

// WithBacklog sets the backlog size: negative for unbounded, 0 for synchronous handoff (Execute rejects instead
// of queueing when no permit is immediately available), 10000 or more for unbounded with a sizing hint, otherwise
// a bounded FIFO of exactly size.
func (b *Builder[R]) WithBacklog(size int) *Builder[R] {
	b.backlogSize = size
	return b
}

// WithMaxDispatchPerCall caps how many tasks a single drain pass dispatches before returning, so one completion
// callback can't recursively dispatch the entire backlog on one goroutine. Zero means unlimited.
func (b *Builder[R]) WithMaxDispatchPerCall(n int) *Builder[R] {
	b.maxDispatchPerCall = n
	return b
}

// WithExceptionClassifier overrides how a task's returned error is classified for estimator feedback. Defaults to
// classifying every error as OutcomeDropped.
func (b *Builder[R]) WithExceptionClassifier(classifier ExceptionClassifier) *Builder[R] {
	b.classifier = classifier
	return b
}

// WithLogger configures debug logging of tasks rejected because the backlog is full. Nil (the default) disables
// logging.
func (b *Builder[R]) WithLogger(logger *slog.Logger) *Builder[R] {
	b.logger = logger
	return b
}

// Build returns a ConfigError if the builder's settings are invalid, otherwise a new Bulkhead.
func (b *Builder[R]) Build() (*Bulkhead[R], error) {
	if b.limiter == nil {
		return nil, &ConfigError{Field: "limiter", Message: "must not be nil"}
	}
	maxDispatch := b.maxDispatchPerCall
	if maxDispatch <= 0 {
		maxDispatch = 1<<31 - 1
	}
	return &Bulkhead[R]{
		limiter:            b.limiter,
		classifier:         b.classifier,
		maxDispatchPerCall: maxDispatch,
		logger:             b.logger,
		backlog:            newBacklog[R](b.backlogSize),
	}, nil
}

// Execute enqueues work for asynchronous dispatch and returns immediately with a Future the caller can await. ctx
// is consulted for cancellation both while queued (if cancelled before dispatch, the future fails with
// ErrCancelled) and is passed through to the limiter's partition resolver and bypass predicate on Acquire.
func (b *Bulkhead[R]) Execute(ctx context.Context, work func(ctx context.Context) (R, error)) *Future[R] {
	future := newFuture[R]()
	t := &task[R]{work: work, ctx: ctx, future: future}

	if b.backlog.synchronous() {
		listener, ok := b.limiter.Acquire(ctx)
		if !ok {
			var zero R
			future.complete(zero, ErrRejected)
			return future
		}
		b.dispatch(listener, t)
		return future
	}

	if !b.backlog.push(t) {
		if b.logger != nil && b.logger.Enabled(ctx, slog.LevelDebug) {
			b.logger.Debug("bulkhead rejected task, backlog full")
		}
		var zero R
		future.complete(zero, ErrRejected)
		return future
	}
	b.drain()
	return future
}

// drain is reentrant: only one goroutine actually drains at a time, elected via CAS on the draining flag;
// concurrent callers that lose the race return immediately, trusting the winner to process the backlog. A
// drainer that finds the backlog empty clears the flag and re-peeks before actually giving up it: a task that
// landed in the window between the last peek and clearing the flag would otherwise be seen by no one, since a
// concurrent drain() racing against the still-set flag returns immediately trusting this goroutine to finish.
func (b *Bulkhead[R]) drain() {
	if !b.draining.CompareAndSwap(false, true) {
		return
	}

	for {
		dispatched := 0
		emptied := false
		for dispatched < b.maxDispatchPerCall {
			head := b.backlog.peek()
			if head == nil {
				emptied = true
				break
			}
			listener, ok := b.limiter.Acquire(head.ctx)
			if !ok {
				break
			}
			t := b.backlog.pop()
			if t == nil {
				// The backlog emptied between peek and pop; give the permit back.
				listener.OnIgnore()
				continue
			}
			if t.ctx != nil && t.ctx.Err() != nil {
				listener.OnIgnore()
				var zero R
				t.future.complete(zero, fmt.Errorf("%w: %v", ErrCancelled, t.ctx.Err()))
				continue
			}
			dispatched++
			b.dispatch(listener, t)
		}

		if !emptied {
			// Either maxDispatchPerCall was hit, or a permit wasn't available: the backlog still holds real work,
			// so either a fresh Execute or the next task completion (which always calls drain again) will make
			// progress on it. No re-check needed since nothing was missed.
			b.draining.Store(false)
			return
		}

		b.draining.Store(false)
		if b.backlog.peek() == nil {
			return
		}
		if !b.draining.CompareAndSwap(false, true) {
			return
		}
	}
}

func (b *Bulkhead[R]) dispatch(listener limiter.Listener, t *task[R]) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				listener.OnIgnore()
				var zero R
				t.future.complete(zero, fmt.Errorf("climiter/bulkhead: task panicked: %v", r))
				b.drain()
				if b.afterDispatch != nil {
					b.afterDispatch()
				}
			}
		}()

		result, err := t.work(t.ctx)
		if err == nil {
			listener.OnSuccess()
			t.future.complete(result, nil)
		} else {
			if b.classifier(err) == OutcomeDropped {
				listener.OnDropped()
			} else {
				listener.OnIgnore()
			}
			var zero R
			t.future.complete(zero, err)
		}
		b.drain()
		if b.afterDispatch != nil {
			b.afterDispatch()
		}
	}()
}
