package bulkhead

import (
	"context"
	"log/slog"
	"sync"

	"github.com/climiter/climiter/limiter"
)

// EnumContext maintains one SingleContext bulkhead per distinct partition key, all sharing a single underlying
// limiter. Tasks submitted with equal keys are strictly FIFO within that key's backlog; tasks with different keys
// may interleave, since each key drains independently. The shared limiter still bounds total concurrency across
// every key combined.
type EnumContext[K comparable, R any] struct {
	limiter            limiter.Limiter
	backlogSize        int
	maxDispatchPerCall int
	classifier         ExceptionClassifier
	logger             *slog.Logger

	mu        sync.Mutex
	bulkheads map[K]*SingleContext[K, R]
}

// EnumContextBuilder builds an EnumContext. Not concurrency safe; build once at startup.
type EnumContextBuilder[K comparable, R any] struct {
	limiter            limiter.Limiter
	backlogSize        int
	maxDispatchPerCall int
	classifier         ExceptionClassifier
	logger             *slog.Logger
}

// NewEnumContextBuilder returns an EnumContextBuilder wrapping delegate, which every per-key bulkhead shares.
func NewEnumContextBuilder[K comparable, R any](delegate limiter.Limiter) *EnumContextBuilder[K, R] {
	return &EnumContextBuilder[K, R]{
		limiter:     delegate,
		backlogSize: -1,
		classifier:  alwaysDropped,
	}
}

// WithBacklog sets the per-key backlog size, using the same sizing rule as Builder.WithBacklog.
func (b *EnumContextBuilder[K, R]) WithBacklog(size int) *EnumContextBuilder[K, R] {
	b.backlogSize = size
	return b
}

// WithMaxDispatchPerCall caps how many tasks a single key's drain pass dispatches before returning.
func (b *EnumContextBuilder[K, R]) WithMaxDispatchPerCall(n int) *EnumContextBuilder[K, R] {
	b.maxDispatchPerCall = n
	return b
}

// WithExceptionClassifier overrides how a task's returned error is classified for estimator feedback.
func (b *EnumContextBuilder[K, R]) WithExceptionClassifier(classifier ExceptionClassifier) *EnumContextBuilder[K, R] {
	b.classifier = classifier
	return b
}

// WithLogger configures debug logging, shared by every per-key bulkhead this builder creates.
func (b *EnumContextBuilder[K, R]) WithLogger(logger *slog.Logger) *EnumContextBuilder[K, R] {
	b.logger = logger
	return b
}

// Build returns a ConfigError if the builder's settings are invalid, otherwise a new EnumContext.
func (b *EnumContextBuilder[K, R]) Build() (*EnumContext[K, R], error) {
	if b.limiter == nil {
		return nil, &ConfigError{Field: "limiter", Message: "must not be nil"}
	}
	return &EnumContext[K, R]{
		limiter:            b.limiter,
		backlogSize:        b.backlogSize,
		maxDispatchPerCall: b.maxDispatchPerCall,
		classifier:         b.classifier,
		logger:             b.logger,
		bulkheads:          make(map[K]*SingleContext[K, R]),
	}, nil
}

// Execute submits work under key, lazily creating that key's own backlog and drain loop on first use.
func (e *EnumContext[K, R]) Execute(ctx context.Context, key K, work func(ctx context.Context) (R, error)) *Future[R] {
	return e.bulkheadFor(key).Execute(ctx, key, work)
}

func (e *EnumContext[K, R]) bulkheadFor(key K) *SingleContext[K, R] {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sc, ok := e.bulkheads[key]; ok {
		return sc
	}
	inner, _ := NewBuilder[R](e.limiter).
		WithBacklog(e.backlogSize).
		WithMaxDispatchPerCall(e.maxDispatchPerCall).
		WithExceptionClassifier(e.classifier).
		WithLogger(e.logger).
		Build()
	inner.afterDispatch = e.drainAll
	sc := NewSingleContext(key, inner, e.logger)
	e.bulkheads[key] = sc
	return sc
}

// drainAll re-runs drain on every key's bulkhead, so a permit freed by one key's task completion is noticed by
// every other key waiting on the same shared limiter.
func (e *EnumContext[K, R]) drainAll() {
	e.mu.Lock()
	bulkheads := make([]*SingleContext[K, R], 0, len(e.bulkheads))
	for _, sc := range e.bulkheads {
		bulkheads = append(bulkheads, sc)
	}
	e.mu.Unlock()
	for _, sc := range bulkheads {
		sc.bulkhead.drain()
	}
}

// Keys returns the partition keys that have had at least one task submitted so far.
func (e *EnumContext[K, R]) Keys() []K {
	e.mu.Lock()
	defer e.mu.Unlock()
	keys := make([]K, 0, len(e.bulkheads))
	for k := range e.bulkheads {
		keys = append(keys, k)
	}
	return keys
}
