package bulkhead

import (
	"context"
	"log/slog"
)

// SingleContext pins a Bulkhead to one fixed partition key shared by every task it accepts, asserting (via a
// warning log, not a panic) that callers are consistent about it. It exists to make the Enum-Context variant's
// single-key building block independently usable and testable.
type SingleContext[K comparable, R any] struct {
	key      K
	bulkhead *Bulkhead[R]
	logger   *slog.Logger
}

// NewSingleContext wraps bulkhead, asserting every task submitted to it carries key.
func NewSingleContext[K comparable, R any](key K, bulkhead *Bulkhead[R], logger *slog.Logger) *SingleContext[K, R] {
	return &SingleContext[K, R]{key: key, bulkhead: bulkhead, logger: logger}
}

// Key returns the partition key this bulkhead is pinned to.
func (s *SingleContext[K, R]) Key() K {
	return s.key
}

// Execute submits work under the asserted key. taskKey is checked against the pinned key purely as an assertion;
// a mismatch is logged but does not change dispatch behavior, since a SingleContext bulkhead has no way to route
// a task elsewhere.
func (s *SingleContext[K, R]) Execute(ctx context.Context, taskKey K, work func(ctx context.Context) (R, error)) *Future[R] {
	if s.logger != nil && taskKey != s.key && s.logger.Enabled(ctx, slog.LevelWarn) {
		s.logger.Warn("task submitted to single-context bulkhead with mismatched key")
	}
	return s.bulkhead.Execute(ctx, work)
}
