// Package climitergrpc provides thin gRPC unary and stream server interceptors that gate calls through a
// github.com/climiter/climiter/limiter.Limiter and feed the call's outcome back into it.
package climitergrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/climiter/climiter/limiter"
)

// droppedCodes are the gRPC status codes treated as an overload signal (Dropped) rather than an ordinary error
// (Ignored), matching the codes a client-side retry policy would also consider retryable.
var droppedCodes = map[codes.Code]struct{}{
	codes.Unavailable:       {},
	codes.ResourceExhausted: {},
	codes.DeadlineExceeded:  {},
}

// UnaryServerInterceptor returns a grpc.UnaryServerInterceptor that gates every call through l. A call the
// limiter rejects outright never reaches handler and returns codes.ResourceExhausted.
func UnaryServerInterceptor(l limiter.Limiter) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		listener, ok := l.Acquire(ctx)
		if !ok {
			return nil, status.Error(codes.ResourceExhausted, limiter.ErrRejected.Error())
		}

		resp, err := handler(ctx, req)
		recordOutcome(listener, err)
		return resp, err
	}
}

// StreamServerInterceptor returns a grpc.StreamServerInterceptor with the same gating and classification as
// UnaryServerInterceptor, covering the whole lifetime of the stream.
func StreamServerInterceptor(l limiter.Limiter) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		listener, ok := l.Acquire(ss.Context())
		if !ok {
			return status.Error(codes.ResourceExhausted, limiter.ErrRejected.Error())
		}

		err := handler(srv, ss)
		recordOutcome(listener, err)
		return err
	}
}

// recordOutcome classifies codes.Unavailable, codes.ResourceExhausted and codes.DeadlineExceeded as Dropped,
// any other non-nil error as Ignored, and a nil error as Success.
func recordOutcome(listener limiter.Listener, err error) {
	if err == nil {
		listener.OnSuccess()
		return
	}
	if s, ok := status.FromError(err); ok {
		if _, dropped := droppedCodes[s.Code()]; dropped {
			listener.OnDropped()
			return
		}
	}
	listener.OnIgnore()
}
