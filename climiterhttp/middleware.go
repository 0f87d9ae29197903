// Package climiterhttp provides thin net/http middleware that gates incoming requests through a
// github.com/climiter/climiter/limiter.Limiter and feeds the handler's response status back into it.
package climiterhttp

import (
	"net/http"

	"github.com/climiter/climiter/limiter"
)

// NewMiddleware returns an http.Handler that gates every request to inner through l. A request the limiter
// rejects outright never reaches inner and gets a 429. A request inner handles is classified by its response
// status: 429/503/504 report Dropped (an overload signal the estimator should react to), any other 5xx reports
// Ignored, and everything else reports Success.
func NewMiddleware(l limiter.Limiter, inner http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		listener, ok := l.Acquire(r.Context())
		if !ok {
			http.Error(w, limiter.ErrRejected.Error(), http.StatusTooManyRequests)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		inner.ServeHTTP(rec, r)

		switch rec.status {
		case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			listener.OnDropped()
		default:
			if rec.status >= 500 {
				listener.OnIgnore()
			} else {
				listener.OnSuccess()
			}
		}
	})
}

// statusRecorder captures the status code an inner handler wrote, since http.ResponseWriter has no getter for it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
