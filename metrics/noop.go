// Package metrics provides concrete climiter.MetricSink implementations: a no-op default, a Prometheus sink, and
// an OpenTelemetry sink.
package metrics

import "github.com/climiter/climiter"

// Noop is a climiter.MetricSink that discards everything. It's the default used when a limiter is built without
// WithMetricSink.
var Noop climiter.MetricSink = noopSink{}

type noopSink struct{}

func (noopSink) Counter(string, ...string) climiter.Counter {
	return noopCounter{}
}

func (noopSink) Gauge(string, func() float64, ...string) {}

func (noopSink) Distribution(string, ...string) climiter.Observer {
	return noopObserver{}
}

type noopCounter struct{}

func (noopCounter) Inc()        {}
func (noopCounter) Add(float64) {}

type noopObserver struct{}

func (noopObserver) Observe(float64) {}
