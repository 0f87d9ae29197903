package limiter

import (
	"github.com/climiter/climiter"
)

// Stable metric identifiers reported by every limiter variant.
const (
	metricLimit    = "limit"
	metricInflight = "inflight"
	metricCall     = "call"
)

// metricReporter registers the gauges and counters common to every limiter variant against a name tag, following
// the metric identifiers documented on climiter.MetricSink.
type metricReporter struct {
	success  climiter.Counter
	dropped  climiter.Counter
	ignored  climiter.Counter
	rejected climiter.Counter
	bypassed climiter.Counter
}

func newMetricReporter(sink climiter.MetricSink, name string, limitFn, inflightFn func() float64) *metricReporter {
	sink.Gauge(metricLimit, limitFn, "id", name)
	sink.Gauge(metricInflight, inflightFn, "id", name)
	return &metricReporter{
		success:  sink.Counter(metricCall, "id", name, "status", "success"),
		dropped:  sink.Counter(metricCall, "id", name, "status", "dropped"),
		ignored:  sink.Counter(metricCall, "id", name, "status", "ignored"),
		rejected: sink.Counter(metricCall, "id", name, "status", "rejected"),
		bypassed: sink.Counter(metricCall, "id", name, "status", "bypassed"),
	}
}

func (r *metricReporter) record(outcome climiterOutcome) {
	switch outcome {
	case outcomeSuccess:
		r.success.Inc()
	case outcomeDropped:
		r.dropped.Inc()
	case outcomeIgnored:
		r.ignored.Inc()
	}
}
