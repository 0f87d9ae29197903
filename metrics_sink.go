package climiter

// Observer receives individual measurements for a distribution metric, such as an RTT or a queue size.
type Observer interface {
	// Observe records a single value.
	Observe(value float64)
}

// MetricSink is the thin façade the core reports through. A compliant implementation registers gauges, counters,
// and distributions under the stable identifiers (limit, inflight, limit.partition, call, min_rtt, min_window_rtt,
// queue_size) and is otherwise free to choose its own backend and aggregation.
//
// Tags are passed as alternating key/value pairs, e.g. Counter("call", "status", "dropped", "id", "orders-api").
type MetricSink interface {
	// Counter returns a counter for the given id and tags. Repeated calls with the same id and tags return a
	// counter that accumulates across calls.
	Counter(id string, tags ...string) Counter

	// Gauge registers a gauge for the given id and tags whose value is produced on demand by supplier.
	Gauge(id string, supplier func() float64, tags ...string)

	// Distribution returns an Observer for the given id and tags.
	Distribution(id string, tags ...string) Observer
}

// Counter accumulates a monotonically increasing count.
type Counter interface {
	// Inc increments the counter by 1.
	Inc()
	// Add increments the counter by delta.
	Add(delta float64)
}
