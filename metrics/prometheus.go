package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/climiter/climiter"
)

// PrometheusSink is a climiter.MetricSink backed by a prometheus.Registerer. Counters and distributions are
// registered lazily, once per id, with the tag keys of the first call as their label names; gauges are registered
// once per id and tag values. All are cached for reuse across calls, following the
// package-level-metric-variable convention used for Prometheus instrumentation elsewhere in this ecosystem.
type PrometheusSink struct {
	registerer prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeFunc
	histograms map[string]*prometheus.HistogramVec
}

// NewPrometheusSink creates a PrometheusSink that registers metrics with registerer.
func NewPrometheusSink(registerer prometheus.Registerer) *PrometheusSink {
	return &PrometheusSink{
		registerer: registerer,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeFunc),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

func (s *PrometheusSink) Counter(id string, tags ...string) climiter.Counter {
	keys, values := splitTags(tags)
	s.mu.Lock()
	vec, ok := s.counters[id]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricName(id),
			Help: "climiter counter " + id,
		}, keys)
		s.registerer.MustRegister(vec)
		s.counters[id] = vec
	}
	s.mu.Unlock()
	return promCounter{counter: vec.WithLabelValues(values...)}
}

func (s *PrometheusSink) Gauge(id string, supplier func() float64, tags ...string) {
	keys, values := splitTags(tags)
	constLabels := prometheus.Labels{}
	for i, k := range keys {
		constLabels[k] = values[i]
	}
	name := metricName(id) + "_" + strings.Join(values, "_")

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.gauges[name]; ok {
		return
	}
	gaugeFunc := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        metricName(id),
		Help:        "climiter gauge " + id,
		ConstLabels: constLabels,
	}, supplier)
	s.registerer.MustRegister(gaugeFunc)
	s.gauges[name] = &gaugeFunc
}

func (s *PrometheusSink) Distribution(id string, tags ...string) climiter.Observer {
	keys, values := splitTags(tags)
	s.mu.Lock()
	vec, ok := s.histograms[id]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricName(id),
			Help:    "climiter distribution " + id,
			Buckets: prometheus.ExponentialBuckets(1, 2, 20),
		}, keys)
		s.registerer.MustRegister(vec)
		s.histograms[id] = vec
	}
	s.mu.Unlock()
	return vec.WithLabelValues(values...)
}

func metricName(id string) string {
	return "climiter_" + strings.ReplaceAll(id, ".", "_")
}

// splitTags splits alternating key/value pairs into parallel key and value slices.
func splitTags(tags []string) (keys, values []string) {
	for i := 0; i+1 < len(tags); i += 2 {
		keys = append(keys, tags[i])
		values = append(values, tags[i+1])
	}
	return keys, values
}

type promCounter struct {
	counter prometheus.Counter
}

func (c promCounter) Inc() {
	c.counter.Inc()
}

func (c promCounter) Add(delta float64) {
	c.counter.Add(delta)
}
