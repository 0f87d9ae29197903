package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/climiter/climiter"
)

// OTelSink is a climiter.MetricSink backed by an OpenTelemetry metric.Meter. Since OTEL has no synchronous gauge
// instrument, gauges are recorded as observable gauges registered on first use, following the fallback approach
// used elsewhere in this ecosystem for synchronous gauge-shaped values over the OTEL metric API.
type OTelSink struct {
	meter metric.Meter

	mu          sync.Mutex
	counters    map[string]metric.Float64Counter
	histograms  map[string]metric.Float64Histogram
	gaugesAdded map[string]bool
}

// NewOTelSink creates an OTelSink that records onto meter.
func NewOTelSink(meter metric.Meter) *OTelSink {
	return &OTelSink{
		meter:       meter,
		counters:    make(map[string]metric.Float64Counter),
		histograms:  make(map[string]metric.Float64Histogram),
		gaugesAdded: make(map[string]bool),
	}
}

func (s *OTelSink) Counter(id string, tags ...string) climiter.Counter {
	s.mu.Lock()
	c, ok := s.counters[id]
	if !ok {
		var err error
		c, err = s.meter.Float64Counter(id)
		if err != nil {
			s.mu.Unlock()
			return noopCounter{}
		}
		s.counters[id] = c
	}
	s.mu.Unlock()
	return otelCounter{counter: c, attrs: tagsToAttrs(tags)}
}

func (s *OTelSink) Gauge(id string, supplier func() float64, tags ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gaugesAdded[id] {
		return
	}
	gauge, err := s.meter.Float64ObservableGauge(id)
	if err != nil {
		return
	}
	attrs := tagsToAttrs(tags)
	_, err = s.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveFloat64(gauge, supplier(), metric.WithAttributes(attrs...))
		return nil
	}, gauge)
	if err == nil {
		s.gaugesAdded[id] = true
	}
}

func (s *OTelSink) Distribution(id string, tags ...string) climiter.Observer {
	s.mu.Lock()
	h, ok := s.histograms[id]
	if !ok {
		var err error
		h, err = s.meter.Float64Histogram(id)
		if err != nil {
			s.mu.Unlock()
			return noopObserver{}
		}
		s.histograms[id] = h
	}
	s.mu.Unlock()
	return otelObserver{histogram: h, attrs: tagsToAttrs(tags)}
}

func tagsToAttrs(tags []string) []attribute.KeyValue {
	keys, values := splitTags(tags)
	attrs := make([]attribute.KeyValue, len(keys))
	for i, k := range keys {
		attrs[i] = attribute.String(k, values[i])
	}
	return attrs
}

type otelCounter struct {
	counter metric.Float64Counter
	attrs   []attribute.KeyValue
}

func (c otelCounter) Inc() {
	c.counter.Add(context.Background(), 1, metric.WithAttributes(c.attrs...))
}

func (c otelCounter) Add(delta float64) {
	c.counter.Add(context.Background(), delta, metric.WithAttributes(c.attrs...))
}

type otelObserver struct {
	histogram metric.Float64Histogram
	attrs     []attribute.KeyValue
}

func (o otelObserver) Observe(value float64) {
	o.histogram.Record(context.Background(), value, metric.WithAttributes(o.attrs...))
}
