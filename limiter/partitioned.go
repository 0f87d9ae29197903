package limiter

import (
	"context"
	"math"
	"sync"

	"github.com/climiter/climiter"
	"github.com/climiter/climiter/internal/util"
	"github.com/climiter/climiter/limit"
)

// defaultPartitionName names the implicit bucket a request falls into when it matches no configured partition.
// The default partition never gets a guaranteed percentage of the total; it only ever borrows excess capacity
// (plus the bare max(1, ...) floor every partition gets).
const defaultPartitionName = ""

// PartitionSpec configures one named partition of a Partitioned limiter's total capacity.
type PartitionSpec struct {
	// Name identifies the partition, used as the "partition" tag on per-partition metrics.
	Name string

	// Percent is this partition's guaranteed share of the total limit, in (0, 1]. The sum across all partitions
	// must not exceed 1.0.
	Percent float64

	// Predicate, if set, is checked before the partitioned limiter's PartitionResolver; a matching request is
	// assigned to this partition directly.
	Predicate func(ctx context.Context) bool
}

type partitionState struct {
	percent  float64
	limit    int
	inflight int
}

// Partitioned is a Limiter that divides its total limit among named partitions, each guaranteed a minimum share
// while allowing any partition to borrow idle capacity from the others up to the shared total.
type Partitioned struct {
	name      string
	estimator limit.Limit
	clock     util.Clock
	bypass    BypassPredicate
	specs     []PartitionSpec
	resolver  func(ctx context.Context) string
	reporter  *metricReporter

	mu            sync.Mutex
	totalInflight int
	partitions    map[string]*partitionState
}

// PartitionedBuilder builds a Partitioned limiter. Not concurrency safe; build once at startup.
type PartitionedBuilder struct {
	commonConfig
	specs    []PartitionSpec
	resolver func(ctx context.Context) string
}

// NewPartitionedBuilder returns a PartitionedBuilder wrapping estimator.
func NewPartitionedBuilder(estimator limit.Limit) *PartitionedBuilder {
	c := defaultCommonConfig()
	c.estimator = estimator
	return &PartitionedBuilder{commonConfig: c}
}

// WithName configures the limiter's name, used as the "id" tag on every reported metric.
func (b *PartitionedBuilder) WithName(name string) *PartitionedBuilder {
	b.name = name
	return b
}

// WithClock overrides the clock used to time samples, for deterministic tests.
func (b *PartitionedBuilder) WithClock(clock util.Clock) *PartitionedBuilder {
	b.clock = clock
	return b
}

// WithMetricSink configures where this limiter reports its gauges and counters.
func (b *PartitionedBuilder) WithMetricSink(sink climiter.MetricSink) *PartitionedBuilder {
	b.metrics = sink
	return b
}

// WithBypass configures a predicate that, when it matches, admits a request without counting it against any
// partition or the estimator.
func (b *PartitionedBuilder) WithBypass(predicate BypassPredicate) *PartitionedBuilder {
	b.bypass = predicate
	return b
}

// WithPartition registers a named partition. Call once per partition.
func (b *PartitionedBuilder) WithPartition(spec PartitionSpec) *PartitionedBuilder {
	b.specs = append(b.specs, spec)
	return b
}

// WithPartitionResolver configures the function used to resolve a request's partition name when no partition's
// own Predicate matches. A resolver returning a name with no matching PartitionSpec is treated like the default
// (unmatched) bucket.
func (b *PartitionedBuilder) WithPartitionResolver(resolver func(ctx context.Context) string) *PartitionedBuilder {
	b.resolver = resolver
	return b
}

// Build returns a ConfigError if the builder's settings are invalid, otherwise a new Partitioned limiter.
func (b *PartitionedBuilder) Build() (*Partitioned, error) {
	if b.estimator == nil {
		return nil, &ConfigError{Field: "estimator", Message: "must not be nil"}
	}
	var totalPercent float64
	names := make(map[string]bool, len(b.specs))
	for _, spec := range b.specs {
		if spec.Name == "" {
			return nil, &ConfigError{Field: "partition.name", Message: "must not be empty"}
		}
		if names[spec.Name] {
			return nil, &ConfigError{Field: "partition.name", Message: "duplicate name " + spec.Name}
		}
		names[spec.Name] = true
		if spec.Percent <= 0 || spec.Percent > 1 {
			return nil, &ConfigError{Field: "partition.percent", Message: "must be in (0, 1]"}
		}
		totalPercent += spec.Percent
	}
	if totalPercent > 1.0001 {
		return nil, &ConfigError{Field: "partition.percent", Message: "sum across partitions must not exceed 1.0"}
	}

	name := b.name
	if name == "" {
		name = nextDefaultName("partitioned-limiter")
	}

	p := &Partitioned{
		name:       name,
		estimator:  b.estimator,
		clock:      b.clock,
		bypass:     b.bypass,
		specs:      b.specs,
		resolver:   b.resolver,
		partitions: make(map[string]*partitionState, len(b.specs)+1),
	}
	for _, spec := range b.specs {
		p.partitions[spec.Name] = &partitionState{percent: spec.Percent}
	}
	p.partitions[defaultPartitionName] = &partitionState{percent: 0}
	p.recomputePartitionLimits(b.estimator.GetLimit())
	b.estimator.NotifyOnChange(func(newLimit int) {
		p.mu.Lock()
		p.recomputePartitionLimits(newLimit)
		p.mu.Unlock()
	})

	p.reporter = newMetricReporter(b.metrics, name, func() float64 { return float64(p.Limit()) }, func() float64 { return float64(p.Inflight()) })
	for _, spec := range b.specs {
		spec := spec
		b.metrics.Gauge("limit.partition", func() float64 {
			p.mu.Lock()
			defer p.mu.Unlock()
			return float64(p.partitions[spec.Name].limit)
		}, "id", name, "partition", spec.Name)
		b.metrics.Gauge(metricInflight, func() float64 {
			p.mu.Lock()
			defer p.mu.Unlock()
			return float64(p.partitions[spec.Name].inflight)
		}, "id", name, "partition", spec.Name)
	}
	return p, nil
}

// recomputePartitionLimits must be called with mu held.
func (p *Partitioned) recomputePartitionLimits(total int) {
	for _, state := range p.partitions {
		if state.percent == 0 {
			state.limit = 1
			continue
		}
		state.limit = int(math.Max(1, math.Ceil(float64(total)*state.percent)))
	}
}

func (p *Partitioned) Limit() int {
	return p.estimator.GetLimit()
}

func (p *Partitioned) Inflight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalInflight
}

func (p *Partitioned) resolvePartition(ctx context.Context) string {
	for _, spec := range p.specs {
		if spec.Predicate != nil && spec.Predicate(ctx) {
			return spec.Name
		}
	}
	if p.resolver != nil {
		if name := p.resolver(ctx); name != "" {
			if _, ok := p.partitions[name]; ok {
				return name
			}
		}
	}
	return defaultPartitionName
}

func (p *Partitioned) Acquire(ctx context.Context) (Listener, bool) {
	if p.bypass != nil && p.bypass(ctx) {
		p.reporter.bypassed.Inc()
		return bypassListener{}, true
	}

	partitionName := p.resolvePartition(ctx)

	p.mu.Lock()
	totalLimit := p.estimator.GetLimit()
	state := p.partitions[partitionName]
	if p.totalInflight >= totalLimit && state.inflight >= state.limit {
		p.mu.Unlock()
		p.reporter.rejected.Inc()
		return nil, false
	}
	p.totalInflight++
	state.inflight++
	currentInflight := p.totalInflight
	p.mu.Unlock()

	listener := &stdListener{
		estimator:  p.estimator,
		startNanos: p.clock.CurrentUnixNano(),
		nowNanos:   p.clock.CurrentUnixNano,
		inflight:   currentInflight,
		release: func() {
			p.mu.Lock()
			p.totalInflight--
			state.inflight--
			p.mu.Unlock()
		},
		onTerminate: func(outcome climiterOutcome) {
			p.reporter.record(outcome)
		},
	}
	return listener, true
}
