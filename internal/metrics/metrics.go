package metrics

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"ordersaga/internal/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

// MeterName scopes every instrument the registry creates.
const MeterName = "ordersaga"

// Counter is a monotonic count mirrored into an OTel Int64Counter.
type Counter struct {
	value uint64
	inst  metric.Int64Counter
	opt   metric.MeasurementOption
}

func (c *Counter) Inc() {
	c.Add(1)
}

func (c *Counter) Add(n uint64) {
	atomic.AddUint64(&c.value, n)
	if c.inst != nil {
		c.inst.Add(context.Background(), int64(n), c.opt)
	}
}

func (c *Counter) Load() uint64 {
	return atomic.LoadUint64(&c.value)
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Registry holds named counters and stage latencies. Every series is
// recorded twice: in process for the JSON snapshot, and through the OTel
// meter for export. Names are created on first use; a nil *Registry
// discards everything.
type Registry struct {
	meter metric.Meter

	mu         sync.RWMutex
	counters   map[string]*Counter
	durations  map[string]*durationStat
	instCounts map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

type Option func(*Registry)

// WithMeter records through m instead of the global meter provider.
func WithMeter(m metric.Meter) Option {
	return func(r *Registry) {
		r.meter = m
	}
}

type durationStat struct {
	count uint64
	total time.Duration
	max   time.Duration
	inst  metric.Float64Histogram
	opt   metric.MeasurementOption
}

// DurationSnapshot is the exported view of one latency series.
type DurationSnapshot struct {
	Count   uint64  `json:"count"`
	TotalMs float64 `json:"total_ms"`
	MaxMs   float64 `json:"max_ms"`
}

// Snapshot is a point-in-time copy of the registry.
type Snapshot struct {
	Counters  map[string]uint64           `json:"counters"`
	Durations map[string]DurationSnapshot `json:"durations"`
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		meter:      otel.Meter(MeterName),
		counters:   make(map[string]*Counter),
		durations:  make(map[string]*durationStat),
		instCounts: make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// seriesKey names one series in the snapshot: the instrument name, followed
// by its attributes as {k=v,...} when there are any.
func seriesKey(name string, set attribute.Set) string {
	if set.Len() == 0 {
		return name
	}
	return name + "{" + set.Encoded(attribute.DefaultEncoder()) + "}"
}

// Counter returns the counter registered under name and attrs, creating it
// if needed.
func (r *Registry) Counter(name string, attrs ...attribute.KeyValue) *Counter {
	if r == nil {
		return &Counter{}
	}
	set := attribute.NewSet(attrs...)
	key := seriesKey(name, set)

	r.mu.RLock()
	c, ok := r.counters[key]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok = r.counters[key]; !ok {
		c = &Counter{inst: r.int64Counter(name), opt: metric.WithAttributeSet(set)}
		r.counters[key] = c
	}
	return c
}

// Observe records how long a timer has been running under name and attrs.
func (r *Registry) Observe(name string, t *Timer, attrs ...attribute.KeyValue) {
	if r == nil || t == nil {
		return
	}
	d := t.Duration()
	set := attribute.NewSet(attrs...)
	key := seriesKey(name, set)

	r.mu.Lock()
	s, ok := r.durations[key]
	if !ok {
		s = &durationStat{inst: r.histogram(name), opt: metric.WithAttributeSet(set)}
		r.durations[key] = s
	}
	s.count++
	s.total += d
	if d > s.max {
		s.max = d
	}
	r.mu.Unlock()

	s.inst.Record(context.Background(), float64(d)/float64(time.Millisecond), s.opt)
}

// int64Counter and histogram must be called with r.mu held.
func (r *Registry) int64Counter(name string) metric.Int64Counter {
	if inst, ok := r.instCounts[name]; ok {
		return inst
	}
	inst, err := r.meter.Int64Counter(name)
	if err != nil {
		logger.L().Warn("failed to create counter", zap.String("name", name), zap.Error(err))
		inst = noop.Int64Counter{}
	}
	r.instCounts[name] = inst
	return inst
}

func (r *Registry) histogram(name string) metric.Float64Histogram {
	if inst, ok := r.histograms[name]; ok {
		return inst
	}
	inst, err := r.meter.Float64Histogram(name, metric.WithUnit("ms"))
	if err != nil {
		logger.L().Warn("failed to create histogram", zap.String("name", name), zap.Error(err))
		inst = noop.Float64Histogram{}
	}
	r.histograms[name] = inst
	return inst
}

func (r *Registry) Snapshot() Snapshot {
	snap := Snapshot{
		Counters:  map[string]uint64{},
		Durations: map[string]DurationSnapshot{},
	}
	if r == nil {
		return snap
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, c := range r.counters {
		snap.Counters[name] = c.Load()
	}
	for name, s := range r.durations {
		snap.Durations[name] = DurationSnapshot{
			Count:   s.count,
			TotalMs: float64(s.total) / float64(time.Millisecond),
			MaxMs:   float64(s.max) / float64(time.Millisecond),
		}
	}
	return snap
}

// Names lists registered counter series in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.counters))
	for name := range r.counters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
