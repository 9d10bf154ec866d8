package observability

import (
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// Counter is a monotonically increasing value.
type Counter struct {
	v atomic.Int64
}

func (c *Counter) Add(n int64)  { c.v.Add(n) }
func (c *Counter) Inc()         { c.v.Inc() }
func (c *Counter) Value() int64 { return c.v.Load() }

// Gauge holds the last value set.
type Gauge struct {
	v atomic.Float64
}

func (g *Gauge) Set(v float64)  { g.v.Store(v) }
func (g *Gauge) Value() float64 { return g.v.Load() }

// Timer accumulates observation count, total and max duration.
type Timer struct {
	count atomic.Int64
	total atomic.Duration
	max   atomic.Duration
}

func (t *Timer) Observe(d time.Duration) {
	t.count.Inc()
	t.total.Add(d)
	for {
		cur := t.max.Load()
		if d <= cur || t.max.CompareAndSwap(cur, d) {
			return
		}
	}
}

// TimerStats is a point-in-time view of a Timer.
type TimerStats struct {
	Count   int64         `json:"count"`
	Total   time.Duration `json:"total"`
	Max     time.Duration `json:"max"`
	Average time.Duration `json:"average"`
}

func (t *Timer) Stats() TimerStats {
	s := TimerStats{Count: t.count.Load(), Total: t.total.Load(), Max: t.max.Load()}
	if s.Count > 0 {
		s.Average = s.Total / time.Duration(s.Count)
	}
	return s
}

// Registry stores process-wide metrics keyed by name and sorted labels.
type Registry struct {
	mu       sync.RWMutex
	counters map[string]*Counter
	gauges   map[string]*Gauge
	timers   map[string]*Timer
}

func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[string]*Counter),
		gauges:   make(map[string]*Gauge),
		timers:   make(map[string]*Timer),
	}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry { return defaultRegistry }

func metricKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k + "=" + labels[k])
	}
	b.WriteByte('}')
	return b.String()
}

func getOrCreate[T any](r *Registry, m map[string]*T, key string) *T {
	r.mu.RLock()
	v, ok := m[key]
	r.mu.RUnlock()
	if ok {
		return v
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok = m[key]; ok {
		return v
	}
	v = new(T)
	m[key] = v
	return v
}

func (r *Registry) Counter(name string, labels map[string]string) *Counter {
	return getOrCreate(r, r.counters, metricKey(name, labels))
}

func (r *Registry) Gauge(name string, labels map[string]string) *Gauge {
	return getOrCreate(r, r.gauges, metricKey(name, labels))
}

func (r *Registry) Timer(name string, labels map[string]string) *Timer {
	return getOrCreate(r, r.timers, metricKey(name, labels))
}

// Snapshot is a copy of all registry values.
type Snapshot struct {
	Counters map[string]int64      `json:"counters"`
	Gauges   map[string]float64    `json:"gauges"`
	Timers   map[string]TimerStats `json:"timers"`
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		Counters: make(map[string]int64, len(r.counters)),
		Gauges:   make(map[string]float64, len(r.gauges)),
		Timers:   make(map[string]TimerStats, len(r.timers)),
	}
	for k, c := range r.counters {
		snap.Counters[k] = c.Value()
	}
	for k, g := range r.gauges {
		snap.Gauges[k] = g.Value()
	}
	for k, t := range r.timers {
		snap.Timers[k] = t.Stats()
	}
	return snap
}
