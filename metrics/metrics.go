// Package metrics provides a process-wide registry of counters and gauges
// rendered in the plain-text exposition format scraped by monitoring systems.
package metrics

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/btree"
)

type metricKind int

const (
	kindCounter metricKind = iota
	kindGauge
)

func (k metricKind) String() string {
	if k == kindCounter {
		return "counter"
	}
	return "gauge"
}

// Labels is an optional label set attached to a sample.
type Labels map[string]string

type metricDesc struct {
	name string
	help string
	kind metricKind
}

// sample holds one value. The value is stored as IEEE 754 bits behind an
// atomic so writers never block each other and Render never blocks writers
// longer than an atomic load.
type sample struct {
	desc   *metricDesc
	labels string // pre-rendered {k="v",...}, empty for unlabeled
	bits   atomic.Uint64
}

func (s *sample) load() float64 {
	return math.Float64frombits(s.bits.Load())
}

func (s *sample) add(delta float64) {
	for {
		old := s.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if s.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

func (s *sample) set(value float64) {
	s.bits.Store(math.Float64bits(value))
}

// Registry owns all metric samples. Samples are created under a short mutex
// on first touch; mutation afterwards is lock-free. The B-tree index keeps
// samples permanently sorted, so Render is a single ordered scan.
type Registry struct {
	mu      sync.Mutex
	descs   map[string]*metricDesc
	samples *btree.Map[string, *sample]
	started time.Time
}

// NewRegistry creates an empty metric registry. The uptime gauge is
// registered immediately and refreshed on every Render.
func NewRegistry() *Registry {
	r := &Registry{
		descs:   make(map[string]*metricDesc),
		samples: btree.NewMap[string, *sample](0),
		started: time.Now(),
	}

	r.describe("assetd_uptime_seconds", "Server uptime in seconds", kindGauge)
	return r
}

// describe registers a metric name once. Re-describing with a different kind
// is a programming error and keeps the first registration.
func (r *Registry) describe(name, help string, kind metricKind) *metricDesc {
	r.mu.Lock()
	defer r.mu.Unlock()

	if desc, exists := r.descs[name]; exists {
		return desc
	}

	desc := &metricDesc{name: name, help: help, kind: kind}
	r.descs[name] = desc
	return desc
}

// AddCounter registers a counter metric.
func (r *Registry) AddCounter(name, help string) {
	r.describe(name, help, kindCounter)
}

// AddGauge registers a gauge metric.
func (r *Registry) AddGauge(name, help string) {
	r.describe(name, help, kindGauge)
}

// IncrCounter increments a counter by delta. Unknown names are registered
// lazily without help text so an instrumentation point can never be lost.
func (r *Registry) IncrCounter(name string, labels Labels, delta float64) {
	r.sample(name, labels, kindCounter).add(delta)
}

// SetGauge sets a gauge to the given value.
func (r *Registry) SetGauge(name string, labels Labels, value float64) {
	r.sample(name, labels, kindGauge).set(value)
}

// MeasureSince records the elapsed time since start, in seconds, onto a
// counter pair: <name>_seconds_total and <name>_total.
func (r *Registry) MeasureSince(name string, labels Labels, start time.Time) {
	elapsed := time.Since(start).Seconds()
	r.sample(name+"_seconds_total", labels, kindCounter).add(elapsed)
	r.sample(name+"_total", labels, kindCounter).add(1)
}

func (r *Registry) sample(name string, labels Labels, kind metricKind) *sample {
	rendered := renderLabels(labels)
	// NUL separator keeps every sample of one metric contiguous in the
	// B-tree, even when another metric's name shares the prefix.
	key := name + "\x00" + rendered

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.samples.Get(key); ok {
		return existing
	}

	desc, exists := r.descs[name]
	if !exists {
		desc = &metricDesc{name: name, kind: kind}
		r.descs[name] = desc
	}

	s := &sample{desc: desc, labels: rendered}
	r.samples.Set(key, s)
	return s
}

// Render produces the exposition text: HELP/TYPE headers followed by one
// line per sample, sorted by metric name and label set, duplicate-free.
func (r *Registry) Render() string {
	r.SetGauge("assetd_uptime_seconds", nil, time.Since(r.started).Seconds())

	r.mu.Lock()
	index := r.samples.Copy()
	r.mu.Unlock()

	var b strings.Builder
	lastName := ""

	index.Scan(func(_ string, s *sample) bool {
		if s.desc.name != lastName {
			lastName = s.desc.name
			if s.desc.help != "" {
				fmt.Fprintf(&b, "# HELP %s %s\n", s.desc.name, s.desc.help)
			}
			fmt.Fprintf(&b, "# TYPE %s %s\n", s.desc.name, s.desc.kind)
		}

		fmt.Fprintf(&b, "%s%s %s\n", s.desc.name, s.labels, formatValue(s.load()))
		return true
	})

	return b.String()
}

func renderLabels(labels Labels) string {
	if len(labels) == 0 {
		return ""
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%q", k, labels[k]))
	}

	return "{" + strings.Join(pairs, ",") + "}"
}

func formatValue(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}
