// Package metrics is a small self-contained Prometheus-compatible registry
// exposing gauges, counters and histograms in text exposition format.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Counter is a monotonically increasing value.
type Counter struct{ value int64 }

func (c *Counter) Inc()         { atomic.AddInt64(&c.value, 1) }
func (c *Counter) Add(n int64)  { atomic.AddInt64(&c.value, n) }
func (c *Counter) Value() int64 { return atomic.LoadInt64(&c.value) }

// Gauge is a value that can move up and down, stored as micros for
// float-like precision under an int64 atomic.
type Gauge struct{ value int64 }

func (g *Gauge) Set(v float64)  { atomic.StoreInt64(&g.value, int64(v*1e6)) }
func (g *Gauge) Inc()           { atomic.AddInt64(&g.value, 1e6) }
func (g *Gauge) Dec()           { atomic.AddInt64(&g.value, -1e6) }
func (g *Gauge) Value() float64 { return float64(atomic.LoadInt64(&g.value)) / 1e6 }

// Histogram tracks a value distribution over fixed buckets.
type Histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []int64
	sum     float64
	count   int64
}

func NewHistogram(buckets []float64) *Histogram {
	sorted := make([]float64, len(buckets))
	copy(sorted, buckets)
	sort.Float64s(sorted)
	return &Histogram{buckets: sorted, counts: make([]int64, len(sorted)+1)}
}

func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.count++
	for i, b := range h.buckets {
		if v <= b {
			h.counts[i]++
			return
		}
	}
	h.counts[len(h.buckets)]++
}

func labelKey(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%q", k, labels[k])
	}
	return strings.Join(parts, ",")
}

// Registry is the central registry every service publishes on /metrics.
type Registry struct {
	mu         sync.RWMutex
	counters   map[string]map[string]*Counter
	gauges     map[string]map[string]*Gauge
	histograms map[string]map[string]*Histogram

	durationBuckets []float64
}

func NewRegistry() *Registry {
	return &Registry{
		counters:        make(map[string]map[string]*Counter),
		gauges:          make(map[string]map[string]*Gauge),
		histograms:      make(map[string]map[string]*Histogram),
		durationBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}
}

func (r *Registry) CounterInc(name string, labels map[string]string) {
	r.getCounter(name, labels).Inc()
}

func (r *Registry) getCounter(name string, labels map[string]string) *Counter {
	return getOrCreate(&r.mu, r.counters, name, labels, func() *Counter { return &Counter{} })
}

func (r *Registry) GaugeSet(name string, labels map[string]string, v float64) {
	r.getGauge(name, labels).Set(v)
}

func (r *Registry) getGauge(name string, labels map[string]string) *Gauge {
	return getOrCreate(&r.mu, r.gauges, name, labels, func() *Gauge { return &Gauge{} })
}

func (r *Registry) HistogramObserve(name string, labels map[string]string, v float64) {
	r.getHistogram(name, labels).Observe(v)
}

func (r *Registry) getHistogram(name string, labels map[string]string) *Histogram {
	return getOrCreate(&r.mu, r.histograms, name, labels, func() *Histogram { return NewHistogram(r.durationBuckets) })
}

// getOrCreate is the shared double-checked-lock get-or-create used by every
// metric kind: an RLock fast path for the common case of an already-seen
// (name, labels) pair, falling back to a write lock that re-checks before
// allocating.
func getOrCreate[T any](mu *sync.RWMutex, byName map[string]map[string]*T, name string, labels map[string]string, newT func() *T) *T {
	key := labelKey(labels)

	mu.RLock()
	if byLabel, ok := byName[name]; ok {
		if v, ok := byLabel[key]; ok {
			mu.RUnlock()
			return v
		}
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if _, ok := byName[name]; !ok {
		byName[name] = make(map[string]*T)
	}
	if _, ok := byName[name][key]; !ok {
		byName[name][key] = newT()
	}
	return byName[name][key]
}

// TrackPending publishes the pending-entry gauge for a (stream, group) pair,
// fed by broker.MonitorPending.
func (r *Registry) TrackPending(stream, group string, n int64) {
	r.GaugeSet("coordinator_stream_pending", map[string]string{"stream": stream, "group": group}, float64(n))
}

// TrackRiskEvaluation records one risk decision outcome.
func (r *Registry) TrackRiskEvaluation(ok bool, reason string) {
	labels := map[string]string{"ok": fmt.Sprintf("%t", ok)}
	if reason != "" {
		labels["reason"] = reason
	}
	r.CounterInc("coordinator_risk_evaluations_total", labels)
}

// TrackHTTPRequest records one admin/orchestrate HTTP request's duration.
func (r *Registry) TrackHTTPRequest(path string, status int, elapsedMs float64) {
	labels := map[string]string{"path": path, "status": fmt.Sprintf("%d", status)}
	r.CounterInc("coordinator_http_requests_total", labels)
	r.HistogramObserve("coordinator_http_request_duration_ms", labels, elapsedMs)
}

// Handler serves the registry's contents in Prometheus text exposition
// format.
func (r *Registry) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("# coordinator metrics - %s\n\n", time.Now().UTC().Format(time.RFC3339)))

		r.mu.RLock()
		defer r.mu.RUnlock()

		for name, byLabel := range r.counters {
			sb.WriteString(fmt.Sprintf("# TYPE %s counter\n", name))
			for lk, c := range byLabel {
				writeSample(&sb, name, lk, fmt.Sprintf("%d", c.Value()))
			}
			sb.WriteString("\n")
		}

		for name, byLabel := range r.gauges {
			sb.WriteString(fmt.Sprintf("# TYPE %s gauge\n", name))
			for lk, g := range byLabel {
				writeSample(&sb, name, lk, fmt.Sprintf("%f", g.Value()))
			}
			sb.WriteString("\n")
		}

		for name, byLabel := range r.histograms {
			sb.WriteString(fmt.Sprintf("# TYPE %s histogram\n", name))
			for lk, h := range byLabel {
				h.mu.Lock()
				cumulative := int64(0)
				for i, b := range h.buckets {
					cumulative += h.counts[i]
					writeBucket(&sb, name, lk, fmt.Sprintf("%g", b), cumulative)
				}
				cumulative += h.counts[len(h.buckets)]
				writeBucket(&sb, name, lk, "+Inf", cumulative)
				prefix := name
				if lk != "" {
					prefix = fmt.Sprintf("%s{%s}", name, lk)
				}
				sb.WriteString(fmt.Sprintf("%s_sum %f\n", prefix, h.sum))
				sb.WriteString(fmt.Sprintf("%s_count %d\n", prefix, h.count))
				h.mu.Unlock()
			}
			sb.WriteString("\n")
		}

		_, _ = w.Write([]byte(sb.String()))
	}
}

func writeSample(sb *strings.Builder, name, labelSet, value string) {
	if labelSet == "" {
		sb.WriteString(fmt.Sprintf("%s %s\n", name, value))
		return
	}
	sb.WriteString(fmt.Sprintf("%s{%s} %s\n", name, labelSet, value))
}

func writeBucket(sb *strings.Builder, name, labelSet, le string, cumulative int64) {
	if labelSet == "" {
		sb.WriteString(fmt.Sprintf("%s_bucket{le=%q} %d\n", name, le, cumulative))
		return
	}
	sb.WriteString(fmt.Sprintf("%s_bucket{le=%q,%s} %d\n", name, le, labelSet, cumulative))
}
