package rpc

import (
	"sort"
	"sync"
	"time"
)

// OpMetric is one operation's request counters for status reporting.
type OpMetric struct {
	Operation string  `json:"operation"`
	Count     int64   `json:"count"`
	Errors    int64   `json:"errors"`
	AvgMillis float64 `json:"avg_ms"`
}

type opCounters struct {
	count  int64
	errors int64
	total  time.Duration
}

// Metrics accumulates per-operation request counters.
type Metrics struct {
	mu    sync.Mutex
	perOp map[string]*opCounters
}

// NewMetrics creates an empty metrics accumulator.
func NewMetrics() *Metrics {
	return &Metrics{perOp: make(map[string]*opCounters)}
}

func (m *Metrics) counters(op string) *opCounters {
	c, ok := m.perOp[op]
	if !ok {
		c = &opCounters{}
		m.perOp[op] = c
	}
	return c
}

// RecordRequest records one completed request and its latency.
func (m *Metrics) RecordRequest(op string, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.counters(op)
	c.count++
	c.total += latency
}

// RecordError records one failed request.
func (m *Metrics) RecordError(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters(op).errors++
}

// Snapshot returns the counters sorted by operation name.
func (m *Metrics) Snapshot() []OpMetric {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]OpMetric, 0, len(m.perOp))
	for op, c := range m.perOp {
		metric := OpMetric{Operation: op, Count: c.count, Errors: c.errors}
		if c.count > 0 {
			metric.AvgMillis = float64(c.total.Milliseconds()) / float64(c.count)
		}
		out = append(out, metric)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Operation < out[j].Operation })
	return out
}
