// Package metrics aggregates pipeline events into a service-level
// snapshot for the /metrics and /healthz endpoints.
package metrics

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/advisor-ai/advisor/internal/event"
)

// latencyWindow is how many recent request latencies feed avg/p95.
const latencyWindow = 100

// TokenTotals accumulates model token usage across requests.
type TokenTotals struct {
	Prompt     int64 `json:"prompt"`
	Completion int64 `json:"completion"`
}

// Summary is a point-in-time view of the collector.
type Summary struct {
	UptimeSeconds int64            `json:"uptimeSeconds"`
	Requests      int64            `json:"requests"`
	Succeeded     int64            `json:"succeeded"`
	Failed        int64            `json:"failed"`
	ErrorRate     float64          `json:"errorRate"`
	AvgLatencyMS  float64          `json:"avgLatencyMS"`
	P95LatencyMS  float64          `json:"p95LatencyMS"`
	Retries       int64            `json:"retries"`
	ByIntent      map[string]int64 `json:"byIntent"`
	ByReason      map[string]int64 `json:"byCompletionReason"`
	ByFailureKind map[string]int64 `json:"byFailureKind"`
	Filters       map[string]int64 `json:"filters"`
	Tokens        TokenTotals      `json:"tokens"`
}

// Collector subscribes to the event bus and keeps running counters
// plus a rolling window of request latencies.
type Collector struct {
	mu    sync.Mutex
	start time.Time

	succeeded int64
	failed    int64
	retries   int64

	byIntent      map[string]int64
	byReason      map[string]int64
	byFailureKind map[string]int64
	filters       map[string]int64

	tokens TokenTotals

	latencies []float64
	latIdx    int

	unsubs []func()
}

// NewCollector starts collecting immediately.
func NewCollector() *Collector {
	c := &Collector{
		start:         time.Now(),
		byIntent:      make(map[string]int64),
		byReason:      make(map[string]int64),
		byFailureKind: make(map[string]int64),
		filters:       make(map[string]int64),
		latencies:     make([]float64, 0, latencyWindow),
	}
	c.unsubs = []func(){
		event.Subscribe(event.RequestCompleted, c.onCompleted),
		event.Subscribe(event.RequestFailed, c.onFailed),
		event.Subscribe(event.RequestRetry, c.onRetry),
		event.Subscribe(event.FilterApplied, c.onFilter),
	}
	return c
}

// Close stops consuming events. Snapshot stays readable.
func (c *Collector) Close() {
	for _, unsub := range c.unsubs {
		unsub()
	}
	c.unsubs = nil
}

func (c *Collector) onCompleted(e event.Event) {
	data, ok := e.Data.(event.RequestCompletedData)
	if !ok || data.Response == nil {
		return
	}
	resp := data.Response

	c.mu.Lock()
	defer c.mu.Unlock()

	c.succeeded++
	c.byIntent[string(resp.Intent)]++
	c.byReason[string(resp.Reason)]++
	c.tokens.Prompt += int64(resp.Usage.Prompt)
	c.tokens.Completion += int64(resp.Usage.Completion)
	c.observeLatency(float64(resp.LatencyMS))
}

func (c *Collector) onFailed(e event.Event) {
	data, ok := e.Data.(event.RequestFailedData)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.failed++
	c.byFailureKind[data.Kind]++
}

func (c *Collector) onRetry(e event.Event) {
	if _, ok := e.Data.(event.RequestRetryData); !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.retries++
}

func (c *Collector) onFilter(e event.Event) {
	data, ok := e.Data.(event.FilterAppliedData)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters[data.Action]++
}

// observeLatency records one latency, overwriting the oldest entry
// once the window is full. Callers hold c.mu.
func (c *Collector) observeLatency(ms float64) {
	if len(c.latencies) < latencyWindow {
		c.latencies = append(c.latencies, ms)
		return
	}
	c.latencies[c.latIdx] = ms
	c.latIdx = (c.latIdx + 1) % latencyWindow
}

// Snapshot returns a copy of the current counters.
func (c *Collector) Snapshot() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	requests := c.succeeded + c.failed
	s := Summary{
		UptimeSeconds: int64(time.Since(c.start).Seconds()),
		Requests:      requests,
		Succeeded:     c.succeeded,
		Failed:        c.failed,
		Retries:       c.retries,
		ByIntent:      copyCounts(c.byIntent),
		ByReason:      copyCounts(c.byReason),
		ByFailureKind: copyCounts(c.byFailureKind),
		Filters:       copyCounts(c.filters),
		Tokens:        c.tokens,
	}
	if requests > 0 {
		s.ErrorRate = float64(c.failed) / float64(requests)
	}
	s.AvgLatencyMS, s.P95LatencyMS = latencyStats(c.latencies)
	return s
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func latencyStats(window []float64) (avg, p95 float64) {
	if len(window) == 0 {
		return 0, 0
	}
	sorted := append([]float64(nil), window...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	avg = sum / float64(len(sorted))

	idx := int(math.Ceil(0.95*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	p95 = sorted[idx]
	return avg, p95
}
