// Package metrics maintains process-local counters and renders them in the
// Prometheus text exposition format. No client library is pulled in; the
// format is simple enough to emit directly.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type requestKey struct {
	handler string
	method  string
	code    string
}

type latencyKey struct {
	handler string
	method  string
}

type histogram struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type collector struct {
	mu       sync.Mutex
	requests map[requestKey]uint64
	latency  map[latencyKey]*histogram
	cycles   uint64
	trades   map[string]uint64
	skips    map[string]uint64
	loopErrs map[string]uint64
}

var registry = &collector{
	requests: make(map[requestKey]uint64),
	latency:  make(map[latencyKey]*histogram),
	trades:   make(map[string]uint64),
	skips:    make(map[string]uint64),
	loopErrs: make(map[string]uint64),
}

// ObserveHTTPRequest records one HTTP request lifecycle.
func ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	registry.requests[requestKey{handler: handler, method: method, code: strconv.Itoa(status)}]++

	key := latencyKey{handler: handler, method: method}
	hist := registry.latency[key]
	if hist == nil {
		hist = newHistogram()
		registry.latency[key] = hist
	}
	hist.observe(duration.Seconds())
}

// ObserveCycle counts one trading-loop cycle.
func ObserveCycle() {
	registry.mu.Lock()
	registry.cycles++
	registry.mu.Unlock()
}

// ObserveTradeSubmitted counts a submitted trade per protocol.
func ObserveTradeSubmitted(protocol string) {
	registry.mu.Lock()
	registry.trades[protocol]++
	registry.mu.Unlock()
}

// ObserveTradeSkipped counts a skipped cycle per reason.
func ObserveTradeSkipped(reason string) {
	registry.mu.Lock()
	registry.skips[reason]++
	registry.mu.Unlock()
}

// ObserveLoopError counts a failed cycle per error code.
func ObserveLoopError(code string) {
	registry.mu.Lock()
	registry.loopErrs[code]++
	registry.mu.Unlock()
}

func newHistogram() *histogram {
	buckets := []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) observe(value float64) {
	h.count++
	h.sum += value
	for idx, bound := range h.buckets {
		if value <= bound {
			for i := idx; i < len(h.counts); i++ {
				h.counts[i]++
			}
			break
		}
	}
}

// Handler serves the current counters.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = fmt.Fprint(w, registry.render())
	})
}

func (c *collector) render() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var builder strings.Builder
	builder.Grow(1024)

	type requestMetric struct {
		requestKey
		value uint64
	}
	reqs := make([]requestMetric, 0, len(c.requests))
	for key, value := range c.requests {
		reqs = append(reqs, requestMetric{requestKey: key, value: value})
	}
	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].handler == reqs[j].handler {
			if reqs[i].method == reqs[j].method {
				return reqs[i].code < reqs[j].code
			}
			return reqs[i].method < reqs[j].method
		}
		return reqs[i].handler < reqs[j].handler
	})

	builder.WriteString("# HELP aptosai_http_requests_total Total number of HTTP requests processed.\n")
	builder.WriteString("# TYPE aptosai_http_requests_total counter\n")
	for _, metric := range reqs {
		builder.WriteString(fmt.Sprintf("aptosai_http_requests_total{handler=%q,method=%q,code=%q} %d\n",
			metric.handler, metric.method, metric.code, metric.value))
	}

	type latencyMetric struct {
		latencyKey
		hist histogram
	}
	lats := make([]latencyMetric, 0, len(c.latency))
	for key, hist := range c.latency {
		lats = append(lats, latencyMetric{latencyKey: key, hist: histogram{
			buckets: append([]float64(nil), hist.buckets...),
			counts:  append([]uint64(nil), hist.counts...),
			sum:     hist.sum,
			count:   hist.count,
		}})
	}
	sort.Slice(lats, func(i, j int) bool {
		if lats[i].handler == lats[j].handler {
			return lats[i].method < lats[j].method
		}
		return lats[i].handler < lats[j].handler
	})

	builder.WriteString("# HELP aptosai_http_request_duration_seconds HTTP request duration in seconds.\n")
	builder.WriteString("# TYPE aptosai_http_request_duration_seconds histogram\n")
	for _, metric := range lats {
		for idx, bound := range metric.hist.buckets {
			builder.WriteString(fmt.Sprintf("aptosai_http_request_duration_seconds_bucket{handler=%q,method=%q,le=%q} %d\n",
				metric.handler, metric.method, formatFloat(bound), metric.hist.counts[idx]))
		}
		builder.WriteString(fmt.Sprintf("aptosai_http_request_duration_seconds_bucket{handler=%q,method=%q,le=\"+Inf\"} %d\n",
			metric.handler, metric.method, metric.hist.count))
		builder.WriteString(fmt.Sprintf("aptosai_http_request_duration_seconds_sum{handler=%q,method=%q} %s\n",
			metric.handler, metric.method, formatFloat(metric.hist.sum)))
		builder.WriteString(fmt.Sprintf("aptosai_http_request_duration_seconds_count{handler=%q,method=%q} %d\n",
			metric.handler, metric.method, metric.hist.count))
	}

	builder.WriteString("# HELP aptosai_loop_cycles_total Trading loop cycles executed.\n")
	builder.WriteString("# TYPE aptosai_loop_cycles_total counter\n")
	builder.WriteString(fmt.Sprintf("aptosai_loop_cycles_total %d\n", c.cycles))

	builder.WriteString("# HELP aptosai_trades_submitted_total Trades submitted per protocol.\n")
	builder.WriteString("# TYPE aptosai_trades_submitted_total counter\n")
	for _, protocol := range sortedKeys(c.trades) {
		builder.WriteString(fmt.Sprintf("aptosai_trades_submitted_total{protocol=%q} %d\n", protocol, c.trades[protocol]))
	}

	builder.WriteString("# HELP aptosai_trades_skipped_total Cycles skipped per reason.\n")
	builder.WriteString("# TYPE aptosai_trades_skipped_total counter\n")
	for _, reason := range sortedKeys(c.skips) {
		builder.WriteString(fmt.Sprintf("aptosai_trades_skipped_total{reason=%q} %d\n", reason, c.skips[reason]))
	}

	builder.WriteString("# HELP aptosai_loop_errors_total Failed cycles per error code.\n")
	builder.WriteString("# TYPE aptosai_loop_errors_total counter\n")
	for _, code := range sortedKeys(c.loopErrs) {
		builder.WriteString(fmt.Sprintf("aptosai_loop_errors_total{code=%q} %d\n", code, c.loopErrs[code]))
	}

	return builder.String()
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
