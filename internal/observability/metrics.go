package observability

import (
	"net/http"
	"sync"
	"time"
)

// MetricsRegistry holds all registered metrics.
type MetricsRegistry struct {
	mu       sync.RWMutex
	counters map[string]*Counter
	gauges   map[string]*Gauge
	histos   map[string]*Histogram
}

// Counter is a monotonically increasing metric.
type Counter struct {
	name   string
	help   string
	labels map[string]string
	value  float64
	mu     sync.Mutex
}

// Gauge is a metric that can go up or down.
type Gauge struct {
	name   string
	help   string
	labels map[string]string
	value  float64
	mu     sync.Mutex
}

// Histogram tracks distribution of values.
type Histogram struct {
	name    string
	help    string
	labels  map[string]string
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
	mu      sync.Mutex
}

// NewMetricsRegistry creates a new metrics registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		counters: make(map[string]*Counter),
		gauges:   make(map[string]*Gauge),
		histos:   make(map[string]*Histogram),
	}
}

// NewCounter creates and registers a counter.
func (r *MetricsRegistry) NewCounter(name, help string, labels map[string]string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := &Counter{name: name, help: help, labels: labels}
	r.counters[name] = c
	return c
}

// NewGauge creates and registers a gauge.
func (r *MetricsRegistry) NewGauge(name, help string, labels map[string]string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()

	g := &Gauge{name: name, help: help, labels: labels}
	r.gauges[name] = g
	return g
}

// NewHistogram creates and registers a histogram.
func (r *MetricsRegistry) NewHistogram(name, help string, labels map[string]string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()

	if buckets == nil {
		buckets = DefaultBuckets()
	}

	h := &Histogram{
		name:    name,
		help:    help,
		labels:  labels,
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
	r.histos[name] = h
	return h
}

// DefaultBuckets returns default histogram buckets for latency.
func DefaultBuckets() []float64 {
	return []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
}

// Inc increments a counter by 1.
func (c *Counter) Inc() {
	c.Add(1)
}

// Add adds a value to the counter.
func (c *Counter) Add(v float64) {
	c.mu.Lock()
	c.value += v
	c.mu.Unlock()
}

// Value returns the counter value.
func (c *Counter) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set sets the gauge value.
func (g *Gauge) Set(v float64) {
	g.mu.Lock()
	g.value = v
	g.mu.Unlock()
}

// Inc increments the gauge by 1.
func (g *Gauge) Inc() {
	g.Add(1)
}

// Dec decrements the gauge by 1.
func (g *Gauge) Dec() {
	g.Add(-1)
}

// Add adds a value to the gauge.
func (g *Gauge) Add(v float64) {
	g.mu.Lock()
	g.value += v
	g.mu.Unlock()
}

// Value returns the gauge value.
func (g *Gauge) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

// Observe records a value in the histogram.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += v
	h.count++

	for i, bound := range h.buckets {
		if v <= bound {
			h.counts[i]++
		}
	}
}

// ObserveDuration records a duration in the histogram.
func (h *Histogram) ObserveDuration(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// Handler returns an HTTP handler for Prometheus metrics.
func (r *MetricsRegistry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.WritePrometheus(w)
	})
}

// WritePrometheus writes metrics in Prometheus text format.
func (r *MetricsRegistry) WritePrometheus(w http.ResponseWriter) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Write counters
	for _, c := range r.counters {
		c.mu.Lock()
		writeMetric(w, c.name, "counter", c.help, c.labels, c.value)
		c.mu.Unlock()
	}

	// Write gauges
	for _, g := range r.gauges {
		g.mu.Lock()
		writeMetric(w, g.name, "gauge", g.help, g.labels, g.value)
		g.mu.Unlock()
	}

	// Write histograms
	for _, h := range r.histos {
		h.mu.Lock()
		writeHistogram(w, h)
		h.mu.Unlock()
	}
}

func writeMetric(w http.ResponseWriter, name, metricType, help string, labels map[string]string, value float64) {
	w.Write([]byte("# HELP " + name + " " + help + "\n"))
	w.Write([]byte("# TYPE " + name + " " + metricType + "\n"))
	w.Write([]byte(name + formatLabels(labels) + " "))
	w.Write([]byte(formatFloat(value) + "\n"))
}

func writeHistogram(w http.ResponseWriter, h *Histogram) {
	w.Write([]byte("# HELP " + h.name + " " + h.help + "\n"))
	w.Write([]byte("# TYPE " + h.name + " histogram\n"))

	// Write bucket counts
	var cumulative uint64
	for i, bound := range h.buckets {
		cumulative += h.counts[i]
		labels := copyLabels(h.labels)
		labels["le"] = formatFloat(bound)
		w.Write([]byte(h.name + "_bucket" + formatLabels(labels) + " "))
		w.Write([]byte(formatUint(cumulative) + "\n"))
	}

	// Write +Inf bucket
	labels := copyLabels(h.labels)
	labels["le"] = "+Inf"
	w.Write([]byte(h.name + "_bucket" + formatLabels(labels) + " "))
	w.Write([]byte(formatUint(h.count) + "\n"))

	// Write sum and count
	w.Write([]byte(h.name + "_sum" + formatLabels(h.labels) + " "))
	w.Write([]byte(formatFloat(h.sum) + "\n"))
	w.Write([]byte(h.name + "_count" + formatLabels(h.labels) + " "))
	w.Write([]byte(formatUint(h.count) + "\n"))
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	result := "{"
	first := true
	for k, v := range labels {
		if !first {
			result += ","
		}
		result += k + "=\"" + v + "\""
		first = false
	}
	result += "}"
	return result
}

func copyLabels(labels map[string]string) map[string]string {
	if labels == nil {
		return make(map[string]string)
	}
	result := make(map[string]string, len(labels))
	for k, v := range labels {
		result[k] = v
	}
	return result
}

func formatFloat(v float64) string {
	return string(appendFloat(nil, v))
}

func formatUint(v uint64) string {
	return string(appendUint(nil, v))
}

func appendFloat(b []byte, v float64) []byte {
	return append(b, []byte(floatToString(v))...)
}

func appendUint(b []byte, v uint64) []byte {
	return append(b, []byte(uintToString(v))...)
}

func floatToString(v float64) string {
	if v == float64(int64(v)) {
		return uintToString(uint64(v))
	}
	// Simple float formatting
	intPart := int64(v)
	fracPart := int64((v - float64(intPart)) * 1000000)
	if fracPart < 0 {
		fracPart = -fracPart
	}
	return uintToString(uint64(intPart)) + "." + padZeros(fracPart, 6)
}

func uintToString(v uint64) string {
	if v == 0 {
		return "0"
	}
	var digits [20]byte
	i := len(digits)
	for v > 0 {
		i--
		digits[i] = byte('0' + v%10)
		v /= 10
	}
	return string(digits[i:])
}

func padZeros(v int64, width int) string {
	s := uintToString(uint64(v))
	for len(s) < width {
		s = "0" + s
	}
	// Trim trailing zeros
	for len(s) > 1 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	return s
}

// Engine-specific metrics

// EngineMetrics contains all indexing-engine metrics.
type EngineMetrics struct {
	Registry *MetricsRegistry

	// Indexing metrics
	IndexRunsTotal     *Counter
	IndexErrorsTotal   *Counter
	IndexRunDuration   *Histogram
	FilesIndexedTotal  *Counter
	FilesDeletedTotal  *Counter
	ChunksWrittenTotal *Counter

	// Embedding metrics
	EmbedRequestsTotal *Counter
	EmbedErrorsTotal   *Counter
	EmbedDuration      *Histogram

	// Search metrics
	SearchesTotal   *Counter
	SearchDuration  *Histogram
	SearchHitsTotal *Counter

	// Task history metrics
	TasksIndexedTotal *Counter

	// Engine availability: 1 ready, 0 disabled
	EngineReady *Gauge
}

// NewEngineMetrics creates the engine metric bundle.
func NewEngineMetrics() *EngineMetrics {
	r := NewMetricsRegistry()

	return &EngineMetrics{
		Registry: r,

		// Indexing
		IndexRunsTotal:     r.NewCounter("locus_index_runs_total", "Total indexing passes", nil),
		IndexErrorsTotal:   r.NewCounter("locus_index_errors_total", "Total failed indexing passes", nil),
		IndexRunDuration:   r.NewHistogram("locus_index_run_duration_seconds", "Indexing pass duration", nil, nil),
		FilesIndexedTotal:  r.NewCounter("locus_files_indexed_total", "Total files embedded and written", nil),
		FilesDeletedTotal:  r.NewCounter("locus_files_deleted_total", "Total files removed from the index", nil),
		ChunksWrittenTotal: r.NewCounter("locus_chunks_written_total", "Total chunks written", nil),

		// Embedding
		EmbedRequestsTotal: r.NewCounter("locus_embed_requests_total", "Total embedding batch requests", nil),
		EmbedErrorsTotal:   r.NewCounter("locus_embed_errors_total", "Total embedding errors", nil),
		EmbedDuration:      r.NewHistogram("locus_embed_duration_seconds", "Embedding batch duration", nil, nil),

		// Search
		SearchesTotal:   r.NewCounter("locus_searches_total", "Total semantic queries", nil),
		SearchDuration:  r.NewHistogram("locus_search_duration_seconds", "Query duration", nil, nil),
		SearchHitsTotal: r.NewCounter("locus_search_hits_total", "Total hits returned", nil),

		// Task history
		TasksIndexedTotal: r.NewCounter("locus_tasks_indexed_total", "Total task outcomes indexed", nil),

		// Availability
		EngineReady: r.NewGauge("locus_engine_ready", "Whether semantic search is available", nil),
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *EngineMetrics) Handler() http.Handler {
	return m.Registry.Handler()
}

// RecordIndexRun records an indexing pass.
func (m *EngineMetrics) RecordIndexRun(duration time.Duration, filesIndexed, filesDeleted, chunksWritten int, err error) {
	m.IndexRunsTotal.Inc()
	m.IndexRunDuration.Observe(duration.Seconds())
	if err != nil {
		m.IndexErrorsTotal.Inc()
		return
	}
	m.FilesIndexedTotal.Add(float64(filesIndexed))
	m.FilesDeletedTotal.Add(float64(filesDeleted))
	m.ChunksWrittenTotal.Add(float64(chunksWritten))
}

// RecordSearch records a semantic query.
func (m *EngineMetrics) RecordSearch(duration time.Duration, hits int, err error) {
	m.SearchesTotal.Inc()
	m.SearchDuration.Observe(duration.Seconds())
	if err == nil {
		m.SearchHitsTotal.Add(float64(hits))
	}
}

// Global metrics instance
var globalMetrics *EngineMetrics
var metricsOnce sync.Once

// Metrics returns the global metrics instance.
func Metrics() *EngineMetrics {
	metricsOnce.Do(func() {
		globalMetrics = NewEngineMetrics()
	})
	return globalMetrics
}
