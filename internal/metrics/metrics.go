// internal/metrics/metrics.go
package metrics

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Corphon/CantusMCP/internal/logger"
)

// Collector collects application metrics
type Collector struct {
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram

	mu sync.RWMutex
}

// Counter metric - using atomic operations for thread-safe value updates
type Counter struct {
	name  string
	value int64
}

// Gauge metric - using atomic operations for thread-safe value updates
type Gauge struct {
	name  string
	value int64
}

// Histogram metric (simple implementation tracking count, sum, min, max)
type Histogram struct {
	name  string
	count int64
	sum   int64
	min   int64
	max   int64
	mu    sync.Mutex
}

var (
	globalCollector *Collector
	collectorOnce   sync.Once
)

// GetCollector returns the global metrics collector
func GetCollector() *Collector {
	collectorOnce.Do(func() {
		globalCollector = &Collector{
			counters:   make(map[string]*Counter),
			gauges:     make(map[string]*Gauge),
			histograms: make(map[string]*Histogram),
		}
	})
	return globalCollector
}

// IncrementCounter increments a counter metric using atomic operations to reduce lock contention
func (m *Collector) IncrementCounter(name string) {
	m.AddCounter(name, 1)
}

// AddCounter adds a value to a counter metric using atomic operations
func (m *Collector) AddCounter(name string, value int64) {
	// Fast path for existing counters
	m.mu.RLock()
	counter, exists := m.counters[name]
	m.mu.RUnlock()

	if exists {
		atomic.AddInt64(&counter.value, value)
		return
	}

	m.mu.Lock()
	// Double-check after acquiring write lock
	counter, exists = m.counters[name]
	if !exists {
		counter = &Counter{name: name}
		m.counters[name] = counter
	}
	m.mu.Unlock()

	atomic.AddInt64(&counter.value, value)
}

// SetGauge sets a gauge metric using atomic operations
func (m *Collector) SetGauge(name string, value int64) {
	m.mu.RLock()
	gauge, exists := m.gauges[name]
	m.mu.RUnlock()

	if exists {
		atomic.StoreInt64(&gauge.value, value)
		return
	}

	m.mu.Lock()
	gauge, exists = m.gauges[name]
	if !exists {
		gauge = &Gauge{name: name}
		m.gauges[name] = gauge
	}
	m.mu.Unlock()

	atomic.StoreInt64(&gauge.value, value)
}

// AddGauge shifts a gauge by delta, creating it when missing.
func (m *Collector) AddGauge(name string, delta int64) {
	m.mu.RLock()
	gauge, exists := m.gauges[name]
	m.mu.RUnlock()

	if exists {
		atomic.AddInt64(&gauge.value, delta)
		return
	}

	m.SetGauge(name, delta)
}

// IncGauge increments a gauge metric
func (m *Collector) IncGauge(name string) {
	m.AddGauge(name, 1)
}

// DecGauge decrements a gauge metric
func (m *Collector) DecGauge(name string) {
	m.AddGauge(name, -1)
}

// GetGauge gets the current value of a gauge using atomic load
func (m *Collector) GetGauge(name string) int64 {
	m.mu.RLock()
	gauge, exists := m.gauges[name]
	m.mu.RUnlock()

	if !exists {
		return 0
	}

	return atomic.LoadInt64(&gauge.value)
}

// GetCounterValue gets the current value of a counter using atomic load
func (m *Collector) GetCounterValue(name string) int64 {
	m.mu.RLock()
	counter, exists := m.counters[name]
	m.mu.RUnlock()

	if !exists {
		return 0
	}

	return atomic.LoadInt64(&counter.value)
}

// RecordHistogram records a value in a histogram
func (m *Collector) RecordHistogram(name string, value int64) {
	m.mu.RLock()
	histogram, exists := m.histograms[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		histogram, exists = m.histograms[name]
		if !exists {
			histogram = &Histogram{
				name: name,
				min:  value,
				max:  value,
			}
			m.histograms[name] = histogram
		}
		m.mu.Unlock()
	}

	histogram.mu.Lock()
	defer histogram.mu.Unlock()

	histogram.count++
	histogram.sum += value

	if value < histogram.min {
		histogram.min = value
	}
	if value > histogram.max {
		histogram.max = value
	}
}

// Snapshot returns a point-in-time copy of all metrics
func (m *Collector) Snapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := make(map[string]interface{})

	counters := make(map[string]int64)
	for name, counter := range m.counters {
		counters[name] = atomic.LoadInt64(&counter.value)
	}
	snapshot["counters"] = counters

	gauges := make(map[string]int64)
	for name, gauge := range m.gauges {
		gauges[name] = atomic.LoadInt64(&gauge.value)
	}
	snapshot["gauges"] = gauges

	// Histograms still need their mutex for min/max consistency
	histograms := make(map[string]map[string]int64)
	for name, histogram := range m.histograms {
		histogram.mu.Lock()
		histograms[name] = map[string]int64{
			"count": histogram.count,
			"sum":   histogram.sum,
			"min":   histogram.min,
			"max":   histogram.max,
		}
		histogram.mu.Unlock()
	}
	snapshot["histograms"] = histograms

	return snapshot
}

// AppMetrics groups the metrics the HTTP and assistant layers record.
type AppMetrics struct {
	metrics *Collector
	logger  *logger.Logger
}

// NewAppMetrics creates a new application metrics instance
func NewAppMetrics() *AppMetrics {
	return &AppMetrics{
		metrics: GetCollector(),
		logger:  logger.Get(),
	}
}

// RecordAPIRequest records metrics for an API request
func (am *AppMetrics) RecordAPIRequest(endpoint, method string, statusCode int, duration time.Duration) {
	am.metrics.IncrementCounter("api_requests_total")
	am.metrics.IncrementCounter("api_requests_" + method + "_" + endpoint)
	am.metrics.RecordHistogram("api_response_time_ms", duration.Milliseconds())
	am.metrics.IncrementCounter(fmt.Sprintf("api_responses_%dxx", statusCode/100))

	am.logger.Debug("API request completed", map[string]interface{}{
		"endpoint": endpoint,
		"method":   method,
		"status":   statusCode,
		"duration": duration.Milliseconds(),
	})
}

// RecordLLMRequest records metrics for an LLM request
func (am *AppMetrics) RecordLLMRequest(provider, model string, duration time.Duration) {
	am.metrics.IncrementCounter("llm_requests_total")
	am.metrics.IncrementCounter("llm_requests_" + provider)
	am.metrics.RecordHistogram("llm_response_time_ms", duration.Milliseconds())

	am.logger.Info("LLM request completed", map[string]interface{}{
		"provider": provider,
		"model":    model,
		"duration": duration.Milliseconds(),
	})
}

// RecordParse records what one reply parse saw and salvaged.
func (am *AppMetrics) RecordParse(blocks, demoted, skipped, inlineTags int) {
	am.metrics.IncrementCounter("parse_total")
	am.metrics.AddCounter("parse_blocks_total", int64(blocks))
	am.metrics.AddCounter("parse_blocks_demoted", int64(demoted))
	am.metrics.AddCounter("parse_entries_skipped", int64(skipped))
	am.metrics.AddCounter("parse_inline_tags", int64(inlineTags))
}

// RecordSearch records a catalog search and its duration.
func (am *AppMetrics) RecordSearch(hits int, duration time.Duration) {
	am.metrics.IncrementCounter("search_total")
	am.metrics.AddCounter("search_hits_total", int64(hits))
	am.metrics.RecordHistogram("search_time_ms", duration.Milliseconds())
}

// RecordError records an error metric
func (am *AppMetrics) RecordError(errorType, component string) {
	am.metrics.IncrementCounter("errors_total")
	am.metrics.IncrementCounter("errors_" + errorType)
	am.metrics.IncrementCounter("errors_component_" + component)
}

// StartMetricsCollection starts background metrics collection
func (am *AppMetrics) StartMetricsCollection(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				am.logger.Info("Periodic metrics report", map[string]interface{}{
					"metrics": am.metrics.Snapshot(),
				})
			}
		}
	}()
}
