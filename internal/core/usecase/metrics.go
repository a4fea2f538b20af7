package usecase

import (
	"sort"
	"sync"
	"time"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
)

const defaultMetricsWindow = 1000

type OperationType string

const (
	OperationDocument  OperationType = "document_processing"
	OperationQuery     OperationType = "query"
	OperationEmbedding OperationType = "embedding"
)

type MetricRecord struct {
	Timestamp   time.Time
	Mode        domain.Mode
	Operation   OperationType
	Duration    time.Duration
	Success     bool
	Error       string
	ResultCount int
	VectorCount int
}

// MetricsCollector keeps the most recent records in a FIFO window plus
// monotonic per-mode counters.
type MetricsCollector struct {
	mu       sync.RWMutex
	window   int
	records  []MetricRecord
	counters map[string]int
	now      func() time.Time
}

func NewMetricsCollector(window int) *MetricsCollector {
	if window <= 0 {
		window = defaultMetricsWindow
	}
	return &MetricsCollector{
		window:   window,
		records:  make([]MetricRecord, 0, window),
		counters: make(map[string]int),
		now:      time.Now,
	}
}

func (c *MetricsCollector) RecordDocumentProcessing(mode domain.Mode, duration time.Duration, success bool, errMsg string) {
	c.add(MetricRecord{Mode: mode, Operation: OperationDocument, Duration: duration, Success: success, Error: errMsg}, func() {
		if success {
			c.counters[string(mode)+":doc_processed"]++
		} else {
			c.counters[string(mode)+":doc_failed"]++
		}
	})
}

func (c *MetricsCollector) RecordQuery(mode domain.Mode, latency time.Duration, resultCount int, success bool, errMsg string) {
	c.add(MetricRecord{Mode: mode, Operation: OperationQuery, Duration: latency, Success: success, Error: errMsg, ResultCount: resultCount}, func() {
		c.counters[string(mode)+":queries"]++
		if !success {
			c.counters[string(mode)+":query_errors"]++
		}
	})
}

func (c *MetricsCollector) RecordEmbedding(mode domain.Mode, vectorCount int, duration time.Duration, success bool) {
	c.add(MetricRecord{Mode: mode, Operation: OperationEmbedding, Duration: duration, Success: success, VectorCount: vectorCount}, func() {
		if success {
			c.counters[string(mode)+":embeddings"] += vectorCount
		}
	})
}

func (c *MetricsCollector) add(record MetricRecord, count func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	record.Timestamp = c.now()
	if len(c.records) >= c.window {
		copy(c.records, c.records[1:])
		c.records = c.records[:len(c.records)-1]
	}
	c.records = append(c.records, record)
	count()
}

func (c *MetricsCollector) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

func (c *MetricsCollector) Counters() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]int, len(c.counters))
	for k, v := range c.counters {
		out[k] = v
	}
	return out
}

// Summary aggregates the window per mode, plus an "overall" entry. An empty
// window yields an empty map.
func (c *MetricsCollector) Summary() map[string]any {
	c.mu.RLock()
	records := append([]MetricRecord(nil), c.records...)
	c.mu.RUnlock()

	summary := make(map[string]any)
	if len(records) == 0 {
		return summary
	}

	byMode := make(map[domain.Mode][]MetricRecord)
	for _, r := range records {
		byMode[r.Mode] = append(byMode[r.Mode], r)
	}
	for mode, modeRecords := range byMode {
		summary[string(mode)] = c.modeMetrics(modeRecords)
	}
	summary["overall"] = globalMetrics(records)
	return summary
}

// ModeComparison is Summary restricted to the known modes.
func (c *MetricsCollector) ModeComparison() map[string]any {
	summary := c.Summary()
	out := make(map[string]any, 3)
	for _, mode := range domain.AllModes() {
		if v, ok := summary[string(mode)]; ok {
			out[string(mode)] = v
		}
	}
	return out
}

func (c *MetricsCollector) modeMetrics(records []MetricRecord) map[string]any {
	var docs, queries, embeds []MetricRecord
	for _, r := range records {
		switch r.Operation {
		case OperationDocument:
			docs = append(docs, r)
		case OperationQuery:
			queries = append(queries, r)
		case OperationEmbedding:
			embeds = append(embeds, r)
		}
	}

	out := map[string]any{
		"timestamp":     c.now().UTC().Format(time.RFC3339),
		"total_records": len(records),
	}

	if len(docs) > 0 {
		ok := countSuccess(docs)
		durations := positiveDurationsMS(docs)
		out["document_processing"] = map[string]any{
			"total":           len(docs),
			"successful":      ok,
			"error_rate":      1 - float64(ok)/float64(len(docs)),
			"avg_duration_ms": mean(durations),
			"min_duration_ms": minOf(durations),
			"max_duration_ms": maxOf(durations),
		}
	}

	if len(queries) > 0 {
		ok := countSuccess(queries)
		latencies := positiveDurationsMS(queries)
		counts := make([]float64, len(queries))
		for i, r := range queries {
			counts[i] = float64(r.ResultCount)
		}
		out["query"] = map[string]any{
			"total":            len(queries),
			"successful":       ok,
			"error_rate":       1 - float64(ok)/float64(len(queries)),
			"avg_latency_ms":   mean(latencies),
			"p95_latency_ms":   percentile(latencies, 95),
			"p99_latency_ms":   percentile(latencies, 99),
			"avg_result_count": mean(counts),
		}
	}

	if len(embeds) > 0 {
		total, successful := 0, 0
		for _, r := range embeds {
			total += r.VectorCount
			if r.Success {
				successful += r.VectorCount
			}
		}
		out["embedding"] = map[string]any{
			"total_vectors":      total,
			"successful_vectors": successful,
			"avg_duration_ms":    mean(positiveDurationsMS(embeds)),
		}
	}
	return out
}

func globalMetrics(records []MetricRecord) map[string]any {
	ok := countSuccess(records)
	return map[string]any{
		"total_operations":     len(records),
		"successful":           ok,
		"failed":               len(records) - ok,
		"overall_success_rate": float64(ok) / float64(len(records)),
		"avg_duration_ms":      mean(positiveDurationsMS(records)),
	}
}

func countSuccess(records []MetricRecord) int {
	n := 0
	for _, r := range records {
		if r.Success {
			n++
		}
	}
	return n
}

func positiveDurationsMS(records []MetricRecord) []float64 {
	out := make([]float64, 0, len(records))
	for _, r := range records {
		if r.Duration > 0 {
			out = append(out, float64(r.Duration)/float64(time.Millisecond))
		}
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func minOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// percentile picks sorted[int(p/100*n)], clamped to the last element.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	idx := int(p / 100 * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
