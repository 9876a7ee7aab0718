package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	rasterConvertTotal       atomic.Uint64
	rasterConvertFailedTotal atomic.Uint64

	exportTotal         = newLabeledCounter()
	exportFallbackTotal atomic.Uint64
	exportFailedTotal   atomic.Uint64

	reviewCreatedTotal atomic.Uint64
	reviewFailedTotal  atomic.Uint64

	exportJobsReceivedTotal  atomic.Uint64
	exportJobsCompletedTotal atomic.Uint64
	exportJobsFailedTotal    atomic.Uint64
	exportJobsDroppedTotal   atomic.Uint64

	exportDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000})
)

// IncRasterConvert counts a rasterization attempt; failed marks it unsuccessful.
func IncRasterConvert(failed bool) {
	rasterConvertTotal.Add(1)
	if failed {
		rasterConvertFailedTotal.Add(1)
	}
}

// IncExport counts a document produced by the named strategy.
func IncExport(strategy string) {
	exportTotal.Inc(strategy)
}

// IncExportFallback counts a strategy failure that moved on to the next strategy.
func IncExportFallback() {
	exportFallbackTotal.Add(1)
}

// IncExportFailed counts exports where every strategy failed.
func IncExportFailed() {
	exportFailedTotal.Add(1)
}

// IncReviewCreated increments the completed review counter.
func IncReviewCreated() {
	reviewCreatedTotal.Add(1)
}

// IncReviewFailed increments the failed review counter.
func IncReviewFailed() {
	reviewFailedTotal.Add(1)
}

// IncExportJobsReceived increments the worker receive counter.
func IncExportJobsReceived() {
	exportJobsReceivedTotal.Add(1)
}

// IncExportJobsCompleted increments the worker completion counter.
func IncExportJobsCompleted() {
	exportJobsCompletedTotal.Add(1)
}

// IncExportJobsFailed increments the worker failure counter.
func IncExportJobsFailed() {
	exportJobsFailedTotal.Add(1)
}

// IncExportJobsDeletedUnrecoverable counts messages the worker deleted
// without processing.
func IncExportJobsDeletedUnrecoverable() {
	exportJobsDroppedTotal.Add(1)
}

// ObserveExportDurationMs records an export duration in milliseconds.
func ObserveExportDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	exportDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "raster_convert_total", "PDF rasterizations attempted", rasterConvertTotal.Load())
	writeCounter(&buf, "raster_convert_failed_total", "PDF rasterizations that returned an error", rasterConvertFailedTotal.Load())
	writeLabeledCounter(&buf, "export_total", "Exported documents by strategy", "strategy", exportTotal.Snapshot())
	writeCounter(&buf, "export_fallback_total", "Export strategies that failed over to the next strategy", exportFallbackTotal.Load())
	writeCounter(&buf, "export_failed_total", "Exports where every strategy failed", exportFailedTotal.Load())
	writeCounter(&buf, "review_created_total", "Reviews completed", reviewCreatedTotal.Load())
	writeCounter(&buf, "review_failed_total", "Reviews failed", reviewFailedTotal.Load())
	writeCounter(&buf, "export_jobs_received_total", "Export jobs received by the worker", exportJobsReceivedTotal.Load())
	writeCounter(&buf, "export_jobs_completed_total", "Export jobs completed by the worker", exportJobsCompletedTotal.Load())
	writeCounter(&buf, "export_jobs_failed_total", "Export jobs failed in the worker", exportJobsFailedTotal.Load())
	writeCounter(&buf, "export_jobs_deleted_unrecoverable_total", "Export job messages deleted without processing", exportJobsDroppedTotal.Load())
	writeHistogram(&buf, "export_duration_ms", "Export duration in milliseconds", exportDuration.Snapshot())
	return buf.String()
}

type labeledCounter struct {
	mu     sync.Mutex
	values map[string]uint64
}

func newLabeledCounter() *labeledCounter {
	return &labeledCounter{values: make(map[string]uint64)}
}

func (l *labeledCounter) Inc(label string) {
	l.mu.Lock()
	l.values[label]++
	l.mu.Unlock()
}

func (l *labeledCounter) Snapshot() map[string]uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]uint64, len(l.values))
	for k, v := range l.values {
		out[k] = v
	}
	return out
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe places value in the first bucket whose bound holds it.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeLabeledCounter(buf *bytes.Buffer, name, help, label string, values map[string]uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(buf, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}

// writeHistogram emits cumulative buckets; counts are stored per bucket.
func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
