// Package metrics is a tiny facade between pipeline code and a metrics
// backend. Pipeline code records through the package functions; the CLI picks
// the backend once at startup. Until then every call is a no-op.
package metrics

import (
	"sync"
	"time"
)

// Labels are metric dimensions (e.g. step, status, kind).
type Labels map[string]string

// Backend receives counters and histogram observations.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Flusher is implemented by backends that buffer and submit on demand.
type Flusher interface {
	Flush() error
}

// Metric names shared by all backends.
const (
	StepTotal       = "etl_step_total"
	StepDuration    = "etl_step_duration_seconds"
	RecordsTotal    = "etl_records_total"
	BatchesTotal    = "etl_batches_total"
	IssuesTotal     = "etl_issues_total"
	StatusOK        = "ok"
	StatusError     = "error"
	StatusDegraded  = "degraded"
	DefaultJobName  = "northwind_warehouse"
	LabelStep       = "step"
	LabelStatus     = "status"
	LabelRecordKind = "kind"
	LabelCategory   = "category"
)

type nop struct{}

func (nop) IncCounter(string, float64, Labels)       {}
func (nop) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	backend Backend = nop{}
)

// SetBackend installs b for the rest of the process. A nil b restores the
// no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nop{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush submits buffered metrics when the backend supports it.
func Flush() error {
	if f, ok := current().(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// RecordStep counts one pipeline step and observes its duration.
func RecordStep(step, status string, d time.Duration) {
	l := Labels{LabelStep: step, LabelStatus: status}
	IncCounter(StepTotal, 1, l)
	ObserveHistogram(StepDuration, d.Seconds(), l)
}

// RecordRows counts rows of one kind (e.g. "loaded", "written").
func RecordRows(kind string, n int) {
	if n <= 0 {
		return
	}
	IncCounter(RecordsTotal, float64(n), Labels{LabelRecordKind: kind})
}

// RecordBatch counts one written table.
func RecordBatch() {
	IncCounter(BatchesTotal, 1, nil)
}

// RecordIssue counts one data-quality issue by category.
func RecordIssue(category string) {
	IncCounter(IssuesTotal, 1, Labels{LabelCategory: category})
}
