// Package prompush implements a metrics.Backend that keeps Prometheus
// collectors in a private registry and pushes them to a Pushgateway on Flush.
package prompush

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"warehouse/internal/metrics"
)

// Backend implements metrics.Backend and metrics.Flusher.
type Backend struct {
	reg    *prometheus.Registry
	pusher *push.Pusher

	steps     *prometheus.CounterVec
	records   *prometheus.CounterVec
	issues    *prometheus.CounterVec
	tables    prometheus.Counter
	durations *prometheus.HistogramVec
}

// NewBackend registers the warehouse collectors and targets gatewayURL under
// job. The grouping includes instance=job so runs replace each other.
func NewBackend(job, gatewayURL string) (*Backend, error) {
	return newBackend(job, gatewayURL, http.DefaultClient)
}

func newBackend(job, gatewayURL string, client push.HTTPDoer) (*Backend, error) {
	if strings.TrimSpace(gatewayURL) == "" {
		return nil, fmt.Errorf("prompush: empty pushgateway url")
	}
	if job == "" {
		job = metrics.DefaultJobName
	}

	b := &Backend{
		reg: prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Pipeline steps by outcome.",
		}, []string{metrics.LabelStep, metrics.LabelStatus}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Rows loaded and written.",
		}, []string{metrics.LabelRecordKind}),
		issues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.IssuesTotal,
			Help: "Data-quality issues by category.",
		}, []string{metrics.LabelCategory}),
		tables: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Warehouse tables written.",
		}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.StepDuration,
			Help:    "Pipeline step duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{metrics.LabelStep, metrics.LabelStatus}),
	}
	b.reg.MustRegister(b.steps, b.records, b.issues, b.tables, b.durations)

	b.pusher = push.New(gatewayURL, job).
		Gatherer(b.reg).
		Grouping("instance", job).
		Client(client)
	return b, nil
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	switch name {
	case metrics.StepTotal:
		b.steps.WithLabelValues(labels[metrics.LabelStep], labels[metrics.LabelStatus]).Add(delta)
	case metrics.RecordsTotal:
		if kind := labels[metrics.LabelRecordKind]; kind != "" {
			b.records.WithLabelValues(kind).Add(delta)
		}
	case metrics.IssuesTotal:
		b.issues.WithLabelValues(orUnknown(labels[metrics.LabelCategory])).Add(delta)
	case metrics.BatchesTotal:
		b.tables.Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDuration || value < 0 {
		return
	}
	b.durations.WithLabelValues(labels[metrics.LabelStep], labels[metrics.LabelStatus]).Observe(value)
}

// Flush replaces the job's metric group on the gateway.
func (b *Backend) Flush() error {
	if err := b.pusher.Push(); err != nil {
		return fmt.Errorf("prompush: push: %w", err)
	}
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

var (
	_ metrics.Backend = (*Backend)(nil)
	_ metrics.Flusher = (*Backend)(nil)
)
