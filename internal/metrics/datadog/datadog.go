// Package datadog implements a Datadog backend for the internal/metrics package.
//
// Metrics are buffered in memory and submitted on a ticker (default once per
// minute) plus once more on Close. A warehouse build usually finishes well
// inside one tick, so the final flush carries most runs.
//
// Flush snapshots and resets the buffers under the mutex, then submits
// outside of it. Submission failures drop that window.
package datadog

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"warehouse/internal/metrics"
)

// Series names submitted to Datadog.
const (
	seriesStep     = "warehouse.step.total"
	seriesRecords  = "warehouse.records.total"
	seriesTables   = "warehouse.tables.total"
	seriesIssues   = "warehouse.issues.total"
	seriesDuration = "warehouse.step.duration_seconds"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric. Defaults to
	// metrics.DefaultJobName.
	JobName string

	// Tags are extra Datadog tags (e.g. "team:bi").
	Tags []string

	// FlushEvery defaults to 60 seconds.
	FlushEvery time.Duration

	// test seams
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the part of *datadogV2.MetricsApi the backend uses.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}
	closeOnce  sync.Once

	baseTags  []string
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu  sync.Mutex
	buf window
}

// window holds everything recorded since the last flush.
type window struct {
	steps     map[string]float64 // step\x00status -> count
	records   map[string]float64 // kind -> rows
	issues    map[string]float64 // category -> count
	tables    float64
	durations map[string][]float64 // step\x00status -> seconds
}

func newWindow() window {
	return window{
		steps:     make(map[string]float64),
		records:   make(map[string]float64),
		issues:    make(map[string]float64),
		durations: make(map[string][]float64),
	}
}

func (w window) isEmpty() bool {
	return len(w.steps) == 0 &&
		len(w.records) == 0 &&
		len(w.issues) == 0 &&
		w.tables == 0 &&
		len(w.durations) == 0
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

// NewBackend constructs a Datadog backend using the official client and
// starts its flush loop. Credentials come from DD_API_KEY / DD_SITE via
// dd.NewDefaultContext.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	if parent == nil {
		return nil, wrapInitErr(fmt.Errorf("nil context"))
	}
	job := opts.JobName
	if job == "" {
		job = metrics.DefaultJobName
	}
	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, resolveEnvTag(), "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}
	submitter := opts.submitter
	if submitter == nil {
		submitter = datadogV2.NewMetricsApi(dd.NewAPIClient(dd.NewConfiguration()))
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		baseTags:   baseTags,
		now:        nowFn,
		newTicker:  newTicker,
		buf:        newWindow(),
	}
	go b.loop()
	return b, nil
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the flush loop and submits whatever is still buffered. Only
// the first call flushes.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.stopCh)
		<-b.doneCh
		err = b.Flush()
	})
	return err
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case metrics.StepTotal:
		b.buf.steps[stepStatusKey(labels[metrics.LabelStep], labels[metrics.LabelStatus])] += delta
	case metrics.RecordsTotal:
		if kind := labels[metrics.LabelRecordKind]; kind != "" {
			b.buf.records[kind] += delta
		}
	case metrics.IssuesTotal:
		cat := labels[metrics.LabelCategory]
		if cat == "" {
			cat = "unknown"
		}
		b.buf.issues[cat] += delta
	case metrics.BatchesTotal:
		b.buf.tables += delta
	}
}

// ObserveHistogram implements metrics.Backend. Only step durations are kept.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 || name != metrics.StepDuration {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	k := stepStatusKey(labels[metrics.LabelStep], labels[metrics.LabelStatus])
	b.buf.durations[k] = append(b.buf.durations[k], value)
}

func (b *Backend) snapshotAndReset() window {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.buf
	b.buf = newWindow()
	return s
}

// Flush submits buffered metrics and resets the buffers, even when the
// submission fails. It returns nil when there is nothing to submit.
func (b *Backend) Flush() error {
	snap := b.snapshotAndReset()
	if snap.isEmpty() {
		return nil
	}

	payload := datadogV2.MetricPayload{Series: b.buildSeries(snap, b.now().Unix())}
	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	if err != nil {
		return fmt.Errorf("datadog submit: %w", err)
	}
	return nil
}

// buildSeries converts a window into Datadog series at one timestamp. Output
// is sorted by metric name then tags so payloads are deterministic.
func (b *Backend) buildSeries(s window, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, len(s.steps)+len(s.records)+len(s.issues)+6*len(s.durations)+1)

	for k, v := range s.steps {
		step, status := splitStepStatusKey(k)
		series = append(series, countSeries(seriesStep, v, withTags(b.baseTags, "step:"+step, "status:"+status), nowUnix))
	}
	for kind, v := range s.records {
		series = append(series, countSeries(seriesRecords, v, withTags(b.baseTags, "kind:"+kind), nowUnix))
	}
	for cat, v := range s.issues {
		series = append(series, countSeries(seriesIssues, v, withTags(b.baseTags, "category:"+cat), nowUnix))
	}
	if s.tables != 0 {
		series = append(series, countSeries(seriesTables, s.tables, b.baseTags, nowUnix))
	}
	for k, samples := range s.durations {
		step, status := splitStepStatusKey(k)
		addPercentiles(&series, withTags(b.baseTags, "step:"+step, "status:"+status), seriesDuration, samples, nowUnix)
	}

	sort.SliceStable(series, func(i, j int) bool {
		if series[i].Metric != series[j].Metric {
			return series[i].Metric < series[j].Metric
		}
		return strings.Join(series[i].Tags, ",") < strings.Join(series[j].Tags, ",")
	})
	return series
}

// addPercentiles appends p50/p90/p95/p99/max/samples gauges for samples.
// samples is not modified.
func addPercentiles(series *[]datadogV2.MetricSeries, tags []string, prefix string, samples []float64, nowUnix int64) {
	if len(samples) == 0 {
		return
	}
	cp := append([]float64(nil), samples...)
	sort.Float64s(cp)

	*series = append(*series,
		gaugeSeries(prefix+".p50", percentileNearestRank(cp, 0.50), tags, nowUnix),
		gaugeSeries(prefix+".p90", percentileNearestRank(cp, 0.90), tags, nowUnix),
		gaugeSeries(prefix+".p95", percentileNearestRank(cp, 0.95), tags, nowUnix),
		gaugeSeries(prefix+".p99", percentileNearestRank(cp, 0.99), tags, nowUnix),
		gaugeSeries(prefix+".max", cp[len(cp)-1], tags, nowUnix),
		gaugeSeries(prefix+".samples", float64(len(cp)), tags, nowUnix),
	)
}

func countSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return point(metric, datadogV2.METRICINTAKETYPE_COUNT, value, tags, nowUnix)
}

func gaugeSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return point(metric, datadogV2.METRICINTAKETYPE_GAUGE, value, tags, nowUnix)
}

func point(metric string, typ datadogV2.MetricIntakeType, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   typ.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func stepStatusKey(step, status string) string {
	return step + "\x00" + status
}

func splitStepStatusKey(k string) (step, status string) {
	parts := strings.SplitN(k, "\x00", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return k, "unknown"
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	return append(out, extras...)
}

// percentileNearestRank expects s sorted ascending.
func percentileNearestRank(s []float64, p float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return s[0]
	}
	if p >= 1 {
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	return s[min(max(idx, 0), n-1)]
}

var (
	_ metrics.Backend = (*Backend)(nil)
	_ metrics.Flusher = (*Backend)(nil)
)

// ParseTagsCSV parses comma-separated tags like "env:prod,team:bi".
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func wrapInitErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("datadog metrics init: %w", err)
}
