package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"warehouse/internal/metrics"
	"warehouse/internal/metrics/datadog"
	"warehouse/internal/metrics/prompush"
)

const defaultPushgatewayURL = "http://localhost:9091"

type metricsSettings struct {
	backend string
	gateway string
	job     string
}

// setupMetrics installs the selected metrics backend: flag, then env
// METRICS_BACKEND, then none. A backend that fails to initialize is logged
// and the run continues without metrics. The returned func flushes and
// uninstalls the backend.
func setupMetrics(ctx context.Context, s metricsSettings, log zerolog.Logger) (func(), error) {
	name := s.backend
	if name == "" {
		name = os.Getenv("METRICS_BACKEND")
	}
	job := s.job
	if job == "" {
		job = metrics.DefaultJobName
	}
	nop := func() {}

	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		log.Debug().Msgf("metrics: disabled (backend=%q)", name)
		return nop, nil

	case "pushgateway":
		url := firstNonEmpty(s.gateway, os.Getenv("PUSHGATEWAY_URL"), defaultPushgatewayURL)
		b, err := prompush.NewBackend(job, url)
		if err != nil {
			log.Warn().Err(err).Msg("metrics: failed to init pushgateway backend; using nop")
			return nop, nil
		}
		log.Info().Msgf("metrics: backend=pushgateway url=%s job_name=%s", url, job)
		metrics.SetBackend(b)
		return func() {
			if err := metrics.Flush(); err != nil {
				log.Warn().Err(err).Msg("metrics: flush error")
			}
			metrics.SetBackend(nil)
		}, nil

	case "datadog":
		tags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    job,
			Tags:       tags,
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			log.Warn().Err(err).Msg("metrics: failed to init datadog backend; using nop")
			return nop, nil
		}
		log.Info().Msgf("metrics: backend=datadog job_name=%s tags=%v", job, tags)
		metrics.SetBackend(b)
		return func() {
			if err := b.Close(); err != nil {
				log.Warn().Err(err).Msg("metrics: datadog close/flush error")
			}
			metrics.SetBackend(nil)
		}, nil

	default:
		return nil, fmt.Errorf("metrics: unknown backend %q (pushgateway, datadog, none)", name)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
