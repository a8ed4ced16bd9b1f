// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package. The ETL is a batch job with no scrape endpoint, so metrics
// are collected in a private registry and pushed on Flush.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"ouvidoria/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string
	jobName    string // Pushgateway "job" grouping key
	reg        *prometheus.Registry

	stepCounter   *prometheus.CounterVec // step, status
	stepDuration  *prometheus.SummaryVec // step, status
	recordCounter *prometheus.CounterVec // kind
	fileCounter   *prometheus.CounterVec // outcome
	readCounter   *prometheus.CounterVec // outcome
}

// NewBackend constructs a Pushgateway backend. An empty jobName defaults to
// "ouvidoria".
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "ouvidoria"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Pipeline step executions by step and status.",
		}, []string{"step", "status"}),
		stepDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Pipeline step duration in seconds by step and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"step", "status"}),
		recordCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Row counts by kind (read, kept, dropped_no_date, written, mirrored).",
		}, []string{"kind"}),
		fileCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.FilesTotal,
			Help: "Input files by outcome.",
		}, []string{"outcome"}),
		readCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.ReadsTotal,
			Help: "Filtered artifact reads by outcome.",
		}, []string{"outcome"}),
	}

	for name, c := range map[string]prometheus.Collector{
		"step counter":   b.stepCounter,
		"step summary":   b.stepDuration,
		"record counter": b.recordCounter,
		"file counter":   b.fileCounter,
		"read counter":   b.readCounter,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter != nil {
			b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
		}
	case metrics.RecordsTotal:
		if b.recordCounter != nil {
			b.recordCounter.WithLabelValues(labels["kind"]).Add(delta)
		}
	case metrics.FilesTotal:
		if b.fileCounter != nil {
			b.fileCounter.WithLabelValues(labels["outcome"]).Add(delta)
		}
	case metrics.ReadsTotal:
		if b.readCounter != nil {
			b.readCounter.WithLabelValues(labels["outcome"]).Add(delta)
		}
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDuration || b.stepDuration == nil {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the registry to the Pushgateway, replacing the job's group.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).Gatherer(b.reg).Push()
}
