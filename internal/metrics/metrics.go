// Package metrics is a small, backend-agnostic layer for operational metrics.
// The default backend is a no-op, so instrumented code is always safe to call
// even when no metrics system is configured. Concrete backends live in
// subpackages (prompush, datadog) and are installed with SetBackend.
package metrics

import (
	"sync"
	"time"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Metric names emitted by this package.
const (
	StepTotal    = "ouvidoria_step_total"
	StepDuration = "ouvidoria_step_duration_seconds"
	RecordsTotal = "ouvidoria_records_total"
	FilesTotal   = "ouvidoria_files_total"
	ReadsTotal   = "ouvidoria_reads_total"
)

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a duration-style value.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes buffered metrics.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// SetBackend installs b. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

// Flush delegates to the current backend.
func Flush() error { return current().Flush() }

// RecordStep counts one execution of a pipeline step and its latency.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "step": step, "status": status}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow increments a row counter. Kinds used by the ETL:
// "read", "kept", "dropped_no_date", "written", "mirrored".
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(delta), Labels{"job": job, "kind": kind})
}

// RecordFile counts one input file by outcome ("ok", "skipped").
func RecordFile(job, outcome string) {
	current().IncCounter(FilesTotal, 1, Labels{"job": job, "outcome": outcome})
}

// RecordRead counts one filtered read by outcome ("ok", "empty", "error").
func RecordRead(outcome string) {
	current().IncCounter(ReadsTotal, 1, Labels{"outcome": outcome})
}
