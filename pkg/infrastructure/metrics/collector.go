// Package metrics provides metrics collection for the quill engine.
package metrics

import (
	"time"
)

// Collector defines the interface for collecting metrics. Labels are
// variadic key/value pairs: "dataset", "sales", "stage", "list".
type Collector interface {
	// IncrementCounter increments a counter metric.
	IncrementCounter(name string, labels ...string)

	// RecordHistogram records a value in a histogram metric.
	RecordHistogram(name string, value float64, labels ...string)

	// RecordGauge records a gauge metric value.
	RecordGauge(name string, value float64, labels ...string)

	// StartTimer starts a timer whose Stop records the duration.
	StartTimer(name string) Timer
}

// Timer represents a timing measurement.
type Timer interface {
	// Stop stops the timer and returns the duration in seconds.
	Stop() float64
}

// NoOpCollector discards every metric.
type NoOpCollector struct{}

// NewNoOpCollector creates a new no-op collector.
func NewNoOpCollector() Collector {
	return &NoOpCollector{}
}

func (n *NoOpCollector) IncrementCounter(name string, labels ...string)                {}
func (n *NoOpCollector) RecordHistogram(name string, value float64, labels ...string) {}
func (n *NoOpCollector) RecordGauge(name string, value float64, labels ...string)     {}

// StartTimer returns a timer that measures but records nothing.
func (n *NoOpCollector) StartTimer(name string) Timer {
	return &noOpTimer{start: time.Now()}
}

type noOpTimer struct {
	start time.Time
}

func (t *noOpTimer) Stop() float64 {
	return time.Since(t.start).Seconds()
}
