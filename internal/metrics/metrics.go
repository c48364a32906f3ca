// Package metrics defines the small backend interface the cleaner reports
// through, plus the metric names it emits.
//
// The engine only depends on Backend. Concrete exporters (see
// metrics/datadog) live in subpackages so the core never imports a vendor SDK.
package metrics

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Metric names. Labels are listed next to each.
const (
	// FilesTotal counts processed files. Labels: status (ok|failed), reason.
	FilesTotal = "datacleaner_files_total"
	// RowsTotal counts rows. Labels: kind (in|out).
	RowsTotal = "datacleaner_rows_total"
	// DiagnosticsTotal counts recovered failures. Labels: code.
	DiagnosticsTotal = "datacleaner_diagnostics_total"
	// StageDurationSeconds observes per-stage wall time. Labels: stage, status.
	StageDurationSeconds = "datacleaner_stage_duration_seconds"
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives counters and histogram observations. Implementations must
// be safe for concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}
func (Nop) Flush() error                             { return nil }

// ObserveStage records the duration since start for a stage.
func ObserveStage(b Backend, stage string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	b.ObserveHistogram(StageDurationSeconds, time.Since(start).Seconds(), Labels{"stage": stage, "status": status})
}

// Memory is an in-process Backend that keeps totals. It backs the CLI's
// end-of-run summary and tests.
type Memory struct {
	mu       sync.Mutex
	counters map[string]float64
	samples  map[string][]float64
}

// NewMemory returns an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{counters: map[string]float64{}, samples: map[string][]float64{}}
}

func (m *Memory) IncCounter(name string, delta float64, labels Labels) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[Key(name, labels)] += delta
}

func (m *Memory) ObserveHistogram(name string, value float64, labels Labels) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := Key(name, labels)
	m.samples[k] = append(m.samples[k], value)
}

func (m *Memory) Flush() error { return nil }

// Counter returns the total for name with exactly labels.
func (m *Memory) Counter(name string, labels Labels) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[Key(name, labels)]
}

// Samples returns a copy of the observations for name with exactly labels.
func (m *Memory) Samples(name string, labels Labels) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.samples[Key(name, labels)]...)
}

// Key renders name{k=v,...} with labels in sorted order.
func Key(name string, labels Labels) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	b.WriteByte('}')
	return b.String()
}

// Fanout sends every call to all backends. Flush returns the first error.
type Fanout []Backend

func (f Fanout) IncCounter(name string, delta float64, labels Labels) {
	for _, b := range f {
		b.IncCounter(name, delta, labels)
	}
}

func (f Fanout) ObserveHistogram(name string, value float64, labels Labels) {
	for _, b := range f {
		b.ObserveHistogram(name, value, labels)
	}
}

func (f Fanout) Flush() error {
	var first error
	for _, b := range f {
		if err := b.Flush(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
