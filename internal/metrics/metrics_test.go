package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKey_SortedLabels(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "m", Key("m", nil))
	assert.Equal(t, "m{a=1,b=2}", Key("m", Labels{"b": "2", "a": "1"}))
}

func TestMemory(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	m.IncCounter(FilesTotal, 1, Labels{"status": "ok"})
	m.IncCounter(FilesTotal, 2, Labels{"status": "ok"})
	m.ObserveHistogram(StageDurationSeconds, 0.5, Labels{"stage": "segment", "status": "ok"})

	assert.Equal(t, 3.0, m.Counter(FilesTotal, Labels{"status": "ok"}))
	assert.Equal(t, 0.0, m.Counter(FilesTotal, Labels{"status": "failed"}))
	assert.Equal(t, []float64{0.5}, m.Samples(StageDurationSeconds, Labels{"stage": "segment", "status": "ok"}))
}

type failingBackend struct{ Nop }

func (failingBackend) Flush() error { return errors.New("down") }

func TestFanoutAndObserveStage(t *testing.T) {
	t.Parallel()

	a, b := NewMemory(), NewMemory()
	f := Fanout{a, b, failingBackend{}}
	f.IncCounter(RowsTotal, 5, Labels{"kind": "out"})
	ObserveStage(f, "project", time.Now(), errors.New("x"))

	assert.Equal(t, 5.0, a.Counter(RowsTotal, Labels{"kind": "out"}))
	assert.Equal(t, 5.0, b.Counter(RowsTotal, Labels{"kind": "out"}))
	assert.Len(t, b.Samples(StageDurationSeconds, Labels{"stage": "project", "status": "error"}), 1)
	assert.EqualError(t, f.Flush(), "down")
}
