package obs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoopMetrics_DoesNotPanic(t *testing.T) {
	var m NoopMetrics
	assert.NotPanics(t, func() {
		m.IncCounter("search.requests", map[string]string{"route": "find"})
		m.ObserveHistogram("search.latency_ms", 12.5, nil)
	})
}

func TestStageMS_ConvertsDurationToMilliseconds(t *testing.T) {
	assert.Equal(t, 1500.0, StageMS(1500*time.Millisecond))
	assert.Equal(t, 1000.0, StageMS(1*time.Second))
}

func TestOtelMetrics_CachesInstrumentsByName(t *testing.T) {
	m := NewOtelMetrics()
	assert.NotPanics(t, func() {
		m.IncCounter("search.requests", map[string]string{"route": "find"})
		m.IncCounter("search.requests", map[string]string{"route": "search"})
		m.ObserveHistogram("search.latency_ms", 5, map[string]string{"stage": "embed"})
	})

	_, ok := m.getCounter("search.requests")
	assert.True(t, ok)
	_, ok = m.getHistogram("search.latency_ms")
	assert.True(t, ok)
}

func TestOtelMetrics_NilReceiverIsSafe(t *testing.T) {
	var m *OtelMetrics
	assert.NotPanics(t, func() {
		m.IncCounter("x", nil)
		m.ObserveHistogram("y", 1, nil)
	})
}

func TestSystemClock_ReturnsCurrentTime(t *testing.T) {
	before := time.Now()
	now := SystemClock{}.Now()
	after := time.Now()
	assert.True(t, !now.Before(before) && !now.After(after))
}
