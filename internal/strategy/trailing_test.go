package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrailingHighWaterMarkMonotonic(t *testing.T) {
	ts := NewTrailingStop(100, 100, 0.04, 0.025)

	prices := []float64{101, 99, 103, 102, 107, 95, 106}
	prevMark := ts.HighWaterMark
	for _, p := range prices {
		ts.Observe(p)
		assert.GreaterOrEqual(t, ts.HighWaterMark, prevMark)
		prevMark = ts.HighWaterMark
	}
	assert.InDelta(t, 107.0, ts.HighWaterMark, 1e-9)
}

func TestTrailingArmsAtActivation(t *testing.T) {
	ts := NewTrailingStop(100, 100, 0.04, 0.025)

	assert.False(t, ts.Armed(102)) // +2% < 4%
	ts.Observe(102)
	assert.False(t, ts.Armed(102))

	ts.Observe(104.5) // +4.5% arms it
	assert.True(t, ts.Armed(104.5))
}

func TestTrailingArmingIsPermanent(t *testing.T) {
	ts := NewTrailingStop(100, 100, 0.04, 0.025)

	ts.Observe(105) // armed via mark
	assert.True(t, ts.Armed(105))

	// Price falls back below the activation level; the mark keeps it armed.
	assert.True(t, ts.Armed(101))
	assert.True(t, ts.Armed(100.5))
}

func TestTrailingTrigger(t *testing.T) {
	ts := NewTrailingStop(100, 100, 0.04, 0.025)

	ts.Observe(110)
	assert.InDelta(t, 107.25, ts.StopPrice(), 1e-9)

	assert.False(t, ts.Triggered(108)) // above trail
	assert.True(t, ts.Triggered(107))  // at/below trail
}

func TestTrailingNotTriggeredWhileUnarmed(t *testing.T) {
	ts := NewTrailingStop(100, 100, 0.04, 0.025)

	ts.Observe(102) // never armed
	assert.False(t, ts.Triggered(99))
	assert.False(t, ts.Triggered(50))
}

func TestTrailingRestoresMarkFromPosition(t *testing.T) {
	// A restarted process rebuilds the tracker from the persisted mark and
	// must still consider the stop armed.
	ts := NewTrailingStop(100, 106, 0.04, 0.025)
	assert.True(t, ts.Armed(101))
	assert.True(t, ts.Triggered(103)) // 106×0.975 = 103.35
}
