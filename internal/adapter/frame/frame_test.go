package frame

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejashwikalptaru/beatify/internal/logger"
	"github.com/tejashwikalptaru/beatify/internal/ports"
	"github.com/tejashwikalptaru/beatify/internal/testutil"
)

func TestManualStepRunsPendingOnce(t *testing.T) {
	m := NewManualScheduler()
	var calls int
	m.RequestFrame(func(time.Time) { calls++ })
	m.RequestFrame(func(time.Time) { calls++ })

	assert.Equal(t, 2, m.Pending())
	assert.Equal(t, 2, m.Step(time.Now()))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, m.Step(time.Now()))
}

func TestManualRequestDuringStepRunsNextFrame(t *testing.T) {
	m := NewManualScheduler()
	var ticks []time.Time
	var loop ports.FrameCallback
	loop = func(now time.Time) {
		ticks = append(ticks, now)
		m.RequestFrame(loop)
	}
	m.RequestFrame(loop)

	base := time.Unix(100, 0)
	for i := range 3 {
		assert.Equal(t, 1, m.Step(base.Add(time.Duration(i)*time.Second)))
	}
	require.Len(t, ticks, 3)
	assert.Equal(t, base.Add(2*time.Second), ticks[2])
	assert.Equal(t, 1, m.Pending())
}

func TestManualCancel(t *testing.T) {
	m := NewManualScheduler()
	var ran bool
	h := m.RequestFrame(func(time.Time) { ran = true })
	m.CancelFrame(h)
	m.CancelFrame(h)
	m.CancelFrame(12345)

	assert.Equal(t, 0, m.Step(time.Now()))
	assert.False(t, ran)
}

func TestManualCancelWithinBatch(t *testing.T) {
	m := NewManualScheduler()
	var second ports.FrameHandle
	var ran bool
	m.RequestFrame(func(time.Time) { m.CancelFrame(second) })
	second = m.RequestFrame(func(time.Time) { ran = true })

	assert.Equal(t, 1, m.Step(time.Now()))
	assert.False(t, ran)
}

func TestManualNilCallback(t *testing.T) {
	m := NewManualScheduler()
	h1 := m.RequestFrame(nil)
	h2 := m.RequestFrame(func(time.Time) {})

	assert.NotEqual(t, h1, h2)
	assert.Equal(t, 1, m.Pending())
}

func TestTickerRunsSelfReschedulingLoop(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	s := NewTickerScheduler(240, logger.NewTestLogger())
	defer s.Close()

	var count atomic.Int32
	var loop ports.FrameCallback
	loop = func(time.Time) {
		count.Add(1)
		s.RequestFrame(loop)
	}
	s.RequestFrame(loop)

	require.Eventually(t, func() bool { return count.Load() >= 5 }, 2*time.Second, time.Millisecond)
}

func TestTickerCancelAndSetFPS(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	s := NewTickerScheduler(0, logger.NewTestLogger())
	defer s.Close()

	var cancelled atomic.Bool
	h := s.RequestFrame(func(time.Time) { cancelled.Store(true) })
	s.CancelFrame(h)

	s.SetFPS(500)
	s.SetFPS(-1)
	s.SetFPS(500)

	var ran atomic.Bool
	s.RequestFrame(func(time.Time) { ran.Store(true) })
	require.Eventually(t, ran.Load, time.Second, time.Millisecond)
	assert.False(t, cancelled.Load())
}

func TestTickerCloseIsIdempotent(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	s := NewTickerScheduler(60, logger.NewTestLogger())
	s.Close()
	s.Close()
	s.SetFPS(30)
}
