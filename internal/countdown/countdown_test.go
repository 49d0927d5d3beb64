package countdown

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockClock() *clock.Mock {
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	return mock
}

func TestFormatHMS(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{seconds: 65, want: "00:01:05"},
		{seconds: 3661, want: "01:01:01"},
		{seconds: 0, want: "00:00:00"},
		{seconds: -4, want: "00:00:00"},
		{seconds: 59, want: "00:00:59"},
		{seconds: 36000, want: "10:00:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatHMS(tt.seconds), "FormatHMS(%d)", tt.seconds)
	}
}

func TestNilTargetNeverFires(t *testing.T) {
	mock := newMockClock()
	var fired atomic.Int32
	c := New(mock, nil, WithOnTimeUp(func() { fired.Add(1) }))

	c.Start(context.Background())
	defer c.Stop()
	mock.Add(10 * time.Second)

	snap := c.Tick()
	assert.False(t, snap.Active)
	assert.False(t, c.IsTimeUp())
	assert.Equal(t, "00:00:00", c.Formatted())
	assert.False(t, c.Running())
	assert.Zero(t, fired.Load())
}

func TestStartComputesImmediately(t *testing.T) {
	mock := newMockClock()
	target := mock.Now().Add(90 * time.Second)
	c := New(mock, &target)

	c.Start(context.Background())
	defer c.Stop()

	assert.Equal(t, 90, c.Remaining())
	assert.Equal(t, "00:01:30", c.Formatted())
}

func TestRemainingIsFlooredAndMonotonic(t *testing.T) {
	mock := newMockClock()
	target := mock.Now().Add(3*time.Second + 500*time.Millisecond)
	var timeUps atomic.Int32
	c := New(mock, &target, WithOnTimeUp(func() { timeUps.Add(1) }))

	previous := c.Tick().Remaining
	assert.Equal(t, 3, previous)

	for step := 0; step < 6; step++ {
		mock.Set(mock.Now().Add(time.Second))
		snap := c.Tick()
		assert.LessOrEqual(t, snap.Remaining, previous)
		previous = snap.Remaining
		if snap.TimeUp {
			assert.Zero(t, snap.Remaining)
		}
	}

	assert.True(t, c.IsTimeUp())
	assert.Equal(t, int32(1), timeUps.Load())
}

func TestTimeUpLatches(t *testing.T) {
	mock := newMockClock()
	target := mock.Now().Add(time.Second)
	c := New(mock, &target)

	mock.Set(target)
	require.True(t, c.Tick().TimeUp)

	// Moving the clock backwards does not revive an expired countdown.
	mock.Set(target.Add(-time.Hour))
	snap := c.Tick()
	assert.True(t, snap.TimeUp)
	assert.Equal(t, "00:00:00", snap.Formatted())
}

func TestPastTargetIsTimeUpOnStart(t *testing.T) {
	mock := newMockClock()
	target := mock.Now().Add(-time.Minute)
	var fired atomic.Int32
	c := New(mock, &target, WithOnTimeUp(func() { fired.Add(1) }))

	c.Start(context.Background())
	defer c.Stop()

	assert.True(t, c.IsTimeUp())
	assert.Equal(t, int32(1), fired.Load())
}

func TestLoopTicksEverySecond(t *testing.T) {
	mock := newMockClock()
	target := mock.Now().Add(3 * time.Second)
	ticks := make(chan Snapshot, 16)
	c := New(mock, &target, WithOnTick(func(s Snapshot) { ticks <- s }))

	c.Start(context.Background())
	defer c.Stop()

	first := <-ticks
	assert.Equal(t, 3, first.Remaining)

	for want := 2; want >= 0; want-- {
		mock.Add(time.Second)
		select {
		case snap := <-ticks:
			if want == 0 {
				assert.True(t, snap.TimeUp)
			} else {
				assert.Equal(t, want, snap.Remaining)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("expected tick for remaining=%d", want)
		}
	}
}

func TestStopCancelsTicking(t *testing.T) {
	mock := newMockClock()
	target := mock.Now().Add(time.Hour)
	var ticks atomic.Int32
	c := New(mock, &target, WithOnTick(func(Snapshot) { ticks.Add(1) }))

	c.Start(context.Background())
	require.Equal(t, int32(1), ticks.Load())
	c.Stop()
	c.Stop()

	for i := 0; i < 5; i++ {
		mock.Add(time.Second)
	}
	assert.Equal(t, int32(1), ticks.Load())
	assert.False(t, c.Running())
}

func TestContextCancellationStopsLoop(t *testing.T) {
	mock := newMockClock()
	target := mock.Now().Add(time.Hour)
	var ticks atomic.Int32
	c := New(mock, &target, WithOnTick(func(Snapshot) { ticks.Add(1) }))

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	cancel()
	// give the loop a moment to observe cancellation
	time.Sleep(10 * time.Millisecond)

	for i := 0; i < 3; i++ {
		mock.Add(time.Second)
	}
	assert.Equal(t, int32(1), ticks.Load())
}

func TestSetTargetRestartsAndResetsLatch(t *testing.T) {
	mock := newMockClock()
	target := mock.Now()
	var fired atomic.Int32
	c := New(mock, &target, WithOnTimeUp(func() { fired.Add(1) }))

	c.Start(context.Background())
	defer c.Stop()
	require.True(t, c.IsTimeUp())

	next := mock.Now().Add(65 * time.Second)
	c.SetTarget(&next)

	assert.False(t, c.IsTimeUp())
	assert.Equal(t, "00:01:05", c.Formatted())
	assert.True(t, c.Running())

	c.SetTarget(nil)
	assert.False(t, c.Running())
	assert.Equal(t, int32(1), fired.Load())
}

func TestOffsetShiftsClock(t *testing.T) {
	mock := newMockClock()
	target := mock.Now().Add(60 * time.Second)
	c := New(mock, &target, WithOffset(15*time.Second))

	assert.Equal(t, 45, c.Tick().Remaining)
}
