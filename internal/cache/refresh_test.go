package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingRefresher struct {
	calls    atomic.Int32
	inFlight atomic.Int32
	overlap  atomic.Bool
}

func (c *countingRefresher) Refresh(ctx context.Context) error {
	if c.inFlight.Add(1) > 1 {
		c.overlap.Store(true)
	}
	defer c.inFlight.Add(-1)
	c.calls.Add(1)
	time.Sleep(2 * time.Millisecond)
	return nil
}

func TestAutoRefreshDoesNotStack(t *testing.T) {
	target := &countingRefresher{}
	auto := NewAutoRefresh(10*time.Millisecond, target)

	for range 5 {
		auto.Foreground()
	}
	assert.True(t, auto.Running())

	time.Sleep(105 * time.Millisecond)
	auto.Background()
	assert.False(t, auto.Running())

	calls := target.calls.Load()
	assert.Positive(t, calls)
	assert.LessOrEqual(t, calls, int32(11), "one ticker, not five")
	assert.False(t, target.overlap.Load())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, target.calls.Load(), "stopped in background")
}

func TestAutoRefreshRestartsAfterBackground(t *testing.T) {
	target := &countingRefresher{}
	auto := NewAutoRefresh(5*time.Millisecond, target)
	defer auto.Stop()

	auto.Background()
	auto.Foreground()
	eventually(t, func() bool { return target.calls.Load() > 0 }, "ticks while foregrounded")
	auto.Background()

	n := target.calls.Load()
	auto.Foreground()
	eventually(t, func() bool { return target.calls.Load() > n }, "ticks again after restart")
}

func TestAutoRefreshDefaultsInterval(t *testing.T) {
	auto := NewAutoRefresh(0)
	assert.Equal(t, DefaultRefreshInterval, auto.interval)
}
