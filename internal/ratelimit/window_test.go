// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives a Window with simulated time: sleeping advances the clock
// instead of blocking.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_000_000, 0)}
}

func (c *fakeClock) install(w *Window) {
	w.now = func() time.Time { return c.t }
	w.sleep = func(_ context.Context, d time.Duration) error {
		c.t = c.t.Add(d)
		return nil
	}
}

func TestWindowAdmitsUpToCapacityImmediately(t *testing.T) {
	clock := newFakeClock()
	w := NewWindow(3, time.Minute)
	clock.install(w)

	start := clock.t
	for i := 0; i < 3; i++ {
		require.NoError(t, w.Wait(context.Background()))
	}
	assert.Equal(t, start, clock.t, "first K admissions must not sleep")
}

// TestWindowSlidingProperty issues N calls with capacity K over window W and
// verifies no sliding W interval ever contains more than K admissions.
func TestWindowSlidingProperty(t *testing.T) {
	const (
		n = 25
		k = 4
	)
	window := 60 * time.Second

	clock := newFakeClock()
	w := NewWindow(k, window)
	clock.install(w)

	stamps := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		require.NoError(t, w.Wait(context.Background()))
		stamps = append(stamps, clock.t)
		// Simulated work between calls, much shorter than the window.
		clock.t = clock.t.Add(250 * time.Millisecond)
	}

	for i := range stamps {
		inWindow := 0
		for j := i; j < len(stamps); j++ {
			if stamps[j].Sub(stamps[i]) < window {
				inWindow++
			}
		}
		assert.LessOrEqualf(t, inWindow, k, "window starting at admission %d holds %d calls", i, inWindow)
	}
}

func TestWindowEvictsExpiredStamps(t *testing.T) {
	clock := newFakeClock()
	w := NewWindow(2, 10*time.Second)
	clock.install(w)

	require.NoError(t, w.Wait(context.Background()))
	require.NoError(t, w.Wait(context.Background()))

	// Move past the window: capacity is free again, no sleeping needed.
	clock.t = clock.t.Add(11 * time.Second)
	before := clock.t
	require.NoError(t, w.Wait(context.Background()))
	assert.Equal(t, before, clock.t)
}

func TestWindowWaitHonorsCancellation(t *testing.T) {
	w := NewWindow(1, time.Hour)
	require.NoError(t, w.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := w.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
