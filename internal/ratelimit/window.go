// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ratelimit provides a sliding-window admission limiter for upstream
// services that quote their limits per time window (e.g. requests per
// minute) rather than per second.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Window admits at most max calls within any sliding width interval. Wait
// blocks the calling goroutine until admission is possible. Safe for
// concurrent use; the timestamp record is protected by a mutex.
type Window struct {
	mu     sync.Mutex
	max    int
	width  time.Duration
	stamps []time.Time

	// now and sleep are injectable for tests with a simulated clock.
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewWindow returns a limiter admitting at most max calls per width.
func NewWindow(max int, width time.Duration) *Window {
	if max < 1 {
		max = 1
	}
	if width <= 0 {
		width = time.Second
	}
	return &Window{
		max:   max,
		width: width,
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// Wait blocks until the caller may proceed, then records the admission.
// It returns early with ctx.Err() if the context is cancelled while waiting.
func (w *Window) Wait(ctx context.Context) error {
	for {
		w.mu.Lock()
		now := w.now()
		w.evict(now)
		if len(w.stamps) < w.max {
			w.stamps = append(w.stamps, now)
			w.mu.Unlock()
			return nil
		}
		wait := w.width - now.Sub(w.stamps[0])
		w.mu.Unlock()

		if wait <= 0 {
			continue
		}
		if err := w.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// evict drops timestamps older than the window. Caller holds the lock.
func (w *Window) evict(now time.Time) {
	cut := 0
	for cut < len(w.stamps) && now.Sub(w.stamps[cut]) >= w.width {
		cut++
	}
	if cut > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[cut:]...)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
