// SPDX-License-Identifier: GPL-3.0-or-later

// Copyright (c) 2025 Spruce Health

// Package simclock abstracts time for the session store's garbage
// collection and for deterministic flow tests.
package simclock

import (
	"container/heap"
	"sync"
	"time"
)

// Clock provides time operations for deterministic testing
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer represents a cancellable timer
type Timer interface {
	Stop() bool
}

// WallClock uses real time
type WallClock struct{}

// NewWallClock creates a clock that uses real time
func NewWallClock() *WallClock {
	return &WallClock{}
}

func (c *WallClock) Now() time.Time {
	return time.Now()
}

func (c *WallClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

func (c *WallClock) AfterFunc(d time.Duration, f func()) Timer {
	return &wallTimer{timer: time.AfterFunc(d, f)}
}

type wallTimer struct {
	timer *time.Timer
}

func (t *wallTimer) Stop() bool {
	return t.timer.Stop()
}

// FakeClock provides deterministic time control for testing. Time only
// moves when Advance or AdvanceTo is called.
type FakeClock struct {
	mu     sync.RWMutex
	now    time.Time
	timers fakeTimerHeap
}

// NewFakeClock creates a clock with manual time control
func NewFakeClock(start time.Time) *FakeClock {
	if start.IsZero() {
		start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &FakeClock{
		now:    start,
		timers: make(fakeTimerHeap, 0),
	}
}

func (c *FakeClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	c.AfterFunc(d, func() {
		ch <- c.Now()
	})
	return ch
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	ft := &fakeTimer{
		clock:  c,
		fireAt: c.now.Add(d),
		fn:     f,
	}
	heap.Push(&c.timers, ft)
	return ft
}

// Advance moves time forward and fires all timers that come due
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
	c.fireDueTimers()
}

// AdvanceTo sets the current time to a specific point
func (c *FakeClock) AdvanceTo(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t.After(c.now) {
		c.now = t
		c.fireDueTimers()
	}
}

func (c *FakeClock) fireDueTimers() {
	for len(c.timers) > 0 {
		ft := c.timers[0]
		if ft.stopped {
			heap.Pop(&c.timers)
			continue
		}
		if ft.fireAt.After(c.now) {
			break
		}

		ft.fired = true
		heap.Pop(&c.timers)
		if ft.fn != nil {
			// Run the callback without holding the clock lock
			c.mu.Unlock()
			ft.fn()
			c.mu.Lock()
		}
	}
}

type fakeTimer struct {
	clock   *FakeClock
	fireAt  time.Time
	fn      func()
	stopped bool
	fired   bool
	index   int // for heap
}

// Stop is safe to call concurrently with Advance; stopped and fired are
// guarded by the clock mutex.
func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	// Left in the heap; skipped when it comes due
	return true
}

// fakeTimerHeap implements heap.Interface for timers
type fakeTimerHeap []*fakeTimer

func (h fakeTimerHeap) Len() int           { return len(h) }
func (h fakeTimerHeap) Less(i, j int) bool { return h[i].fireAt.Before(h[j].fireAt) }
func (h fakeTimerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *fakeTimerHeap) Push(x any) {
	n := len(*h)
	timer := x.(*fakeTimer)
	timer.index = n
	*h = append(*h, timer)
}

func (h *fakeTimerHeap) Pop() any {
	old := *h
	n := len(old)
	timer := old[n-1]
	old[n-1] = nil
	timer.index = -1
	*h = old[0 : n-1]
	return timer
}
