// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a deterministic Clock pinned to initial. Time moves
// only when Advance is called; waiters registered through After,
// NewTicker, or Sleep fire when the clock passes their deadline.
//
// FakeClock is safe for concurrent use.
func Fake(initial time.Time) *FakeClock {
	fake := &FakeClock{now: initial}
	fake.registered = sync.NewCond(&fake.mu)
	return fake
}

// FakeClock is the test implementation of [Clock].
type FakeClock struct {
	mu         sync.Mutex
	now        time.Time
	pending    []*pendingWait
	registered *sync.Cond
}

type pendingWait struct {
	deadline time.Time
	ch       chan time.Time
	// period is non-zero for tickers; the wait is rescheduled at
	// deadline+period after firing instead of being removed.
	period  time.Duration
	stopped bool
}

// Now returns the current fake time.
func (fake *FakeClock) Now() time.Time {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	return fake.now
}

// After registers a one-shot waiter. A non-positive d delivers the
// current time immediately.
func (fake *FakeClock) After(d time.Duration) <-chan time.Time {
	fake.mu.Lock()
	defer fake.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- fake.now
		return ch
	}
	fake.pending = append(fake.pending, &pendingWait{
		deadline: fake.now.Add(d),
		ch:       ch,
	})
	fake.registered.Broadcast()
	return ch
}

// NewTicker registers a periodic waiter. Panics if d <= 0.
func (fake *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive ticker interval")
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()

	wait := &pendingWait{
		deadline: fake.now.Add(d),
		ch:       make(chan time.Time, 1),
		period:   d,
	}
	fake.pending = append(fake.pending, wait)
	fake.registered.Broadcast()

	return &Ticker{
		C: wait.ch,
		stop: func() {
			fake.mu.Lock()
			defer fake.mu.Unlock()
			wait.stopped = true
		},
	}
}

// Sleep blocks until the clock advances past d.
func (fake *FakeClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	<-fake.After(d)
}

// Advance moves the clock forward by d, firing expired waiters in
// deadline order. Tick sends are non-blocking: if a ticker's channel
// is full the tick is dropped, matching time.Ticker.
func (fake *FakeClock) Advance(d time.Duration) {
	fake.mu.Lock()
	fake.now = fake.now.Add(d)
	target := fake.now
	fake.mu.Unlock()

	for {
		expired := fake.takeExpired(target)
		if len(expired) == 0 {
			return
		}
		sort.Slice(expired, func(i, j int) bool {
			return expired[i].deadline.Before(expired[j].deadline)
		})
		for _, wait := range expired {
			select {
			case wait.ch <- target:
			default:
			}
		}
	}
}

// takeExpired removes expired waits from the pending list and returns
// them. Tickers are rescheduled for their next period.
func (fake *FakeClock) takeExpired(target time.Time) []*pendingWait {
	fake.mu.Lock()
	defer fake.mu.Unlock()

	var expired, keep []*pendingWait
	for _, wait := range fake.pending {
		if wait.stopped {
			continue
		}
		if wait.deadline.After(target) {
			keep = append(keep, wait)
			continue
		}
		expired = append(expired, wait)
		if wait.period > 0 {
			wait.deadline = wait.deadline.Add(wait.period)
			keep = append(keep, wait)
		}
	}
	fake.pending = keep
	return expired
}

// WaitForWaiters blocks until at least n waiters are registered. This
// removes the race between a goroutine reaching its After/Sleep call
// and the test advancing the clock.
func (fake *FakeClock) WaitForWaiters(n int) {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	for fake.activeLocked() < n {
		fake.registered.Wait()
	}
}

func (fake *FakeClock) activeLocked() int {
	count := 0
	for _, wait := range fake.pending {
		if !wait.stopped {
			count++
		}
	}
	return count
}
