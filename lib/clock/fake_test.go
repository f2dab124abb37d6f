// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

func TestFakeNowAdvances(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	fake := Fake(start)

	if got := fake.Now(); !got.Equal(start) {
		t.Errorf("Now() = %v, want %v", got, start)
	}
	fake.Advance(time.Minute)
	if got := fake.Now(); !got.Equal(start.Add(time.Minute)) {
		t.Errorf("Now() after Advance = %v, want %v", got, start.Add(time.Minute))
	}
}

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	t.Parallel()
	fake := Fake(time.Unix(0, 0))
	ch := fake.After(time.Second)

	select {
	case <-ch:
		t.Fatal("After fired before Advance")
	default:
	}

	fake.Advance(time.Second)
	select {
	case <-ch:
	default:
		t.Fatal("After did not fire after Advance")
	}
}

func TestFakeAfterNonPositive(t *testing.T) {
	t.Parallel()
	fake := Fake(time.Unix(0, 0))
	select {
	case <-fake.After(0):
	default:
		t.Fatal("After(0) should deliver immediately")
	}
}

func TestFakeTickerFiresPerPeriod(t *testing.T) {
	t.Parallel()
	fake := Fake(time.Unix(0, 0))
	ticker := fake.NewTicker(time.Second)
	defer ticker.Stop()

	fake.Advance(time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("ticker did not fire on first period")
	}

	fake.Advance(time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("ticker did not fire on second period")
	}
}

func TestFakeTickerStopped(t *testing.T) {
	t.Parallel()
	fake := Fake(time.Unix(0, 0))
	ticker := fake.NewTicker(time.Second)
	ticker.Stop()

	fake.Advance(5 * time.Second)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestFakeWaitForWaiters(t *testing.T) {
	t.Parallel()
	fake := Fake(time.Unix(0, 0))
	done := make(chan struct{})
	go func() {
		fake.Sleep(time.Hour)
		close(done)
	}()

	fake.WaitForWaiters(1)
	fake.Advance(time.Hour)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Sleep did not return after Advance")
	}
}
