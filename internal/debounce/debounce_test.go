// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package debounce

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestSchedulerCoalescesBurst(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	var mu sync.Mutex
	state := 0
	seen := 0

	s := New(50*time.Millisecond, func() {
		runs.Add(1)
		mu.Lock()
		seen = state
		mu.Unlock()
	})

	for i := 1; i <= 10; i++ {
		mu.Lock()
		state = i
		mu.Unlock()
		s.Schedule()
		time.Sleep(5 * time.Millisecond)
	}

	waitFor(t, time.Second, func() bool { return runs.Load() == 1 })
	time.Sleep(100 * time.Millisecond)

	if got := runs.Load(); got != 1 {
		t.Errorf("runs = %d, want 1", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if seen != 10 {
		t.Errorf("action saw state %d, want the final state 10", seen)
	}
	if s.Pending() {
		t.Error("Pending() after fire = true")
	}
}

func TestSchedulerSeparateWindows(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	s := New(20*time.Millisecond, func() { runs.Add(1) })

	s.Schedule()
	waitFor(t, time.Second, func() bool { return runs.Load() == 1 })
	s.Schedule()
	waitFor(t, time.Second, func() bool { return runs.Load() == 2 })
}

func TestSchedulerFlush(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	s := New(time.Hour, func() { runs.Add(1) })

	if s.Flush() {
		t.Error("Flush() with nothing pending = true")
	}

	s.Schedule()
	if !s.Flush() {
		t.Error("Flush() with pending action = false")
	}
	if runs.Load() != 1 {
		t.Errorf("runs after Flush = %d, want 1", runs.Load())
	}
	if s.Pending() {
		t.Error("Pending() after Flush = true")
	}
}

func TestSchedulerCancel(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	s := New(20*time.Millisecond, func() { runs.Add(1) })

	s.Schedule()
	if !s.Cancel() {
		t.Error("Cancel() = false with pending action")
	}
	time.Sleep(60 * time.Millisecond)
	if runs.Load() != 0 {
		t.Errorf("runs after Cancel = %d, want 0", runs.Load())
	}
	if s.Cancel() {
		t.Error("second Cancel() = true")
	}
}
