// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

// Package debounce coalesces bursts of change notifications into a single
// action that runs once the changes have been quiet for a fixed window.
package debounce

import (
	"sync"
	"time"
)

// Scheduler runs an action after the quiet period following the last call to
// Schedule. The action reads current state when it fires, so a burst of N
// changes inside the window produces one run that sees all N.
type Scheduler struct {
	mu      sync.Mutex
	quiet   time.Duration
	action  func()
	timer   *time.Timer
	gen     uint64
	pending bool
	running sync.Mutex
}

// New creates a Scheduler. quiet <= 0 runs the action on the next tick.
func New(quiet time.Duration, action func()) *Scheduler {
	return &Scheduler{quiet: quiet, action: action}
}

// Schedule (re)starts the quiet window.
func (s *Scheduler) Schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	s.pending = true
	gen := s.gen
	s.timer = time.AfterFunc(s.quiet, func() { s.fire(gen) })
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if !s.pending || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.pending = false
	s.timer = nil
	s.mu.Unlock()

	s.run()
}

func (s *Scheduler) run() {
	s.running.Lock()
	defer s.running.Unlock()
	s.action()
}

// Flush runs a pending action immediately and reports whether one was pending.
// It is used on shutdown so no scheduled write is lost.
func (s *Scheduler) Flush() bool {
	s.mu.Lock()
	if !s.pending {
		s.mu.Unlock()
		return false
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = false
	s.gen++
	s.mu.Unlock()

	s.run()
	return true
}

// Cancel drops a pending action without running it.
func (s *Scheduler) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pending {
		return false
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = false
	s.gen++
	return true
}

// Pending reports whether an action is waiting for its quiet window.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}
