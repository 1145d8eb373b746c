// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package connector

import (
	"fmt"

	"github.com/tomtom215/layersync/internal/logging"
	"github.com/tomtom215/layersync/internal/metrics"
	"github.com/tomtom215/layersync/internal/models"
)

// FailureHook observes a fan-out delivery that did not succeed.
type FailureHook func(connectorID, op string, res *models.CallbackResult)

// FanOut delivers an operation to a set of interface connectors. Individual
// failures are reported to the hook and never returned to the caller.
type FanOut struct {
	hook FailureHook
}

// NewFanOut creates a FanOut. A nil hook logs and counts failures.
func NewFanOut(hook FailureHook) *FanOut {
	if hook == nil {
		hook = logFailure
	}
	return &FanOut{hook: hook}
}

func logFailure(connectorID, op string, res *models.CallbackResult) {
	ev := logging.Warn().Str("connector", connectorID).Str("op", op)
	if res != nil {
		ev = ev.Int("result", int(res.Result)).Str("error", res.Error)
	}
	ev.Msg("Interface connector delivery failed")
}

// Each calls fn for every target with a callback that records the outcome.
// A panicking connector is recovered and recorded as a failure.
func (f *FanOut) Each(targets []Connector, op string, fn func(c Connector, done models.Callback)) {
	for _, c := range targets {
		f.deliver(c, op, fn)
	}
}

func (f *FanOut) deliver(c Connector, op string, fn func(Connector, models.Callback)) {
	id := c.ID()
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordFanOut(id, op, false)
			f.hook(id, op, models.Failure(models.ResultError, fmt.Sprintf("panic: %v", r)))
		}
	}()

	fn(c, func(res *models.CallbackResult) {
		if res.IsOK() {
			metrics.RecordFanOut(id, op, true)
			return
		}
		metrics.RecordFanOut(id, op, false)
		f.hook(id, op, res)
	})
}
