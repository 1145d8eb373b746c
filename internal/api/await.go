// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package api

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/layersync/internal/models"
)

// errTimeout is returned when an operation's callback does not fire in time.
var errTimeout = errors.New("operation timed out")

// await runs a callback style operation and blocks until its callback fires,
// timeout passes or ctx ends. The operation itself gets a context that keeps
// ctx's values but not its cancellation, so a client hanging up does not
// abort a write halfway through the fan-out.
func await(ctx context.Context, timeout time.Duration, run func(ctx context.Context, cb models.Callback)) (*models.CallbackResult, error) {
	opCtx := context.WithoutCancel(ctx)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan *models.CallbackResult, 1)
	run(opCtx, func(res *models.CallbackResult) {
		select {
		case done <- res:
		default:
		}
	})

	select {
	case res := <-done:
		if res == nil {
			res = models.Failure(models.ResultError, "no result")
		}
		return res, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errTimeout
		}
		return nil, ctx.Err()
	}
}
