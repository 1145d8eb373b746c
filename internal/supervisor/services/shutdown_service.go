// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package services

import (
	"context"
	"sync"

	"github.com/tomtom215/layersync/internal/logging"
)

// ShutdownService waits for shutdown and then runs its cleanup functions in
// order. The functions run once even if suture restarts the service.
type ShutdownService struct {
	name    string
	cleanup []func() error
	once    sync.Once
}

// NewShutdownService creates a service that runs cleanup on shutdown.
func NewShutdownService(name string, cleanup ...func() error) *ShutdownService {
	return &ShutdownService{name: name, cleanup: cleanup}
}

// Serve implements suture.Service. Cleanup errors are logged.
func (s *ShutdownService) Serve(ctx context.Context) error {
	<-ctx.Done()
	s.once.Do(func() {
		for i, fn := range s.cleanup {
			if err := fn(); err != nil {
				logging.Error().Err(err).Str("service", s.name).Int("step", i).Msg("Shutdown cleanup failed")
			}
		}
		logging.Info().Str("service", s.name).Msg("Shutdown cleanup complete")
	})
	return ctx.Err()
}

// String implements fmt.Stringer.
func (s *ShutdownService) String() string {
	return s.name
}
