// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/layersync/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

var (
	_ suture.Service = (*HTTPServerService)(nil)
	_ suture.Service = (*ServeService)(nil)
	_ suture.Service = (*ShutdownService)(nil)
)

// mockHTTPServer blocks in ListenAndServe until Shutdown, or fails at once
// when listenErr is set.
type mockHTTPServer struct {
	listenErr   error
	shutdownErr error
	stopCh      chan struct{}
	shutdowns   atomic.Int32
}

func newMockHTTPServer() *mockHTTPServer {
	return &mockHTTPServer{stopCh: make(chan struct{})}
}

func (m *mockHTTPServer) ListenAndServe() error {
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.stopCh
	return http.ErrServerClosed
}

func (m *mockHTTPServer) Shutdown(context.Context) error {
	m.shutdowns.Add(1)
	close(m.stopCh)
	return m.shutdownErr
}

func TestHTTPServerService(t *testing.T) {
	t.Run("graceful shutdown", func(t *testing.T) {
		srv := newMockHTTPServer()
		svc := NewHTTPServerService(srv, time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- svc.Serve(ctx) }()
		cancel()

		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Serve() error = %v, want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Serve() did not return")
		}
		if srv.shutdowns.Load() != 1 {
			t.Errorf("Shutdown called %d times, want 1", srv.shutdowns.Load())
		}
	})

	t.Run("listen failure", func(t *testing.T) {
		srv := newMockHTTPServer()
		srv.listenErr = errors.New("address in use")
		err := NewHTTPServerService(srv, 0).Serve(context.Background())
		if err == nil || !errors.Is(err, srv.listenErr) {
			t.Errorf("Serve() error = %v, want wrapped listen error", err)
		}
	})

	t.Run("shutdown failure", func(t *testing.T) {
		srv := newMockHTTPServer()
		srv.shutdownErr = errors.New("drain timeout")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := NewHTTPServerService(srv, time.Second).Serve(ctx); !errors.Is(err, srv.shutdownErr) {
			t.Errorf("Serve() error = %v, want wrapped shutdown error", err)
		}
	})

	t.Run("name", func(t *testing.T) {
		if got := NewHTTPServerService(newMockHTTPServer(), 0).String(); got != "http-server" {
			t.Errorf("String() = %q", got)
		}
	})
}

type serverFunc func(ctx context.Context) error

func (f serverFunc) Serve(ctx context.Context) error { return f(ctx) }

func TestServeService(t *testing.T) {
	boom := errors.New("subscription closed")
	svc := NewServeService("bus-subscriber", serverFunc(func(context.Context) error { return boom }))
	if err := svc.Serve(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Serve() error = %v, want %v", err, boom)
	}
	if svc.String() != "bus-subscriber" {
		t.Errorf("String() = %q", svc.String())
	}
}

func TestShutdownServiceRunsCleanupOnce(t *testing.T) {
	var order []string
	svc := NewShutdownService("directory-flusher",
		func() error { order = append(order, "flush"); return nil },
		func() error { order = append(order, "close"); return errors.New("already closed") },
	)

	for range 2 {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := svc.Serve(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v", err)
		}
	}
	if len(order) != 2 || order[0] != "flush" || order[1] != "close" {
		t.Errorf("cleanup order = %v, want [flush close]", order)
	}
}
