// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.Level != "info" {
		t.Errorf("expected default level 'info', got '%s'", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("expected default format 'json', got '%s'", cfg.Format)
	}
	if !cfg.Timestamp {
		t.Error("expected default timestamp to be true")
	}
}

func TestInit(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Info().Str("layer", "roads").Msg("test message")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("expected output to contain 'test message', got: %s", output)
	}
	if !strings.Contains(output, `"layer":"roads"`) {
		t.Errorf("expected structured field, got: %s", output)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.expected {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestCtxAddsRequestAndCorrelationIDs(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	defer Init(DefaultConfig())

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithCorrelationID(ctx, "corr-1")
	CtxInfo(ctx).Msg("dispatch")

	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-1"`) || !strings.Contains(out, `"correlation_id":"corr-1"`) {
		t.Errorf("context ids missing from output: %s", out)
	}
}

func TestIDsFromEmptyContext(t *testing.T) {
	t.Parallel()

	if RequestIDFromContext(context.Background()) != "" {
		t.Error("expected empty request id")
	}
	if CorrelationIDFromContext(context.Background()) != "" {
		t.Error("expected empty correlation id")
	}
	if len(GenerateCorrelationID()) != 8 {
		t.Error("correlation ids are 8 characters")
	}
}

func TestSlogHandlerWritesThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewSlogHandlerWithLogger(NewTestLogger(&buf)))

	logger.WithGroup("supervisor").Info("service started", "service", "hub", "attempt", 2)
	out := buf.String()

	for _, want := range []string{`"supervisor.service":"hub"`, `"supervisor.attempt":2`, "service started"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}

func TestSlogHandlerErrorAttr(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewSlogHandlerWithLogger(NewTestLogger(&buf)))

	logger.Error("publish failed", "err", errors.New("boom"))
	if !strings.Contains(buf.String(), `"err":"boom"`) {
		t.Errorf("error attr not rendered: %s", buf.String())
	}
}

func TestSecurityLoggerMasksUserID(t *testing.T) {
	var buf bytes.Buffer
	l := NewSecurityLoggerWithLogger(NewTestLogger(&buf))

	l.LogTokenAccepted("user-1234567890", "10.0.0.1", "/api/layers")
	out := buf.String()
	if strings.Contains(out, "user-1234567890") {
		t.Errorf("user id not masked: %s", out)
	}
	if !strings.Contains(out, `"event":"token_accepted"`) {
		t.Errorf("event missing: %s", out)
	}
}

func TestSanitizers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"short token", SanitizeToken("abc"), "***"},
		{"long token", SanitizeToken("eyJhbGciOiJIUzI1NiJ9.payload"), "eyJh...load"},
		{"short user", SanitizeUserID("bob"), "***"},
		{"secret error", SanitizeError("bad bearer header"), "authentication error"},
		{"plain error", SanitizeError("token expired"), "token expired"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}
