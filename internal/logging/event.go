// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// EventLogger logs the lifecycle of message bus events.
type EventLogger struct {
	logger zerolog.Logger
}

// NewEventLogger creates an EventLogger on the global logger.
func NewEventLogger() *EventLogger {
	return &EventLogger{logger: WithComponent("bus")}
}

// NewEventLoggerWithLogger creates an EventLogger on a specific logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewEventLoggerWithLogger(logger zerolog.Logger) *EventLogger {
	return &EventLogger{logger: logger.With().Str("component", "bus").Logger()}
}

func (e *EventLogger) withContext(ctx context.Context) zerolog.Logger {
	logCtx := e.logger.With()
	if id := CorrelationIDFromContext(ctx); id != "" {
		logCtx = logCtx.Str("correlation_id", id)
	}
	return logCtx.Logger()
}

// LogEventPublished logs an event handed to the publisher.
func (e *EventLogger) LogEventPublished(ctx context.Context, eventID, action, topic string) {
	l := e.withContext(ctx)
	l.Debug().
		Str("event_id", eventID).
		Str("action", action).
		Str("topic", topic).
		Msg("event published")
}

// LogEventApplied logs a remote event applied to the local manager.
func (e *EventLogger) LogEventApplied(ctx context.Context, eventID, action, origin string) {
	l := e.withContext(ctx)
	l.Debug().
		Str("event_id", eventID).
		Str("action", action).
		Str("origin", origin).
		Msg("event applied")
}

// LogEventIgnored logs an event skipped on receipt, such as our own echo.
func (e *EventLogger) LogEventIgnored(ctx context.Context, eventID, reason string) {
	l := e.withContext(ctx)
	l.Trace().
		Str("event_id", eventID).
		Str("reason", reason).
		Msg("event ignored")
}

// LogEventFailed logs an event that could not be decoded or applied.
func (e *EventLogger) LogEventFailed(ctx context.Context, eventID string, err error) {
	l := e.withContext(ctx)
	l.Error().
		Str("event_id", eventID).
		Err(err).
		Msg("event processing failed")
}

// LogSubscriptionStarted logs the start of a subscription.
func (e *EventLogger) LogSubscriptionStarted(topic string) {
	e.logger.Info().Str("topic", topic).Msg("subscription started")
}

// LogSubscriptionStopped logs the end of a subscription.
func (e *EventLogger) LogSubscriptionStopped(topic string) {
	e.logger.Info().Str("topic", topic).Msg("subscription stopped")
}
