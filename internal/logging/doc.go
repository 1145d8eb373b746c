// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

/*
Package logging provides centralized zerolog-based logging for layersync.

Every component logs through the package-level event constructors, so the
output format and level are configured once at startup:

	logging.Init(logging.Config{
	    Level:  "info",
	    Format: "json",
	})

	logging.Info().Str("layer", id).Msg("Layer added")
	logging.Error().Err(err).Msg("Persisting layer directory failed")

# Context

HTTP handlers and connectors pass request-scoped loggers through context:

	ctx = logging.ContextWithRequestID(ctx, logging.GenerateRequestID())
	logging.Ctx(ctx).Info().Msg("Dispatching")
	// {"level":"info","request_id":"...","message":"Dispatching"}

# Bridges

NewSlogLogger returns a *slog.Logger backed by the global zerolog logger. The
supervisor tree (sutureslog) and the message bus (watermill) log through it.

EventLogger and SecurityLogger are component loggers with domain methods for
bus events and authentication outcomes; SecurityLogger sanitizes tokens and
user ids before they reach the log.

# Configuration

	LOG_LEVEL   trace, debug, info, warn, error (default: info)
	LOG_FORMAT  json, console (default: json)
	LOG_CALLER  include caller file and line (default: false)

Always terminate event chains with Msg or Send; an unterminated chain is
never written.
*/
package logging
