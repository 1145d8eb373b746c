// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

// Package authz provides role based authorization for the REST API using
// Casbin.
//
// # Architecture
//
//	Request -> auth.Authenticate -> authz.Authorize -> Handler
//
// The role comes from the authenticated claims: the JWT role claim, or
// admin for the Basic Auth account. Tokens without a role use the
// configured default role.
//
// # Built-in Policy
//
//	p, viewer, /api/*, read
//	p, editor, /api/layers*, write
//	p, editor, /api/layers*, delete
//	p, editor, /api/keys*, write
//	p, editor, /api/keys*, delete
//	p, admin, /api/*, write
//	p, admin, /api/*, delete
//	g, editor, viewer
//	g, admin, editor
//
// A custom policy CSV with the same shape can replace it. Changes arriving
// over /ws or the message bus are not subject to these rules.
package authz
