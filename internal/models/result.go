// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package models

import (
	"errors"
	"fmt"
)

// Result is the outcome code every connector and manager operation reports.
// The values are stable and mirror HTTP status codes so the REST layer can use
// them directly as the response status.
type Result int

const (
	ResultOK                   Result = 200
	ResultError                Result = 400
	ResultLayerAlreadyExists   Result = 406
	ResultLayerNotFound        Result = 407
	ResultFeatureNotFound      Result = 408
	ResultProjectAlreadyExists Result = 409
	ResultProjectNotFound      Result = 410
	ResultResourceNotFound     Result = 428
)

// String returns the symbolic name of the result code.
func (r Result) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultError:
		return "ERROR"
	case ResultLayerAlreadyExists:
		return "LAYER_ALREADY_EXISTS"
	case ResultLayerNotFound:
		return "LAYER_NOT_FOUND"
	case ResultFeatureNotFound:
		return "FEATURE_NOT_FOUND"
	case ResultProjectAlreadyExists:
		return "PROJECT_ALREADY_EXISTS"
	case ResultProjectNotFound:
		return "PROJECT_NOT_FOUND"
	case ResultResourceNotFound:
		return "RESOURCE_NOT_FOUND"
	default:
		return fmt.Sprintf("RESULT_%d", int(r))
	}
}

// HTTPStatus returns the HTTP status code used for the result on the REST surface.
func (r Result) HTTPStatus() int {
	if r < 100 || r > 599 {
		return 500
	}
	return int(r)
}

// Meta identifies the origin of a request. Source is the id of the connector
// the request entered through and User the id of the end user or client.
type Meta struct {
	Source string `json:"source,omitempty"`
	User   string `json:"user,omitempty"`
}

// CallbackResult is the payload handed to an operation's completion callback.
// Only the fields relevant to the operation are populated.
type CallbackResult struct {
	Result   Result            `json:"result"`
	Error    string            `json:"error,omitempty"`
	Project  *Project          `json:"project,omitempty"`
	Layer    *Layer            `json:"layer,omitempty"`
	Feature  *Feature          `json:"feature,omitempty"`
	Features []*Feature        `json:"features,omitempty"`
	Logs     map[string][]Log  `json:"logs,omitempty"`
	Keys     map[string]*Key   `json:"keys,omitempty"`
	Value    KeyValue          `json:"value,omitempty"`
	Resource *ResourceFile     `json:"resource,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// Callback receives the outcome of an asynchronous operation. Connectors may
// invoke it synchronously or from another goroutine, at most once.
type Callback func(*CallbackResult)

// NoopCallback discards the result.
func NoopCallback(*CallbackResult) {}

// OK returns a successful result with no payload.
func OK() *CallbackResult {
	return &CallbackResult{Result: ResultOK}
}

// Failure returns a result carrying the given code and error message.
func Failure(code Result, msg string) *CallbackResult {
	return &CallbackResult{Result: code, Error: msg}
}

// Failuref is Failure with a formatted message.
func Failuref(code Result, format string, args ...any) *CallbackResult {
	return &CallbackResult{Result: code, Error: fmt.Sprintf(format, args...)}
}

// IsOK reports whether the result represents success.
func (c *CallbackResult) IsOK() bool {
	return c != nil && c.Result == ResultOK
}

// Err converts a non-OK result into a *CodeError. It returns nil on success.
func (c *CallbackResult) Err() error {
	if c == nil {
		return &CodeError{Code: ResultError, Message: "no result"}
	}
	if c.Result == ResultOK {
		return nil
	}
	return &CodeError{Code: c.Result, Message: c.Error}
}

// CodeError is the error form of a non-OK CallbackResult.
type CodeError struct {
	Code    Result
	Message string
}

func (e *CodeError) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches another *CodeError by code, so errors.Is(err, ErrLayerNotFound)
// works regardless of the message.
func (e *CodeError) Is(target error) bool {
	var t *CodeError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinel errors for the failure codes.
var (
	ErrFailed               = &CodeError{Code: ResultError}
	ErrLayerAlreadyExists   = &CodeError{Code: ResultLayerAlreadyExists}
	ErrLayerNotFound        = &CodeError{Code: ResultLayerNotFound}
	ErrFeatureNotFound      = &CodeError{Code: ResultFeatureNotFound}
	ErrProjectAlreadyExists = &CodeError{Code: ResultProjectAlreadyExists}
	ErrProjectNotFound      = &CodeError{Code: ResultProjectNotFound}
	ErrResourceNotFound     = &CodeError{Code: ResultResourceNotFound}
)
