// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a structured error response from the platform. Callers
// use errors.As to extract it:
//
//	var apiErr *provider.APIError
//	if errors.As(err, &apiErr) && apiErr.NotFound() { ... }
type APIError struct {
	// Code is the platform's numeric error code (e.g., 10003 for an
	// unknown channel).
	Code int `json:"code"`
	// Message is the human-readable description from the platform.
	Message string `json:"message"`
	// StatusCode is the HTTP status of the response.
	StatusCode int `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider: %d (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Platform error codes Parlor reacts to.
const (
	// CodeUnknownChannel means the referenced channel does not exist,
	// typically because it was deleted out of band.
	CodeUnknownChannel = 10003
	// CodeUnknownMember means the referenced member is not in the
	// guild (or not connected to voice, for move operations).
	CodeUnknownMember = 10007
	// CodeMissingPermissions means the bot lacks permission for the
	// attempted operation.
	CodeMissingPermissions = 50013
)

// NotFound reports whether the error indicates a missing resource.
func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound || e.Code == CodeUnknownChannel
}

// IsNotFound reports whether err is an APIError for a missing
// resource. The lifecycle controller uses this to recognize stale
// registry entries for channels deleted through the platform's own
// tools.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.NotFound()
}
