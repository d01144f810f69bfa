// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"errors"
	"fmt"
)

// PlatformError is a structured error response from the chat platform.
// Callers can use errors.As to extract the structured information:
//
//	var platformErr *chat.PlatformError
//	if errors.As(err, &platformErr) {
//	    if platformErr.StatusCode == 401 { ... }
//	}
type PlatformError struct {
	// Code is the platform's machine-readable error code
	// (e.g., "unauthorized", "rate_limited").
	Code string `json:"code"`
	// Message is the human-readable description from the platform.
	Message string `json:"message"`
	// StatusCode is the HTTP status code of the response.
	StatusCode int `json:"-"`
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("chat platform: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Error codes the chat platform returns.
const (
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeUnauthorized   = "unauthorized"
	ErrCodeForbidden      = "forbidden"
	ErrCodeNotFound       = "not_found"
	ErrCodeRateLimited    = "rate_limited"
	ErrCodeInternal       = "internal_error"
)

// IsTransient returns true for errors that are likely transient and
// worth retrying: connection failures, rate limiting (429), and server
// errors (5xx). Returns false for client errors (4xx except 429) which
// indicate a permanent problem.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var platformErr *PlatformError
	if errors.As(err, &platformErr) {
		// 429 Too Many Requests: rate limit, transient.
		if platformErr.StatusCode == 429 {
			return true
		}
		// 5xx: server error, transient.
		if platformErr.StatusCode >= 500 {
			return true
		}
		// 4xx (except 429): client error, permanent.
		if platformErr.StatusCode >= 400 {
			return false
		}
	}

	// Non-platform errors (connection refused, timeout, EOF) are
	// transient.
	return true
}

// IsCredentialError reports whether err is a credential rejection
// (401/403) from the chat platform. Credential errors skip the retry
// budget: retrying with the same credentials cannot succeed.
func IsCredentialError(err error) bool {
	var platformErr *PlatformError
	if errors.As(err, &platformErr) {
		return platformErr.StatusCode == 401 || platformErr.StatusCode == 403
	}
	return false
}
