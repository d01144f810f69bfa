// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package marketing

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is an error response from the marketing platform. The
// platform reports failures as a bare {"detail": "..."} with the HTTP
// status carrying the classification.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("marketing platform: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("marketing platform: HTTP %d: %s", e.StatusCode, e.Detail)
}

// IsTransient reports whether err is worth retrying: rate limits and
// server-side failures are, other API rejections are not. Errors that
// are not *APIError (timeouts, connection resets) are assumed
// transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return true
	}
	if apiErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return apiErr.StatusCode >= 500
}
