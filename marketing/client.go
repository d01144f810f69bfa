// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

// Package marketing is a client for the marketing automation platform's
// device API. Devices are keyed by member email, not identity ID: the
// platform matches pushes to its own audience lists, which are built
// from email campaigns.
package marketing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/pavilion-club/pavilion/lib/netutil"
	"github.com/pavilion-club/pavilion/lib/secret"
	"github.com/pavilion-club/pavilion/platform"
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// BaseURL is the base URL of the marketing platform's REST API.
	BaseURL string
	// APIKey authenticates all requests. The client borrows the
	// buffer; the owner closes it at shutdown.
	APIKey *secret.Buffer
	// HTTPClient is used for all requests. If nil, http.DefaultClient
	// is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Client is a typed client for the marketing platform's device API.
type Client struct {
	baseURL    string
	apiKey     *secret.Buffer
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a marketing platform client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("marketing: BaseURL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("marketing: invalid BaseURL %q: %w", config.BaseURL, err)
	}
	if config.APIKey == nil {
		return nil, fmt.Errorf("marketing: APIKey is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		apiKey:     config.APIKey,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// RegisterDevice attaches a push device token to the member's marketing
// profile. Registering the same email/token pair again is idempotent on
// the platform side.
func (c *Client) RegisterDevice(ctx context.Context, email, token string, kind platform.Kind) error {
	if email == "" || token == "" {
		return fmt.Errorf("marketing: device registration needs an email and a device token")
	}

	if err := c.doRequest(ctx, http.MethodPost, "/v1/devices", map[string]any{
		"email":        email,
		"device_token": token,
		"platform":     kind.String(),
	}); err != nil {
		return fmt.Errorf("marketing: registering device: %w", err)
	}
	return nil
}

// UnregisterDevice detaches a push device token from the member's
// marketing profile. Removing an unknown token is not an error on the
// platform side.
func (c *Client) UnregisterDevice(ctx context.Context, email, token string) error {
	if email == "" || token == "" {
		return fmt.Errorf("marketing: device removal needs an email and a device token")
	}

	// The platform's removal endpoint is a POST: DELETE bodies are
	// dropped by its CDN.
	if err := c.doRequest(ctx, http.MethodPost, "/v1/devices/remove", map[string]any{
		"email":        email,
		"device_token": token,
	}); err != nil {
		return fmt.Errorf("marketing: unregistering device: %w", err)
	}
	return nil
}

// doRequest performs an HTTP request against the marketing platform
// API. Error responses are decoded into *APIError so callers can branch
// on status.
func (c *Client) doRequest(ctx context.Context, method, path string, requestBody any) error {
	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set("Authorization", "Bearer "+c.apiKey.String())

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("request to %s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return nil
	}

	apiErr := &APIError{StatusCode: response.StatusCode}
	var detail struct {
		Detail string `json:"detail"`
	}
	if jsonErr := json.Unmarshal(responseBody, &detail); jsonErr == nil && detail.Detail != "" {
		apiErr.Detail = detail.Detail
	} else {
		apiErr.Detail = strings.TrimSpace(string(responseBody))
	}

	return apiErr
}
