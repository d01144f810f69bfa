// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/pavilion-club/pavilion/lib/netutil"
	"github.com/pavilion-club/pavilion/lib/secret"
	"github.com/pavilion-club/pavilion/platform"
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// BaseURL is the base URL of the chat platform's REST API
	// (e.g., "https://chat.example.com").
	BaseURL string
	// AppID is the application identifier the platform scopes
	// sessions and devices to.
	AppID string
	// APIKey authenticates all REST calls (app-level auth). The
	// client borrows the buffer; the owner closes it at shutdown.
	APIKey *secret.Buffer
	// HTTPClient is used for all requests. If nil, http.DefaultClient
	// is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Client is a typed client for the chat platform's REST API: token
// issuance, channel creation, and push device registration. The live
// event stream is separate (see Dialer).
type Client struct {
	baseURL    string
	appID      string
	apiKey     *secret.Buffer
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a chat platform REST client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("chat: BaseURL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("chat: invalid BaseURL %q: %w", config.BaseURL, err)
	}
	if config.AppID == "" {
		return nil, fmt.Errorf("chat: AppID is required")
	}
	if config.APIKey == nil {
		return nil, fmt.Errorf("chat: APIKey is required")
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
		appID:      config.AppID,
		apiKey:     config.APIKey,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// sessionTokenResponse is the token endpoint's wire shape.
type sessionTokenResponse struct {
	IdentityID  string `json:"identity_id"`
	AccessToken string `json:"access_token"`
	AppID       string `json:"app_id"`
	ExpiresAt   string `json:"expires_at"`
}

// IssueSessionToken fetches a fresh session credential for the given
// member. The nickname is the display name other members see; pass
// the given name only.
func (c *Client) IssueSessionToken(ctx context.Context, identityID, nickname string) (*Credential, error) {
	if identityID == "" {
		return nil, fmt.Errorf("chat: identity ID is required for a session token")
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/v3/session/token", map[string]any{
		"identity_id": identityID,
		"nickname":    nickname,
	})
	if err != nil {
		return nil, fmt.Errorf("chat: issuing session token: %w", err)
	}

	var response sessionTokenResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("chat: parsing token response: %w", err)
	}
	if response.AccessToken == "" {
		return nil, fmt.Errorf("chat: token response has no access token")
	}

	expiresAt, err := time.Parse(time.RFC3339, response.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("chat: parsing token expiry %q: %w", response.ExpiresAt, err)
	}

	// Move the token into locked memory. The wire copy in body is
	// garbage; there is no way to scrub the HTTP buffers beneath it,
	// but the long-lived copy is protected.
	token, err := secret.NewFromBytes([]byte(response.AccessToken))
	if err != nil {
		return nil, fmt.Errorf("chat: storing access token: %w", err)
	}

	return &Credential{
		IdentityID:  response.IdentityID,
		AccessToken: token,
		AppID:       response.AppID,
		ExpiresAt:   expiresAt,
	}, nil
}

// Channel is a chat channel as returned by the channel-create endpoint.
type Channel struct {
	ChannelID string    `json:"channel_id"`
	URL       string    `json:"channel_url"`
	Name      string    `json:"channel_name"`
	CreatedAt time.Time `json:"created_at"`
}

// DirectChannelID derives the deterministic channel identifier for a
// direct channel between the given participants: "direct:" plus the
// sorted participant IDs joined with "+". Participant order does not
// matter; repeated calls with the same set yield the same ID, which is
// what makes channel creation idempotent on the platform side.
func DirectChannelID(participantIDs ...string) string {
	sorted := make([]string, len(participantIDs))
	copy(sorted, participantIDs)
	sort.Strings(sorted)
	return "direct:" + strings.Join(sorted, "+")
}

// CreateDirectChannel creates (or returns the existing) direct channel
// between the given participants. The deterministic channel ID makes
// the call idempotent: two members opening the same conversation race
// harmlessly.
func (c *Client) CreateDirectChannel(ctx context.Context, participantIDs ...string) (*Channel, error) {
	if len(participantIDs) < 2 {
		return nil, fmt.Errorf("chat: a direct channel needs at least two participants, got %d", len(participantIDs))
	}
	for _, id := range participantIDs {
		if id == "" {
			return nil, fmt.Errorf("chat: empty participant ID")
		}
	}

	sorted := make([]string, len(participantIDs))
	copy(sorted, participantIDs)
	sort.Strings(sorted)

	body, err := c.doRequest(ctx, http.MethodPost, "/v3/channels/direct", map[string]any{
		"channel_id":      DirectChannelID(sorted...),
		"participant_ids": sorted,
	})
	if err != nil {
		return nil, fmt.Errorf("chat: creating direct channel: %w", err)
	}

	var channel Channel
	if err := json.Unmarshal(body, &channel); err != nil {
		return nil, fmt.Errorf("chat: parsing channel response: %w", err)
	}
	return &channel, nil
}

// RegisterDevice registers a push device token for the member with the
// chat platform, so the platform can trigger pushes for messages that
// arrive while no session is connected. App-level auth: works whether
// or not a session is open.
func (c *Client) RegisterDevice(ctx context.Context, identityID, token string, kind platform.Kind) error {
	if identityID == "" || token == "" {
		return fmt.Errorf("chat: device registration needs an identity ID and a device token")
	}

	path := "/v3/identities/" + url.PathEscape(identityID) + "/devices"
	if _, err := c.doRequest(ctx, http.MethodPost, path, map[string]any{
		"device_token": token,
		"platform":     kind.String(),
	}); err != nil {
		return fmt.Errorf("chat: registering device: %w", err)
	}
	return nil
}

// UnregisterDevice removes a push device token for the member.
// Removing a token that is not registered is not an error on the
// platform side.
func (c *Client) UnregisterDevice(ctx context.Context, identityID, token string) error {
	if identityID == "" || token == "" {
		return fmt.Errorf("chat: device removal needs an identity ID and a device token")
	}

	path := "/v3/identities/" + url.PathEscape(identityID) + "/devices/" + url.PathEscape(token)
	if _, err := c.doRequest(ctx, http.MethodDelete, path, nil); err != nil {
		return fmt.Errorf("chat: unregistering device: %w", err)
	}
	return nil
}

// doRequest performs an HTTP request against the chat platform API and
// returns the response body. Error responses are decoded into
// *PlatformError so callers can branch on status and code.
func (c *Client) doRequest(ctx context.Context, method, path string, requestBody any, query ...url.Values) ([]byte, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 && query[0] != nil {
		requestURL += "?" + query[0].Encode()
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	// API key is converted to string at the header boundary; the heap
	// copy is short-lived, the locked buffer is the durable copy.
	request.Header.Set("Authorization", "Bearer "+c.apiKey.String())
	request.Header.Set("X-App-ID", c.appID)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("request to %s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	// All platform error responses use the same JSON shape.
	var platformErr PlatformError
	if jsonErr := json.Unmarshal(responseBody, &platformErr); jsonErr != nil || platformErr.Code == "" {
		// Non-JSON error from a proxy or load balancer. Fail loud
		// with the raw body.
		return nil, &PlatformError{
			Code:       ErrCodeInternal,
			Message:    strings.TrimSpace(string(responseBody)),
			StatusCode: response.StatusCode,
		}
	}
	platformErr.StatusCode = response.StatusCode

	return nil, &platformErr
}
