// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package navigate

// Payload is one push notification as handed over by the shell:
// display strings plus the provider's custom data fields, flattened to
// strings.
type Payload struct {
	// Provider names the delivery provider the notification came
	// through ("chat", "marketing"), when the shell knows it.
	Provider string `json:"provider,omitempty"`

	// Title and Body are the notification's display strings.
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`

	// Data carries the provider's custom fields (deep links, channel
	// IDs).
	Data map[string]string `json:"data,omitempty"`
}

func (p Payload) field(name string) string {
	return p.Data[name]
}

// ChatChannelPath is the route chat-provider channel IDs synthesize
// into.
const ChatChannelPath = "chat/channel"

// Payload data fields recognized by the extraction chain.
const (
	fieldDeepLink    = "deep_link"
	fieldAltDeepLink = "pv.link"
	fieldURL         = "url"
	fieldChannelID   = "channel_id"
)

// Parse extracts the navigation target from a payload through the
// prioritized chain: explicit deep-link field, app-scheme URL field,
// chat channel ID. The first extracted target is validated against the
// table; an extracted destination the table does not know fails the
// whole parse rather than falling through to a lower-priority field,
// so a payload never navigates anywhere its most explicit field did
// not intend.
func (t *Table) Parse(payload Payload) (Target, error) {
	for _, extract := range []func(Payload) (Target, bool){
		extractDeepLink,
		extractURL,
		extractChannelID,
	} {
		target, ok := extract(payload)
		if !ok {
			continue
		}
		if err := t.Validate(target); err != nil {
			return Target{}, ErrNoTarget
		}
		return target, nil
	}
	return Target{}, ErrNoTarget
}

// extractDeepLink reads the explicit deep-link fields.
func extractDeepLink(payload Payload) (Target, bool) {
	for _, name := range []string{fieldDeepLink, fieldAltDeepLink} {
		raw := payload.field(name)
		if raw == "" {
			continue
		}
		if target, err := parseAppURL(raw); err == nil {
			return target, true
		}
	}
	return Target{}, false
}

// extractURL reads the generic URL field, accepting only the app
// scheme. Web URLs are not navigation targets.
func extractURL(payload Payload) (Target, bool) {
	raw := payload.field(fieldURL)
	if raw == "" {
		return Target{}, false
	}
	target, err := parseAppURL(raw)
	return target, err == nil
}

// extractChannelID synthesizes a chat-channel target from the chat
// provider's payload shape. Payloads from other providers may carry a
// coincidental channel_id field and are not routed by it.
func extractChannelID(payload Payload) (Target, bool) {
	if payload.Provider != "chat" {
		return Target{}, false
	}
	channelID := payload.field(fieldChannelID)
	if channelID == "" {
		return Target{}, false
	}
	return Target{
		Path:   ChatChannelPath,
		Params: map[string]string{"channel": channelID},
	}, true
}
