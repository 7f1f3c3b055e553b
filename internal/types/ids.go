// internal/types/ids.go
package types

import (
	"strings"

	"github.com/google/uuid"
)

type ConversationKey string

// NewMessageID generates a fallback message identifier for providers that
// omit one on the inbound payload.
func NewMessageID() string {
	return "local-" + uuid.New().String()
}

// NormalizeAddress lowercases a channel address and strips all whitespace so
// that "+1 555 0100" and "+15550100" compare equal.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.Join(strings.Fields(addr), ""))
}

// KeyFor derives the conversation key for an inbound event. The key doubles
// as the serialization key: events with the same key are processed in
// arrival order and always routed to the same conversation.
func KeyFor(provider, accountID, to, from string) ConversationKey {
	if accountID = strings.TrimSpace(accountID); accountID == "" {
		accountID = "default"
	}
	parts := []string{
		"sms",
		strings.ToLower(strings.TrimSpace(provider)),
		strings.ToLower(accountID),
		NormalizeAddress(to),
		NormalizeAddress(from),
	}
	return ConversationKey(strings.Join(parts, ":"))
}
