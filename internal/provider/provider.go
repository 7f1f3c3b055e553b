// internal/provider/provider.go
package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/user/smsrelay/internal/config"
	"github.com/user/smsrelay/internal/types"
)

// RequestError is a rejection of an inbound webhook with the HTTP status the
// caller should surface. Anything else that goes wrong during processing is
// absorbed by the orchestrator's fallback path instead.
type RequestError struct {
	Status int
	Reason string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request rejected (%d): %s", e.Status, e.Reason)
}

// VerifyInput carries everything a provider needs to authenticate one
// webhook delivery: the request headers, the exact public URL the provider
// signed, and the form payload.
type VerifyInput struct {
	Header    http.Header
	URL       string
	Params    url.Values
	AccountID string
}

// Adapter isolates all provider-specific wire format and security logic so
// the gateway stays provider-agnostic. Implementations form a closed set
// selected by the configured provider name.
type Adapter interface {
	Name() string

	// ParseInbound maps a webhook form payload to a canonical event. A
	// payload without usable from/to addresses fails with a 400 RequestError.
	ParseInbound(form url.Values) (*types.InboundEvent, error)

	// VerifyRequest authenticates the delivery. Signature mismatch is a 403
	// RequestError; a missing credential while verification is mandatory is
	// a 500 (misconfiguration, not a client error).
	VerifyRequest(in VerifyInput) error

	// Allow-list checks; an empty list allows everything.
	IsAllowedDestination(to string) bool
	IsAllowedSender(from string) bool

	// FormatReply renders segments into the provider's inline reply
	// envelope, returning the body and its content type. An empty segment
	// list renders a valid empty envelope.
	FormatReply(segments []string) ([]byte, string)

	// SendOutOfBand delivers segments as individual authenticated API
	// calls, in order, returning how many were sent before any failure.
	SendOutOfBand(ctx context.Context, event *types.InboundEvent, segments []string) (int, error)
}

// New constructs the adapter named by the configuration.
func New(cfg config.SMSConfig) (Adapter, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "twilio":
		return NewTwilio(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported sms provider: %q", cfg.Provider)
	}
}

// allowSet builds a normalized membership set; nil means allow all.
func allowSet(addrs []string) map[string]bool {
	if len(addrs) == 0 {
		return nil
	}
	set := make(map[string]bool, len(addrs))
	for _, a := range addrs {
		set[types.NormalizeAddress(a)] = true
	}
	return set
}
