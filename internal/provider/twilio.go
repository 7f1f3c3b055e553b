// internal/provider/twilio.go
package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/user/smsrelay/internal/config"
	"github.com/user/smsrelay/internal/types"
)

const (
	twilioSignatureHeader = "X-Twilio-Signature"
	twilioAPIBase         = "https://api.twilio.com"
)

// Twilio implements Adapter for Twilio-style SMS webhooks: form-encoded
// inbound payloads signed with HMAC-SHA1 over the request URL plus sorted
// parameters, TwiML XML reply envelopes, and a REST API for out-of-band
// sends.
type Twilio struct {
	cfg         config.SMSConfig
	allowedTo   map[string]bool
	allowedFrom map[string]bool
	apiBase     string
	httpClient  *http.Client
}

// NewTwilio creates the Twilio SMS adapter.
func NewTwilio(cfg config.SMSConfig) *Twilio {
	apiBase := cfg.APIBaseURL
	if apiBase == "" {
		apiBase = twilioAPIBase
	}
	return &Twilio{
		cfg:         cfg,
		allowedTo:   allowSet(cfg.AllowedDestinations),
		allowedFrom: allowSet(cfg.AllowedSenders),
		apiBase:     strings.TrimRight(apiBase, "/"),
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *Twilio) Name() string { return "twilio" }

// ParseInbound requires From and To; everything else is optional. A missing
// MessageSid gets a locally generated id so downstream bookkeeping always
// has one.
func (t *Twilio) ParseInbound(form url.Values) (*types.InboundEvent, error) {
	from := strings.TrimSpace(form.Get("From"))
	to := strings.TrimSpace(form.Get("To"))
	if from == "" || to == "" {
		return nil, &RequestError{Status: http.StatusBadRequest, Reason: "payload missing From or To"}
	}

	messageID := strings.TrimSpace(form.Get("MessageSid"))
	if messageID == "" {
		messageID = types.NewMessageID()
	}

	return &types.InboundEvent{
		Provider:  t.Name(),
		AccountID: strings.TrimSpace(form.Get("AccountSid")),
		MessageID: messageID,
		From:      from,
		To:        to,
		Text:      form.Get("Body"),
	}, nil
}

// tokenFor resolves the signing credential for an account, falling back to
// the default auth token.
func (t *Twilio) tokenFor(accountID string) string {
	if accountID != "" {
		if token, ok := t.cfg.AuthTokens[accountID]; ok && token != "" {
			return token
		}
	}
	return t.cfg.AuthToken
}

func (t *Twilio) VerifyRequest(in VerifyInput) error {
	if !t.cfg.VerifySignatures {
		return nil
	}

	sig := in.Header.Get(twilioSignatureHeader)
	if sig == "" {
		return &RequestError{Status: http.StatusForbidden, Reason: "missing signature header"}
	}

	token := t.tokenFor(in.AccountID)
	if token == "" {
		return &RequestError{Status: http.StatusInternalServerError, Reason: "signature verification enabled but no auth token configured"}
	}

	expected := ComputeSignature(token, in.URL, in.Params)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return &RequestError{Status: http.StatusForbidden, Reason: "signature mismatch"}
	}
	return nil
}

// ComputeSignature builds the canonical string (request URL followed by
// every form parameter sorted by key, each key concatenated with its values
// sorted), signs it with HMAC-SHA1, and base64 encodes the digest.
func ComputeSignature(token, requestURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(requestURL)
	for _, k := range keys {
		values := append([]string(nil), params[k]...)
		sort.Strings(values)
		for _, v := range values {
			b.WriteString(k)
			b.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (t *Twilio) IsAllowedDestination(to string) bool {
	if t.allowedTo == nil {
		return true
	}
	return t.allowedTo[types.NormalizeAddress(to)]
}

func (t *Twilio) IsAllowedSender(from string) bool {
	if t.allowedFrom == nil {
		return true
	}
	return t.allowedFrom[types.NormalizeAddress(from)]
}

// twiml is the inline reply envelope: one Message element per segment. An
// empty segment list marshals to a bare Response element, which Twilio
// treats as "no reply" rather than "reply with an empty message".
type twiml struct {
	XMLName  xml.Name `xml:"Response"`
	Messages []string `xml:"Message"`
}

func (t *Twilio) FormatReply(segments []string) ([]byte, string) {
	body, err := xml.Marshal(twiml{Messages: segments})
	if err != nil {
		// Marshal of a string slice cannot fail; keep the envelope valid anyway.
		body = []byte("<Response></Response>")
	}
	return append([]byte(xml.Header), body...), "text/xml; charset=utf-8"
}

// twilioAPIError is a non-2xx response from the REST send endpoint.
type twilioAPIError struct {
	Status  int
	Code    int
	Message string
}

func (e *twilioAPIError) Error() string {
	return fmt.Sprintf("twilio api status %d (code %d): %s", e.Status, e.Code, e.Message)
}

// SendOutOfBand posts each segment as its own authenticated API call, in
// order, pausing briefly between sends so the provider delivers them in
// sequence. Returns the number of segments sent before the first failure.
func (t *Twilio) SendOutOfBand(ctx context.Context, event *types.InboundEvent, segments []string) (int, error) {
	accountSid := event.AccountID
	if accountSid == "" {
		accountSid = t.cfg.AccountSid
	}
	token := t.tokenFor(event.AccountID)
	if accountSid == "" || token == "" {
		return 0, fmt.Errorf("twilio api credentials not configured")
	}

	pacing := time.Duration(t.cfg.SendPacingMs) * time.Millisecond
	sent := 0
	for i, seg := range segments {
		if i > 0 && pacing > 0 {
			select {
			case <-ctx.Done():
				return sent, ctx.Err()
			case <-time.After(pacing):
			}
		}
		if err := t.sendOne(ctx, accountSid, token, event, seg); err != nil {
			return sent, fmt.Errorf("send segment %d/%d: %w", i+1, len(segments), err)
		}
		sent++
	}
	return sent, nil
}

func (t *Twilio) sendOne(ctx context.Context, accountSid, token string, event *types.InboundEvent, body string) error {
	form := url.Values{}
	form.Set("To", event.From)
	form.Set("From", event.To)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.apiBase, url.PathEscape(accountSid))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create twilio request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(accountSid, token)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post twilio message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	apiErr := &twilioAPIError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		apiErr.Code = payload.Code
		apiErr.Message = payload.Message
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}
