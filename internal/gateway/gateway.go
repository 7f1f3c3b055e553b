package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/user/smsrelay/internal/config"
	"github.com/user/smsrelay/internal/provider"
	"github.com/user/smsrelay/internal/segment"
	"github.com/user/smsrelay/internal/types"
)

// Gateway orchestrates inbound webhook deliveries: it parses and verifies
// them through the provider adapter, serializes processing per conversation
// key, binds conversations, invokes the backend, and shapes the reply.
type Gateway struct {
	cfg     config.SMSConfig
	adapter provider.Adapter
	store   types.ConversationStore
	backend types.Backend
	queue   *Queue
}

// New creates a Gateway wired to the given adapter, store, and backend, with
// the given cap on simultaneously processed conversations.
func New(cfg config.SMSConfig, adapter provider.Adapter, store types.ConversationStore, backend types.Backend, maxConcurrent int64) *Gateway {
	return &Gateway{
		cfg:     cfg,
		adapter: adapter,
		store:   store,
		backend: backend,
		queue:   NewQueue(maxConcurrent),
	}
}

// Start initialises the internal queue. Must be called before HandleWebhook.
func (g *Gateway) Start(ctx context.Context) {
	g.queue.Start(ctx)
}

// Stop drains the queue and waits for in-flight work.
func (g *Gateway) Stop() {
	g.queue.Stop()
}

// WebhookRequest is one inbound webhook delivery, already form-decoded by
// the HTTP layer. URL is the exact public URL the provider signed.
type WebhookRequest struct {
	Header http.Header
	Form   url.Values
	URL    string
}

// WebhookResponse is what the HTTP layer writes back.
type WebhookResponse struct {
	Status      int
	ContentType string
	Body        []byte
}

func jsonError(status int, reason string) *WebhookResponse {
	body, _ := json.Marshal(map[string]any{"ok": false, "error": reason})
	return &WebhookResponse{Status: status, ContentType: "application/json", Body: body}
}

func (g *Gateway) envelope(segments []string) *WebhookResponse {
	body, contentType := g.adapter.FormatReply(segments)
	return &WebhookResponse{Status: http.StatusOK, ContentType: contentType, Body: body}
}

// HandleWebhook runs the full per-delivery state machine. Rejections
// (disabled channel, bad payload, forbidden destination, failed signature)
// come back as non-2xx; everything after the event is accepted resolves to a
// 200 with a text reply, falling back to the configured fallback text when
// processing fails, so the provider does not retry a message that was in
// fact received.
func (g *Gateway) HandleWebhook(ctx context.Context, req *WebhookRequest) *WebhookResponse {
	if !g.cfg.Enabled {
		return jsonError(http.StatusNotFound, "sms channel is disabled")
	}
	if g.adapter == nil {
		return jsonError(http.StatusInternalServerError, "sms provider not configured")
	}

	event, err := g.adapter.ParseInbound(req.Form)
	if err != nil {
		return g.reject(err, "parse inbound")
	}

	if !g.adapter.IsAllowedDestination(event.To) {
		return jsonError(http.StatusForbidden, "destination number not allowed")
	}

	// Unauthorized senders get a canned reply and never reach the queue,
	// the store, or the backend.
	if !g.adapter.IsAllowedSender(event.From) {
		slog.Info("rejected sms from unauthorized sender", "from", event.From)
		return g.envelope(g.segmentReply(g.cfg.UnauthorizedText))
	}

	if err := g.adapter.VerifyRequest(provider.VerifyInput{
		Header:    req.Header,
		URL:       req.URL,
		Params:    req.Form,
		AccountID: event.AccountID,
	}); err != nil {
		return g.reject(err, "verify request")
	}

	key := types.KeyFor(event.Provider, event.AccountID, event.To, event.From)

	done := make(chan string, 1)
	if err := g.queue.Enqueue(key, func(jobCtx context.Context) {
		done <- g.process(jobCtx, key, event)
	}); err != nil {
		slog.Error("enqueue failed", "key", key, "error", err)
		return g.respond(ctx, event, g.cfg.FallbackText)
	}

	select {
	case reply := <-done:
		return g.respond(ctx, event, reply)
	case <-ctx.Done():
		// The request died under us; the queued job still runs and records
		// the exchange, the provider just never sees this envelope.
		return g.envelope(nil)
	}
}

// respond renders the reply either inline in the envelope or, in api reply
// mode, as paced out-of-band sends followed by an empty envelope.
func (g *Gateway) respond(ctx context.Context, event *types.InboundEvent, reply string) *WebhookResponse {
	segments := g.segmentReply(reply)
	if g.cfg.ReplyMode != "api" {
		return g.envelope(segments)
	}

	sent, err := g.adapter.SendOutOfBand(ctx, event, segments)
	if err != nil {
		slog.Error("out-of-band send failed", "sent", sent, "total", len(segments), "error", err)
	}
	return g.envelope(nil)
}

// reject maps an adapter RequestError onto the HTTP response; anything else
// is treated as a server-side misconfiguration.
func (g *Gateway) reject(err error, stage string) *WebhookResponse {
	var reqErr *provider.RequestError
	if errors.As(err, &reqErr) {
		return jsonError(reqErr.Status, reqErr.Reason)
	}
	slog.Error("webhook rejection", "stage", stage, "error", err)
	return jsonError(http.StatusInternalServerError, "internal error")
}

func (g *Gateway) segmentReply(text string) []string {
	normalized := segment.Normalize(text)
	if g.cfg.SequenceLabels {
		return segment.WithSequenceLabels(normalized, g.cfg.MaxSegmentChars)
	}
	return segment.Split(normalized, g.cfg.MaxSegmentChars)
}

// process is the per-conversation unit of work: control commands short
// circuit, everything else goes to the backend. Any failure is absorbed into
// the fallback reply; a delivery that reached this point never turns into a
// provider-visible error.
func (g *Gateway) process(ctx context.Context, key types.ConversationKey, event *types.InboundEvent) string {
	if reply, handled := g.handleCommand(ctx, key, event); handled {
		return reply
	}

	reply, err := g.exchange(ctx, key, event)
	if err != nil {
		slog.Error("message processing failed", "key", key, "message_id", event.MessageID, "error", err)
		return g.cfg.FallbackText
	}
	return reply
}

// exchange resolves the bound conversation (creating one on first contact),
// invokes the backend, and records the exchange on the conversation record.
func (g *Gateway) exchange(ctx context.Context, key types.ConversationKey, event *types.InboundEvent) (string, error) {
	conv, err := g.store.FindByBinding(ctx, key)
	if err != nil {
		return "", fmt.Errorf("resolve binding: %w", err)
	}

	var convID string
	if conv != nil {
		convID = conv.ID
	} else {
		convID, err = g.createBound(ctx, key, event, defaultTitle(event))
		if err != nil {
			return "", err
		}
	}

	reply, err := g.backend.SendMessage(ctx, convID, event.Text, buildSystemPrompt(g.cfg, event), "sms")
	if err != nil {
		return "", fmt.Errorf("backend send: %w", err)
	}

	now := time.Now().UTC()
	if _, err := g.store.Upsert(ctx, convID, func(c *types.Conversation) {
		if c.Channel == "" {
			c.Channel = "sms"
		}
		if c.Title == "" {
			c.Title = defaultTitle(event)
		}
		c.SMS = &types.SMSBinding{
			Provider:             event.Provider,
			ConversationKey:      key,
			AccountID:            event.AccountID,
			From:                 event.From,
			To:                   event.To,
			LastInboundMessageID: event.MessageID,
			LastInboundAt:        now,
			LastInboundText:      event.Text,
			LastReplyAt:          now,
			LastReplyText:        reply,
		}
	}); err != nil {
		return "", fmt.Errorf("record exchange: %w", err)
	}

	return reply, nil
}

// createBound creates a backend conversation and binds it to the key,
// clearing the binding from any previous holder.
func (g *Gateway) createBound(ctx context.Context, key types.ConversationKey, event *types.InboundEvent, title string) (string, error) {
	convID, err := g.backend.CreateConversation(ctx, title, "sms")
	if err != nil {
		return "", fmt.Errorf("create conversation: %w", err)
	}

	if _, err := g.store.Upsert(ctx, convID, func(c *types.Conversation) {
		c.Title = title
		c.Channel = "sms"
		c.SMS = &types.SMSBinding{
			Provider:        event.Provider,
			ConversationKey: key,
			AccountID:       event.AccountID,
			From:            event.From,
			To:              event.To,
		}
	}); err != nil {
		return "", fmt.Errorf("bind conversation: %w", err)
	}
	if err := g.store.ClearBindingsExcept(ctx, key, convID); err != nil {
		return "", fmt.Errorf("clear stale bindings: %w", err)
	}

	slog.Info("bound conversation", "conversation_id", convID, "key", key)
	return convID, nil
}

func defaultTitle(event *types.InboundEvent) string {
	return "SMS with " + event.From
}
