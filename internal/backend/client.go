// Package backend is the HTTP client for the conversational backend that
// replies to relayed SMS messages.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/user/smsrelay/internal/types"
)

// Client implements types.Backend against the backend's JSON API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ types.Backend = (*Client)(nil)

// New creates a backend client for the given base URL. apiKey may be empty
// for backends that do not require auth.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// createConversationRequest is the body for POST /v1/conversations.
type createConversationRequest struct {
	Title   string `json:"title,omitempty"`
	Channel string `json:"channel,omitempty"`
}

type createConversationResponse struct {
	ID string `json:"id"`
}

// sendMessageRequest is the body for POST /v1/messages.
type sendMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
	System         string `json:"system,omitempty"`
	Channel        string `json:"channel,omitempty"`
}

type sendMessageResponse struct {
	Reply string `json:"reply"`
}

// apiError is the backend's error payload.
type apiError struct {
	Error string `json:"error"`
}

// CreateConversation creates a conversation and returns its id.
func (c *Client) CreateConversation(ctx context.Context, title, channel string) (string, error) {
	var out createConversationResponse
	err := c.post(ctx, "/v1/conversations", createConversationRequest{
		Title:   title,
		Channel: channel,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("backend returned no conversation id")
	}
	return out.ID, nil
}

// SendMessage posts a user message into a conversation and returns the
// assistant's reply text.
func (c *Client) SendMessage(ctx context.Context, conversationID, text, system, channel string) (string, error) {
	var out sendMessageResponse
	err := c.post(ctx, "/v1/messages", sendMessageRequest{
		ConversationID: conversationID,
		Text:           text,
		System:         system,
		Channel:        channel,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Reply, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("backend %s: %s (status %d)", path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("backend %s: status %d", path, resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}
