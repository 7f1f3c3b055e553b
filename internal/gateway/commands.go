package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/user/smsrelay/internal/types"
)

// In-band control commands. Matching is case-sensitive; the command must be
// the entire message or a prefix followed by whitespace.
const (
	cmdHelp   = "/help"
	cmdStatus = "/status"
	cmdNew    = "/new"
)

const helpText = "Commands:\n" +
	"/help - show this message\n" +
	"/status - show the current conversation\n" +
	"/new [title] - start a new conversation\n" +
	"Anything else is sent to the assistant."

// parseCommand reports whether text is a control command, and the argument
// text following it.
func parseCommand(text string) (cmd, arg string, ok bool) {
	t := strings.TrimSpace(text)
	for _, c := range []string{cmdHelp, cmdStatus, cmdNew} {
		if t == c {
			return c, "", true
		}
		if strings.HasPrefix(t, c) && len(t) > len(c) && unicode.IsSpace(rune(t[len(c)])) {
			return c, strings.TrimSpace(t[len(c):]), true
		}
	}
	return "", "", false
}

// handleCommand intercepts control commands before they reach the backend.
// Only /new touches conversation state.
func (g *Gateway) handleCommand(ctx context.Context, key types.ConversationKey, event *types.InboundEvent) (string, bool) {
	cmd, arg, ok := parseCommand(event.Text)
	if !ok {
		return "", false
	}

	switch cmd {
	case cmdHelp:
		return helpText, true

	case cmdStatus:
		conv, err := g.store.FindByBinding(ctx, key)
		if err != nil {
			slog.Error("status lookup failed", "key", key, "error", err)
			return g.cfg.FallbackText, true
		}
		if conv == nil {
			return "No conversation yet. Your next message will start one.", true
		}
		title := conv.Title
		if title == "" {
			title = "(untitled)"
		}
		return fmt.Sprintf("Current conversation: %s\nTitle: %s", conv.ID, title), true

	case cmdNew:
		title := arg
		if title == "" {
			title = defaultTitle(event)
		}
		convID, err := g.createBound(ctx, key, event, title)
		if err != nil {
			slog.Error("start new conversation failed", "key", key, "error", err)
			return g.cfg.FallbackText, true
		}
		return fmt.Sprintf("Started a new conversation: %s", convID), true
	}

	return "", false
}
