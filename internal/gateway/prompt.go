package gateway

import (
	"fmt"
	"strings"

	"github.com/user/smsrelay/internal/config"
	"github.com/user/smsrelay/internal/types"
)

// buildSystemPrompt embeds the channel metadata and reply constraints the
// backend needs to produce SMS-appropriate output.
func buildSystemPrompt(cfg config.SMSConfig, event *types.InboundEvent) string {
	var sb strings.Builder

	sb.WriteString("You are replying over SMS.\n")
	fmt.Fprintf(&sb, "Provider: %s\n", event.Provider)
	if event.AccountID != "" {
		fmt.Fprintf(&sb, "Account: %s\n", event.AccountID)
	}
	fmt.Fprintf(&sb, "The user is texting from %s to %s.\n", event.From, event.To)

	sb.WriteString("Reply in plain text only: no markdown headings, tables, or images. ")
	sb.WriteString("Keep replies short and conversational.")
	if cfg.MaxSegmentChars > 0 {
		fmt.Fprintf(&sb, " Replies longer than %d characters are split into multiple messages.", cfg.MaxSegmentChars)
	}

	return sb.String()
}
