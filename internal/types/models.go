// internal/types/models.go
package types

import "time"

// SMSBinding records the association between a conversation and the SMS
// thread that feeds it. At most one conversation holds a binding for a given
// conversation key at a time; rebinding clears it from all other holders.
type SMSBinding struct {
	Provider             string          `json:"provider"`
	ConversationKey      ConversationKey `json:"conversation_key"`
	AccountID            string          `json:"account_id,omitempty"`
	From                 string          `json:"from"`
	To                   string          `json:"to"`
	LastInboundMessageID string          `json:"last_inbound_message_id,omitempty"`
	LastInboundAt        time.Time       `json:"last_inbound_at,omitzero"`
	LastInboundText      string          `json:"last_inbound_text,omitempty"`
	LastReplyAt          time.Time       `json:"last_reply_at,omitzero"`
	LastReplyText        string          `json:"last_reply_text,omitempty"`
}

// Conversation is the durable record for one logical conversation. The id is
// assigned by the backend at creation and never changes.
type Conversation struct {
	ID        string      `json:"id"`
	Title     string      `json:"title,omitempty"`
	Channel   string      `json:"channel,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	SMS       *SMSBinding `json:"sms,omitempty"`
}

// InboundEvent is the canonical form of one webhook delivery, derived by the
// provider adapter. From/To are raw channel addresses; compare them through
// NormalizeAddress.
type InboundEvent struct {
	Provider  string `json:"provider"`
	AccountID string `json:"account_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	From      string `json:"from"`
	To        string `json:"to"`
	Text      string `json:"text"`
}
