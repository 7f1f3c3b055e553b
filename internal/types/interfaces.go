// internal/types/interfaces.go
package types

import "context"

type ConversationStore interface {
	Get(ctx context.Context, id string) (*Conversation, error)
	List(ctx context.Context) ([]*Conversation, error)
	Upsert(ctx context.Context, id string, mutate func(*Conversation)) (*Conversation, error)
	FindByBinding(ctx context.Context, key ConversationKey) (*Conversation, error)
	ClearBindingsExcept(ctx context.Context, key ConversationKey, keepID string) error
}

// Backend is the conversational engine that produces replies. It lives in a
// separate process; everything here reaches it over its HTTP contract.
type Backend interface {
	CreateConversation(ctx context.Context, title, channel string) (string, error)
	SendMessage(ctx context.Context, conversationID, text, system, channel string) (string, error)
}
