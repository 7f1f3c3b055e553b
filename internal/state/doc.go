// Package state provides filesystem-backed storage implementations.
package state

import "github.com/user/smsrelay/internal/types"

// Compile-time interface compliance check.
var _ types.ConversationStore = (*ConversationStore)(nil)
