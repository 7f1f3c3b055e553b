// internal/state/conversation.go
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/user/smsrelay/internal/types"
)

// ConversationStore is a JSON-file-backed conversation store. Each
// conversation lives in conversations/<sanitized-id>.json under the root.
// Writes go through a temp file plus rename so a concurrent reader never
// observes a partially written record. Unparseable files are quarantined
// (renamed aside with a .corrupt suffix) instead of failing the caller.
type ConversationStore struct {
	root  string
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewConversationStore creates a file-backed ConversationStore rooted at the
// given directory.
func NewConversationStore(root string) *ConversationStore {
	return &ConversationStore{
		root:  root,
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *ConversationStore) conversationsDir() string {
	return filepath.Join(s.root, "conversations")
}

func (s *ConversationStore) path(id string) string {
	return filepath.Join(s.conversationsDir(), sanitizeID(id)+".json")
}

// getLock returns the per-conversation mutex, creating one if needed.
func (s *ConversationStore) getLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sanitizeID(id)
	if lock, ok := s.locks[key]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	s.locks[key] = lock
	return lock
}

// sanitizeID strips characters unsafe for filenames; everything outside
// [A-Za-z0-9._-] becomes an underscore.
func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '_' || r == '-':
			return r
		default:
			return '_'
		}
	}, id)
}

// quarantine moves an unreadable file aside so normal operation continues
// and the artifact remains available for inspection.
func quarantine(path string, cause error) {
	dest := fmt.Sprintf("%s.corrupt-%s", path, time.Now().UTC().Format("20060102T150405.000000000"))
	if err := os.Rename(path, dest); err != nil {
		slog.Error("quarantine rename failed", "path", path, "error", err)
		return
	}
	slog.Warn("quarantined corrupt conversation file", "path", path, "dest", dest, "cause", cause)
}

// readFile parses one conversation file. A parse failure quarantines the
// file and reports ok=false; only real I/O errors are returned.
func (s *ConversationStore) readFile(path string) (*types.Conversation, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read conversation file: %w", err)
	}

	conv, err := decodeConversation(data)
	if err != nil {
		quarantine(path, err)
		return nil, false, nil
	}
	return conv, true, nil
}

// decodeConversation unmarshals strictly: trailing content after the JSON
// document counts as corruption, not as a valid record.
func decodeConversation(data []byte) (*types.Conversation, error) {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	var conv types.Conversation
	if err := dec.Decode(&conv); err != nil {
		return nil, fmt.Errorf("unmarshal conversation: %w", err)
	}
	// Only clean EOF means the document was the whole file; a second value
	// or non-JSON bytes both fail this.
	var trailing json.RawMessage
	if err := dec.Decode(&trailing); err != io.EOF {
		return nil, fmt.Errorf("trailing data after conversation document")
	}
	if conv.ID == "" {
		return nil, fmt.Errorf("conversation document missing id")
	}
	return &conv, nil
}

func (s *ConversationStore) write(conv *types.Conversation) error {
	if err := os.MkdirAll(s.conversationsDir(), 0o755); err != nil {
		return fmt.Errorf("create conversations dir: %w", err)
	}

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}

	// Atomic write: write to temp file then rename
	path := s.path(conv.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp conversation: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp conversation: %w", err)
	}
	return nil
}

// Get returns the conversation with the given id, or nil if it does not
// exist or its file was corrupt (in which case the file is quarantined).
func (s *ConversationStore) Get(_ context.Context, id string) (*types.Conversation, error) {
	lock := s.getLock(id)
	lock.Lock()
	defer lock.Unlock()

	conv, ok, err := s.readFile(s.path(id))
	if err != nil || !ok {
		return nil, err
	}
	return conv, nil
}

// List returns all conversations, most recently updated first. Files that
// fail to parse are quarantined individually and skipped.
func (s *ConversationStore) List(_ context.Context) ([]*types.Conversation, error) {
	entries, err := os.ReadDir(s.conversationsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read conversations dir: %w", err)
	}

	var conversations []*types.Conversation
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		conv, ok, err := s.readFile(filepath.Join(s.conversationsDir(), entry.Name()))
		if err != nil {
			return nil, err
		}
		if ok {
			conversations = append(conversations, conv)
		}
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})
	return conversations, nil
}

// Upsert merges a mutation onto the stored conversation (or a fresh skeleton
// for an unseen id), stamps UpdatedAt, and persists atomically.
func (s *ConversationStore) Upsert(ctx context.Context, id string, mutate func(*types.Conversation)) (*types.Conversation, error) {
	lock := s.getLock(id)
	lock.Lock()
	defer lock.Unlock()

	conv, ok, err := s.readFile(s.path(id))
	if err != nil {
		return nil, err
	}
	if !ok {
		conv = &types.Conversation{ID: id, CreatedAt: time.Now().UTC()}
	}

	if mutate != nil {
		mutate(conv)
	}
	conv.ID = id
	conv.UpdatedAt = time.Now().UTC()

	if err := s.write(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// Delete removes the conversation record for id. Returns os.ErrNotExist
// when no record with that id is stored.
func (s *ConversationStore) Delete(_ context.Context, id string) error {
	lock := s.getLock(id)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return os.ErrNotExist
		}
		return fmt.Errorf("remove conversation file: %w", err)
	}
	return nil
}

// FindByBinding returns the conversation currently bound to the given key,
// or nil if no conversation holds it.
func (s *ConversationStore) FindByBinding(ctx context.Context, key types.ConversationKey) (*types.Conversation, error) {
	conversations, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, conv := range conversations {
		if conv.SMS != nil && conv.SMS.ConversationKey == key {
			return conv, nil
		}
	}
	return nil, nil
}

// ClearBindingsExcept removes the SMS binding for key from every
// conversation other than keepID. Rebinding a key to a new conversation must
// leave exactly one holder.
func (s *ConversationStore) ClearBindingsExcept(ctx context.Context, key types.ConversationKey, keepID string) error {
	conversations, err := s.List(ctx)
	if err != nil {
		return err
	}
	for _, conv := range conversations {
		if conv.ID == keepID || conv.SMS == nil || conv.SMS.ConversationKey != key {
			continue
		}
		if _, err := s.Upsert(ctx, conv.ID, func(c *types.Conversation) {
			c.SMS = nil
		}); err != nil {
			return fmt.Errorf("clear binding on %s: %w", conv.ID, err)
		}
	}
	return nil
}
