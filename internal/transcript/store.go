// Package transcript persists per-session chat logs. The store is append-only
// and keyed by session ID; the gateway writes every appended message so a
// transcript survives the WebSocket connection that produced it.
package transcript

import (
	"context"
	"sort"
	"sync"

	"github.com/junghee-19/SignLink/internal/session"
)

// Store is the chat transcript sink.
type Store interface {
	// Append records one message for the session.
	Append(ctx context.Context, sessionID string, msg session.Message) error

	// Messages returns the session's messages in append order.
	Messages(ctx context.Context, sessionID string) ([]session.Message, error)

	// Sessions returns all known session IDs, sorted.
	Sessions(ctx context.Context) ([]string, error)

	// Close releases store resources.
	Close() error
}

// Compile-time interface assertion.
var _ Store = (*MemStore)(nil)

// MemStore keeps transcripts in process memory. Used when no transcript
// database is configured; contents are lost on restart.
type MemStore struct {
	mu   sync.RWMutex
	logs map[string][]session.Message
}

// NewMemStore returns an empty in-memory transcript store.
func NewMemStore() *MemStore {
	return &MemStore{logs: make(map[string][]session.Message)}
}

// Append implements Store.
func (s *MemStore) Append(_ context.Context, sessionID string, msg session.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[sessionID] = append(s.logs[sessionID], msg)
	return nil
}

// Messages implements Store.
func (s *MemStore) Messages(_ context.Context, sessionID string) ([]session.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]session.Message(nil), s.logs[sessionID]...), nil
}

// Sessions implements Store.
func (s *MemStore) Sessions(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.logs))
	for id := range s.logs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close implements Store.
func (s *MemStore) Close() error { return nil }
