package repository

import (
	"context"
	"sync"

	"github.com/rmarin/leaglink-whatsapp-agent/internal/domain"
)

// MemoryStore keeps transcripts and the message log in process memory.
// It is the default store when no DynamoDB table is configured; contents
// live only for the lifetime of the process.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string][]domain.HistoryEntry
	log      []domain.LogMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string][]domain.HistoryEntry{}}
}

// GetHistory returns up to limit trailing entries for a session, in
// chronological order. The returned slice is a copy.
func (m *MemoryStore) GetHistory(_ context.Context, sessionKey string, limit int) ([]domain.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.sessions[sessionKey]
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]domain.HistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (m *MemoryStore) AppendEntries(_ context.Context, sessionKey string, entries []domain.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionKey] = append(m.sessions[sessionKey], entries...)
	return nil
}

func (m *MemoryStore) Append(_ context.Context, msg domain.LogMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, msg)
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]domain.LogMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.LogMessage, len(m.log))
	copy(out, m.log)
	return out, nil
}

func (m *MemoryStore) GetByID(_ context.Context, id string) (domain.LogMessage, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.log {
		if msg.ID == id {
			return msg, true, nil
		}
	}
	return domain.LogMessage{}, false, nil
}
