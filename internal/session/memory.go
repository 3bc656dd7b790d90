package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	data      map[string]interface{}
	expiresAt time.Time
}

// MemoryStore is an in-process session store. Expired entries are dropped
// lazily on read and by a periodic sweep.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
	done     chan struct{}
	once     sync.Once
}

// NewMemoryStore creates a memory store with a background sweep.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]memoryEntry),
		done:     make(chan struct{}),
	}
	go s.sweep()
	return s
}

// Get returns a copy of the session mapping, or nil when absent/expired.
func (s *MemoryStore) Get(_ context.Context, id string) (map[string]interface{}, error) {
	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return nil, nil
	}

	out := make(map[string]interface{}, len(entry.data))
	for k, v := range entry.data {
		out[k] = v
	}
	return out, nil
}

// Set stores a copy of the session mapping.
func (s *MemoryStore) Set(_ context.Context, id string, data map[string]interface{}, ttl time.Duration) error {
	cp := make(map[string]interface{}, len(data))
	for k, v := range data {
		cp[k] = v
	}

	entry := memoryEntry{data: cp}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	s.mu.Lock()
	s.sessions[id] = entry
	s.mu.Unlock()
	return nil
}

// Delete removes a session.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// Close stops the background sweep.
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *MemoryStore) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for id, entry := range s.sessions {
				if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
					delete(s.sessions, id)
				}
			}
			s.mu.Unlock()
		}
	}
}
