package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yeraldo2021/app-delivery-2025/internal/apperr"
)

type entry struct {
	principal Principal
	expires   time.Time
}

// MemoryStore keeps sessions in process.
type MemoryStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]entry
}

// NewMemoryStore builds an in-memory session store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, items: make(map[string]entry)}
}

func (s *MemoryStore) Create(_ context.Context, p Principal) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.items[id] = entry{principal: p, expires: s.now().Add(s.ttl)}
	return id, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok {
		return Principal{}, apperr.ErrUnauthorized
	}
	if !s.now().Before(e.expires) {
		delete(s.items, id)
		return Principal{}, apperr.ErrUnauthorized
	}
	return e.principal, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

var _ Store = (*MemoryStore)(nil)
