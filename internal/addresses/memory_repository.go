package addresses

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/yeraldo2021/app-delivery-2025/internal/apperr"
)

// MemoryRepository keeps addresses in process.
type MemoryRepository struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]Address
}

// NewMemoryRepository builds an in-memory address store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[int64]Address)}
}

func (r *MemoryRepository) List(_ context.Context, clientID int64) ([]Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := []Address{}
	for _, a := range r.items {
		if a.ClientID == clientID {
			list = append(list, a)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list, nil
}

func (r *MemoryRepository) Create(_ context.Context, addr Address) (Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, a := range r.items {
		if a.ClientID == addr.ClientID {
			count++
		}
	}
	if count >= MaxPerClient {
		return Address{}, ErrLimitReached
	}
	r.nextID++
	now := time.Now().UTC()
	addr.ID = r.nextID
	addr.CreatedAt = now
	addr.UpdatedAt = now
	r.items[addr.ID] = addr
	return addr, nil
}

func (r *MemoryRepository) Update(_ context.Context, clientID int64, upd Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[upd.ID]
	if !ok || a.ClientID != clientID {
		return fmt.Errorf("address %d: %w", upd.ID, apperr.ErrNotFound)
	}
	a.Alias = upd.Alias
	if upd.Address != "" {
		a.Address = upd.Address
	}
	if upd.Lat != nil {
		a.Lat = *upd.Lat
	}
	if upd.Lon != nil {
		a.Lon = *upd.Lon
	}
	a.UpdatedAt = time.Now().UTC()
	r.items[a.ID] = a
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, clientID, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok || a.ClientID != clientID {
		return fmt.Errorf("address %d: %w", id, apperr.ErrNotFound)
	}
	delete(r.items, id)
	return nil
}

var _ Repository = (*MemoryRepository)(nil)
