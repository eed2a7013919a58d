package identity

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/yeraldo2021/app-delivery-2025/internal/apperr"
)

// MemoryRepository keeps clients in process. Used in development and tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	nextID  int64
	clients map[int64]Client
	byPhone map[string]int64
	creds   map[int64]Credential
}

// NewMemoryRepository builds an in-memory client store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		clients: make(map[int64]Client),
		byPhone: make(map[string]int64),
		creds:   make(map[int64]Credential),
	}
}

func (r *MemoryRepository) UpsertCredential(_ context.Context, phone, pinHash string) (Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	id, ok := r.byPhone[phone]
	if !ok {
		r.nextID++
		id = r.nextID
		r.clients[id] = Client{ID: id, Phone: phone, CreatedAt: now}
		r.byPhone[phone] = id
	}
	r.creds[id] = Credential{ClientID: id, PINHash: pinHash, CreatedAt: now}
	return r.clients[id], nil
}

func (r *MemoryRepository) FindByPhone(_ context.Context, phone string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPhone[phone]
	if !ok {
		return Client{}, fmt.Errorf("client %s: %w", phone, apperr.ErrNotFound)
	}
	return r.clients[id], nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id int64) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[id]
	if !ok {
		return Client{}, fmt.Errorf("client %d: %w", id, apperr.ErrNotFound)
	}
	return client, nil
}

func (r *MemoryRepository) FindCredential(_ context.Context, clientID int64) (Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cred, ok := r.creds[clientID]
	if !ok {
		return Credential{}, fmt.Errorf("credential for client %d: %w", clientID, apperr.ErrNotFound)
	}
	return cred, nil
}

func (r *MemoryRepository) SetBlocked(_ context.Context, clientID int64, blocked bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	client, ok := r.clients[clientID]
	if !ok {
		return fmt.Errorf("client %d: %w", clientID, apperr.ErrNotFound)
	}
	client.Blocked = blocked
	r.clients[clientID] = client
	return nil
}

// RecordOrder folds an accepted order into the client's aggregates. The
// Postgres order repository performs the same update inside its own
// transaction.
func (r *MemoryRepository) RecordOrder(_ context.Context, clientID int64, activity OrderActivity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	client, ok := r.clients[clientID]
	if !ok {
		return fmt.Errorf("client %d: %w", clientID, apperr.ErrNotFound)
	}
	lat, lon, at := activity.Lat, activity.Lon, activity.At.UTC()
	client.OrderCount++
	client.LifetimeValue = math.RoundToEven((client.LifetimeValue+activity.Total)*100) / 100
	client.LastOrderAt = &at
	client.DefaultAddress = activity.Address
	client.LastLat = &lat
	client.LastLon = &lon
	r.clients[clientID] = client
	return nil
}

var _ Repository = (*MemoryRepository)(nil)
