package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"pdv/internal/sale"
	"pdv/pkg/platform/sentinel"
)

// InMemoryStore keeps sales in memory for tests/dev.
type InMemoryStore struct {
	mu    sync.RWMutex
	sales map[uuid.UUID]sale.Sale
	byKey map[string]uuid.UUID
}

// NewInMemoryStore constructs an empty in-memory sale store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sales: make(map[uuid.UUID]sale.Sale),
		byKey: make(map[string]uuid.UUID),
	}
}

func (s *InMemoryStore) CreateHeader(_ context.Context, record sale.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byKey[record.IdempotencyKey]; ok {
		return fmt.Errorf("idempotency key %q: %w", record.IdempotencyKey, sentinel.ErrConflict)
	}
	// The header is stored without its children; AddItems/AddPayments attach
	// them as separate steps, mirroring the SQL write order.
	record.Items = nil
	record.Payments = nil
	s.sales[record.ID] = record
	s.byKey[record.IdempotencyKey] = record.ID
	return nil
}

func (s *InMemoryStore) AddItems(_ context.Context, saleID uuid.UUID, items []sale.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.sales[saleID]
	if !ok {
		return fmt.Errorf("sale %s: %w", saleID, sentinel.ErrNotFound)
	}
	record.Items = append(record.Items, items...)
	s.sales[saleID] = record
	return nil
}

func (s *InMemoryStore) AddPayments(_ context.Context, saleID uuid.UUID, payments []sale.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.sales[saleID]
	if !ok {
		return fmt.Errorf("sale %s: %w", saleID, sentinel.ErrNotFound)
	}
	record.Payments = append(record.Payments, payments...)
	s.sales[saleID] = record
	return nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, saleID uuid.UUID, status sale.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.sales[saleID]
	if !ok {
		return fmt.Errorf("sale %s: %w", saleID, sentinel.ErrNotFound)
	}
	record.Status = status
	s.sales[saleID] = record
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id uuid.UUID) (sale.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.sales[id]; ok {
		return record, nil
	}
	return sale.Sale{}, fmt.Errorf("sale %s: %w", id, sentinel.ErrNotFound)
}

func (s *InMemoryStore) FindByIdempotencyKey(_ context.Context, key string) (sale.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.byKey[key]; ok {
		return s.sales[id], nil
	}
	return sale.Sale{}, fmt.Errorf("idempotency key %q: %w", key, sentinel.ErrNotFound)
}

func (s *InMemoryStore) ListBySession(_ context.Context, sessionID uuid.UUID) ([]sale.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []sale.Sale
	for _, record := range s.sales {
		if record.SessionID == sessionID {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
