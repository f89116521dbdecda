package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"pdv/internal/catalog"
	"pdv/pkg/platform/sentinel"
)

// InMemoryStore keeps products and clients in memory for tests/dev. The
// conditional stock decrement runs under the store lock, which gives the same
// winner-takes-the-last-unit semantics the SQL statement gives in production.
type InMemoryStore struct {
	mu       sync.RWMutex
	products map[uuid.UUID]catalog.Product
	clients  map[uuid.UUID]catalog.Client
}

// NewInMemoryStore constructs an empty in-memory catalog store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		products: make(map[uuid.UUID]catalog.Product),
		clients:  make(map[uuid.UUID]catalog.Client),
	}
}

// SeedProduct inserts or replaces a product. Test and dev wiring only.
func (s *InMemoryStore) SeedProduct(p catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

// SeedClient inserts or replaces a client. Test and dev wiring only.
func (s *InMemoryStore) SeedClient(c catalog.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.ID] = c
}

func (s *InMemoryStore) FindProduct(_ context.Context, id uuid.UUID) (catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.products[id]; ok {
		return p, nil
	}
	return catalog.Product{}, fmt.Errorf("product %s: %w", id, sentinel.ErrNotFound)
}

func (s *InMemoryStore) FindProductByCode(_ context.Context, code string) (catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.Code == code {
			return p, nil
		}
	}
	return catalog.Product{}, fmt.Errorf("product code %q: %w", code, sentinel.ErrNotFound)
}

func (s *InMemoryStore) SearchProducts(_ context.Context, query string, limit int) ([]catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query = strings.ToLower(strings.TrimSpace(query))
	var out []catalog.Product
	for _, p := range s.products {
		if query == "" || strings.Contains(strings.ToLower(p.Name), query) || strings.Contains(strings.ToLower(p.Code), query) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) FindClient(_ context.Context, id uuid.UUID) (catalog.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.clients[id]; ok {
		return c, nil
	}
	return catalog.Client{}, fmt.Errorf("client %s: %w", id, sentinel.ErrNotFound)
}

func (s *InMemoryStore) ListClients(_ context.Context) ([]catalog.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *InMemoryStore) DecrementStock(_ context.Context, id uuid.UUID, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("decrement qty %d: %w", qty, sentinel.ErrInvalidState)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return fmt.Errorf("product %s: %w", id, sentinel.ErrNotFound)
	}
	if p.Stock < qty {
		return fmt.Errorf("product %s stock %d < %d: %w", id, p.Stock, qty, sentinel.ErrConflict)
	}
	p.Stock -= qty
	s.products[id] = p
	return nil
}

func (s *InMemoryStore) IncrementStock(_ context.Context, id uuid.UUID, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("increment qty %d: %w", qty, sentinel.ErrInvalidState)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return fmt.Errorf("product %s: %w", id, sentinel.ErrNotFound)
	}
	p.Stock += qty
	s.products[id] = p
	return nil
}
