package store

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"pdv/internal/catalog"
	"pdv/pkg/platform/sentinel"
)

// =============================================================================
// In-Memory Catalog Store Suite
// =============================================================================

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
}

func (s *MemoryStoreSuite) seed(name, code string, stock int) catalog.Product {
	p := catalog.Product{
		ID:    uuid.New(),
		Name:  name,
		Code:  code,
		Price: decimal.RequireFromString("1.00"),
		Stock: stock,
	}
	s.store.SeedProduct(p)
	return p
}

func (s *MemoryStoreSuite) TestFindProduct() {
	ctx := context.Background()
	p := s.seed("coffee", "C-1", 5)

	found, err := s.store.FindProduct(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(p.ID, found.ID)

	_, err = s.store.FindProduct(ctx, uuid.New())
	s.ErrorIs(err, sentinel.ErrNotFound)

	byCode, err := s.store.FindProductByCode(ctx, "C-1")
	s.Require().NoError(err)
	s.Equal(p.ID, byCode.ID)
}

func (s *MemoryStoreSuite) TestSearchProducts() {
	ctx := context.Background()
	s.seed("espresso blend", "E-1", 5)
	s.seed("decaf blend", "D-1", 5)
	s.seed("tea", "T-1", 5)

	found, err := s.store.SearchProducts(ctx, "blend", 10)
	s.Require().NoError(err)
	s.Len(found, 2)

	found, err = s.store.SearchProducts(ctx, "blend", 1)
	s.Require().NoError(err)
	s.Len(found, 1)
}

func (s *MemoryStoreSuite) TestDecrementStock() {
	ctx := context.Background()
	p := s.seed("coffee", "C-1", 3)

	s.Run("conditional decrement succeeds within stock", func() {
		s.NoError(s.store.DecrementStock(ctx, p.ID, 2))
		live, _ := s.store.FindProduct(ctx, p.ID)
		s.Equal(1, live.Stock)
	})

	s.Run("conflict when stock is short, state untouched", func() {
		err := s.store.DecrementStock(ctx, p.ID, 2)
		s.ErrorIs(err, sentinel.ErrConflict)
		live, _ := s.store.FindProduct(ctx, p.ID)
		s.Equal(1, live.Stock)
	})

	s.Run("increment restores", func() {
		s.NoError(s.store.IncrementStock(ctx, p.ID, 2))
		live, _ := s.store.FindProduct(ctx, p.ID)
		s.Equal(3, live.Stock)
	})
}

func (s *MemoryStoreSuite) TestDecrementStockRace() {
	ctx := context.Background()
	p := s.seed("last-unit", "L-1", 1)

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.store.DecrementStock(ctx, p.ID, 1)
		}()
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			s.ErrorIs(err, sentinel.ErrConflict)
		}
	}
	s.Equal(1, wins)

	live, err := s.store.FindProduct(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(0, live.Stock)
}
