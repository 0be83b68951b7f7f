// Package memory is an in-process StockStore used by tests and local runs.
package memory

import (
	"context"
	"sync"

	"github.com/dmehra2102/storefront-fulfillment/internal/inventory/domain"
	"github.com/dmehra2102/storefront-fulfillment/pkg/apperr"
)

type Store struct {
	mu       sync.Mutex
	products map[string]domain.Product
}

func NewStore(products ...domain.Product) *Store {
	s := &Store{products: make(map[string]domain.Product, len(products))}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *Store) Put(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *Store) DecrementIfAvailable(ctx context.Context, productID string, qty int) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return domain.Product{}, apperr.ProductNotFound(productID)
	}
	if p.Stock < qty {
		return domain.Product{}, apperr.InsufficientStock(productID, p.Stock, qty)
	}
	p.Stock -= qty
	s.products[productID] = p
	return p, nil
}

func (s *Store) Increment(ctx context.Context, productID string, qty int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return apperr.ProductNotFound(productID)
	}
	p.Stock += qty
	s.products[productID] = p
	return nil
}

func (s *Store) Get(ctx context.Context, productID string) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return domain.Product{}, apperr.ProductNotFound(productID)
	}
	return p, nil
}
