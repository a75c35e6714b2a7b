package cart

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
)

// ErrCartNotFound indicates no cart exists for the given id.
var ErrCartNotFound = errors.New("cart not found")

// Store is the contract the volatile cart store must satisfy. Contents are
// ephemeral: a cart may disappear between calls, and callers must re-validate
// through BuildSnapshot on every checkout attempt.
type Store interface {
	Get(ctx context.Context, cartID string) ([]RawItem, error)
	Replace(ctx context.Context, cartID string, items []RawItem) error
	Clear(ctx context.Context, cartID string) error
}

// MemoryStore is an in-process Store implementation.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string][]RawItem
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string][]RawItem)}
}

// Get returns a copy of the cart's items, or ErrCartNotFound.
func (s *MemoryStore) Get(_ context.Context, cartID string) ([]RawItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items, ok := s.carts[cartID]
	if !ok {
		return nil, ErrCartNotFound
	}
	out := make([]RawItem, len(items))
	copy(out, items)
	return out, nil
}

// Replace sets the cart's items, creating the cart if needed.
func (s *MemoryStore) Replace(_ context.Context, cartID string, items []RawItem) error {
	cp := make([]RawItem, len(items))
	copy(cp, items)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[cartID] = cp
	return nil
}

// Clear removes the cart. Clearing an absent cart is a no-op.
func (s *MemoryStore) Clear(_ context.Context, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, cartID)
	return nil
}
