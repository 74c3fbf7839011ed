// Package cart holds pre-checkout cart state and the login-time merge of a
// guest cart into an account cart.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/timberline-shop/timberline/internal/cache"
	"github.com/timberline-shop/timberline/internal/domain"
)

// Carts are scratch state; abandoned ones expire on their own.
const cartTTL = 30 * 24 * time.Hour

// Merge folds a guest cart into an account cart: lines for the same product
// sum their quantities, guest-only lines are appended. Account ordering is
// preserved. Pure function; callers own persistence.
func Merge(guest, account []domain.Item) []domain.Item {
	merged := make([]domain.Item, len(account))
	copy(merged, account)

	index := make(map[string]int, len(merged))
	for i, item := range merged {
		index[item.ProductRef] = i
	}

	for _, item := range guest {
		if i, ok := index[item.ProductRef]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductRef] = len(merged)
		merged = append(merged, item)
	}
	return merged
}

// Store keeps carts keyed by scope: the account id for signed-in shoppers, an
// opaque cart token for guests.
type Store struct {
	provider cache.Provider
}

func NewStore(provider cache.Provider) *Store {
	return &Store{provider: provider}
}

// Get returns the cart for a scope. A missing cart is an empty cart.
func (s *Store) Get(ctx context.Context, scope string) ([]domain.Item, error) {
	raw, err := s.provider.Get(ctx, cache.CartKey(scope))
	if errors.Is(err, cache.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}

	var items []domain.Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}
	return items, nil
}

func (s *Store) Save(ctx context.Context, scope string, items []domain.Item) error {
	if items == nil {
		items = []domain.Item{}
	}
	encoded, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	if err := s.provider.Set(ctx, cache.CartKey(scope), string(encoded), cartTTL); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, scope string) error {
	if err := s.provider.Delete(ctx, cache.CartKey(scope)); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// ReconcileOnLogin merges the guest-scoped cart into the account-scoped cart
// and discards the guest scope. Runs once, at the moment a guest signs in.
func (s *Store) ReconcileOnLogin(ctx context.Context, guestScope, accountScope string) ([]domain.Item, error) {
	guest, err := s.Get(ctx, guestScope)
	if err != nil {
		return nil, err
	}
	account, err := s.Get(ctx, accountScope)
	if err != nil {
		return nil, err
	}

	merged := Merge(guest, account)
	if err := s.Save(ctx, accountScope, merged); err != nil {
		return nil, err
	}
	if err := s.Clear(ctx, guestScope); err != nil {
		return nil, err
	}
	return merged, nil
}
