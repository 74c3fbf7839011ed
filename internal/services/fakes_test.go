package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/timberline-shop/timberline/internal/domain"
	"github.com/timberline-shop/timberline/internal/store"
)

// memOrderStore is an in-memory stand-in for store.OrderStore with the same
// uniqueness and versioning semantics.
type memOrderStore struct {
	mu        sync.Mutex
	orders    map[uuid.UUID]*domain.Order
	returnIDs map[string]uuid.UUID

	createErr error
	updateErr error
	// duplicateFailures makes the first N creates fail with
	// ErrDuplicateOrderNumber regardless of content.
	duplicateFailures int
	creates           int
}

func newMemOrderStore() *memOrderStore {
	return &memOrderStore{
		orders:    make(map[uuid.UUID]*domain.Order),
		returnIDs: make(map[string]uuid.UUID),
	}
}

func (m *memOrderStore) Create(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.creates++
	if m.createErr != nil {
		return m.createErr
	}
	if m.duplicateFailures > 0 {
		m.duplicateFailures--
		return fmt.Errorf("%w: %s", domain.ErrDuplicateOrderNumber, order.OrderNumber)
	}
	for _, existing := range m.orders {
		if strings.EqualFold(existing.OrderNumber, order.OrderNumber) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateOrderNumber, order.OrderNumber)
		}
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	order.Version = 1
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	clone := *order
	m.orders[order.ID] = &clone
	return nil
}

func (m *memOrderStore) GetByID(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	clone := *order
	return &clone, nil
}

func (m *memOrderStore) GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, order := range m.orders {
		if strings.EqualFold(order.OrderNumber, orderNumber) {
			clone := *order
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderNumber)
}

func (m *memOrderStore) GetByReturnID(ctx context.Context, returnID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, order := range m.orders {
		for _, request := range order.ReturnRequests {
			if request.ReturnID == returnID {
				clone := *order
				return &clone, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrReturnNotFound, returnID)
}

// AddReturn claims the return id before applying the version-checked write,
// like the real store does inside one transaction. A taken id fails without
// touching the order, leaving the caller free to re-number and retry.
func (m *memOrderStore) AddReturn(ctx context.Context, order *domain.Order, returnID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.returnIDs[returnID]; taken {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateReturnID, returnID)
	}
	if err := m.applyUpdate(order); err != nil {
		return err
	}
	m.returnIDs[returnID] = order.ID
	return nil
}

func (m *memOrderStore) List(ctx context.Context, filter store.ListFilter) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.Order
	for _, order := range m.orders {
		if filter.Status != "" && string(order.Status) != filter.Status {
			continue
		}
		if filter.UserID != "" && order.Party.UserID != filter.UserID {
			continue
		}
		clone := *order
		out = append(out, &clone)
	}
	return out, nil
}

func (m *memOrderStore) Update(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.applyUpdate(order)
}

func (m *memOrderStore) applyUpdate(order *domain.Order) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	existing, ok := m.orders[order.ID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, order.ID)
	}
	if existing.Version != order.Version {
		return fmt.Errorf("%w: order %s", domain.ErrConflict, order.OrderNumber)
	}
	order.Version++
	order.UpdatedAt = time.Now()
	clone := *order
	m.orders[order.ID] = &clone
	return nil
}

func (m *memOrderStore) Delete(ctx context.Context, orderID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[orderID]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	delete(m.orders, orderID)
	return nil
}

// seed bypasses Create-time stamping so tests control timestamps directly.
func (m *memOrderStore) seed(order *domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.Version == 0 {
		order.Version = 1
	}
	for _, request := range order.ReturnRequests {
		m.returnIDs[request.ReturnID] = order.ID
	}
	clone := *order
	m.orders[order.ID] = &clone
}

type fakeNumbers struct {
	next     []string
	fallback string
	calls    int
}

func (f *fakeNumbers) NextOrderNumber(ctx context.Context) string {
	if f.calls < len(f.next) {
		n := f.next[f.calls]
		f.calls++
		return n
	}
	f.calls++
	return "ORD-20260310-001"
}

func (f *fakeNumbers) FallbackOrderNumber() string {
	return f.fallback
}

func (f *fakeNumbers) NextReturnID(ctx context.Context) string {
	if f.calls < len(f.next) {
		n := f.next[f.calls]
		f.calls++
		return n
	}
	f.calls++
	return "RET-20260310-001"
}

func (f *fakeNumbers) Fallback(prefix string) string {
	return f.fallback
}

type fakeCarts struct {
	cleared []string
	err     error
}

func (f *fakeCarts) Clear(ctx context.Context, scope string) error {
	f.cleared = append(f.cleared, scope)
	return f.err
}

type recordingNotifier struct {
	created       int
	statusChanged int
	returnsFiled  int
}

func (n *recordingNotifier) OrderCreated(ctx context.Context, order *domain.Order) { n.created++ }
func (n *recordingNotifier) StatusChanged(ctx context.Context, order *domain.Order, note string) {
	n.statusChanged++
}
func (n *recordingNotifier) ReturnFiled(ctx context.Context, order *domain.Order, request *domain.ReturnRequest) {
	n.returnsFiled++
}

func validAddress() domain.Address {
	return domain.Address{
		Name:       "Jamie Rivera",
		Email:      "jamie@example.com",
		Phone:      "555-0100",
		Street:     "12 Mill Road",
		City:       "Portland",
		PostalCode: "97201",
		Country:    "US",
	}
}
