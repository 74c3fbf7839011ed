package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/timberline-shop/timberline/internal/domain"
	"github.com/timberline-shop/timberline/internal/logging"
	"github.com/timberline-shop/timberline/internal/store"
)

type orderStore interface {
	GetByID(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error)
	List(ctx context.Context, filter store.ListFilter) ([]*domain.Order, error)
	Update(ctx context.Context, order *domain.Order) error
	Delete(ctx context.Context, orderID uuid.UUID) error
}

// OrderService serves reads and admin-driven status transitions on existing
// orders.
type OrderService struct {
	orders   orderStore
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewOrderService(orders orderStore, notifier Notifier, logger *slog.Logger) *OrderService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &OrderService{
		orders:   orders,
		notifier: notifier,
		logger:   logger.With("component", "order_service"),
		now:      time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *OrderService) WithClock(now func() time.Time) *OrderService {
	s.now = now
	return s
}

// Get resolves an order by internal id or by its human-readable number.
func (s *OrderService) Get(ctx context.Context, key string) (*domain.Order, error) {
	if id, err := uuid.Parse(key); err == nil {
		return s.orders.GetByID(ctx, id)
	}
	return s.orders.GetByNumber(ctx, key)
}

type ListInput struct {
	Status string
	UserID string
	Limit  int
	Offset int
}

func (s *OrderService) List(ctx context.Context, input ListInput) ([]*domain.Order, error) {
	if input.Status != "" {
		if _, ok := domain.ParseOrderStatus(input.Status); !ok {
			return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidOrder, input.Status)
		}
	}
	return s.orders.List(ctx, store.ListFilter{
		Status: input.Status,
		UserID: input.UserID,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
}

type UpdateStatusInput struct {
	Status string
	Note   string
	// CancellationReason is mandatory when Status is cancelled.
	CancellationReason string
	TrackingNumber     string
	EstimatedDelivery  time.Time
	Actor              string
}

// UpdateStatus applies one transition against the order state machine and
// persists it with a version-checked write. Concurrent writers surface
// domain.ErrConflict; callers re-read and retry.
func (s *OrderService) UpdateStatus(ctx context.Context, key string, input UpdateStatusInput) (*domain.Order, error) {
	next, ok := domain.ParseOrderStatus(input.Status)
	if !ok {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidTransition, input.Status)
	}

	order, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if next == domain.StatusCancelled {
		if err := order.Cancel(input.CancellationReason, input.Actor, now); err != nil {
			return nil, err
		}
	} else {
		if err := order.UpdateStatus(next, input.Note, input.Actor, now); err != nil {
			return nil, err
		}
	}

	if input.TrackingNumber != "" {
		order.TrackingNumber = input.TrackingNumber
	}
	if !input.EstimatedDelivery.IsZero() {
		order.EstimatedDelivery = input.EstimatedDelivery
	}

	order.Normalize()
	if err := order.Validate(); err != nil {
		return nil, err
	}
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}

	logging.FromContext(ctx, s.logger).Info("order status updated",
		"order_number", order.OrderNumber,
		"status", order.Status,
		"actor", input.Actor,
	)

	s.notifier.StatusChanged(ctx, order, input.Note)
	return order, nil
}

// Delete removes an order entirely. Administrative escape hatch only; the
// lifecycle itself never deletes.
func (s *OrderService) Delete(ctx context.Context, key string) error {
	order, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := s.orders.Delete(ctx, order.ID); err != nil {
		return err
	}
	logging.FromContext(ctx, s.logger).Info("order deleted", "order_number", order.OrderNumber)
	return nil
}
