package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/timberline-shop/timberline/internal/domain"
	"github.com/timberline-shop/timberline/internal/logging"
	"github.com/timberline-shop/timberline/internal/sequence"
)

// ReturnWindow is how long after delivery a return may be filed. A filing at
// exactly the boundary is accepted.
const ReturnWindow = 30 * 24 * time.Hour

const maxReturnIDAttempts = 3

type returnOrderStore interface {
	GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error)
	GetByReturnID(ctx context.Context, returnID string) (*domain.Order, error)
	AddReturn(ctx context.Context, order *domain.Order, returnID string) error
	Update(ctx context.Context, order *domain.Order) error
}

type returnIDSource interface {
	NextReturnID(ctx context.Context) string
	Fallback(prefix string) string
}

// ReturnService files and processes return requests against delivered orders.
type ReturnService struct {
	orders   returnOrderStore
	ids      returnIDSource
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewReturnService(orders returnOrderStore, ids returnIDSource, notifier Notifier, logger *slog.Logger) *ReturnService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ReturnService{
		orders:   orders,
		ids:      ids,
		notifier: notifier,
		logger:   logger.With("component", "return_service"),
		now:      time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *ReturnService) WithClock(now func() time.Time) *ReturnService {
	s.now = now
	return s
}

// ReturnReceipt is the customer-facing confirmation of a filed return.
type ReturnReceipt struct {
	ReturnID    string `json:"return_id"`
	OrderNumber string `json:"order_number"`
}

// FileReturn appends a return request covering every item of the order. The
// top-level transition to return_requested happens at most once: further
// filings add return requests without duplicating status history.
func (s *ReturnService) FileReturn(ctx context.Context, orderNumber, reason, description string) (*ReturnReceipt, error) {
	parsedReason, ok := domain.ParseReturnReason(reason)
	if !ok {
		return nil, fmt.Errorf("%w: unknown return reason %q", domain.ErrInvalidOrder, reason)
	}
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("%w: return description is required", domain.ErrInvalidOrder)
	}

	order, err := s.orders.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	now := s.now()
	windowStart := order.DeliveredAt
	if windowStart.IsZero() {
		windowStart = order.CreatedAt
	}
	if now.Sub(windowStart) > ReturnWindow {
		return nil, fmt.Errorf("%w: delivered %s", domain.ErrReturnWindowExpired, windowStart.Format(time.DateOnly))
	}

	if order.Status != domain.StatusDelivered && order.Status != domain.StatusReturnRequested {
		return nil, fmt.Errorf("%w: order is %s", domain.ErrIneligibleStatus, order.Status)
	}

	request := domain.ReturnRequest{
		Reason:      parsedReason,
		Description: description,
		Status:      domain.ReturnPending,
		RequestedAt: now,
	}
	for _, item := range order.Items {
		request.Items = append(request.Items, domain.ReturnItem{
			ProductRef:  item.ProductRef,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Reason:      parsedReason,
			Status:      domain.ReturnPending,
		})
	}
	order.ReturnRequests = append(order.ReturnRequests, request)

	if order.Status != domain.StatusReturnRequested {
		if err := order.UpdateStatus(domain.StatusReturnRequested, "Return requested by customer", "", now); err != nil {
			return nil, err
		}
	}

	if err := s.persistReturn(ctx, order); err != nil {
		return nil, err
	}
	request = order.ReturnRequests[len(order.ReturnRequests)-1]

	logging.FromContext(ctx, s.logger).Info("return filed",
		"return_id", request.ReturnID,
		"order_number", order.OrderNumber,
		"reason", parsedReason,
	)

	s.notifier.ReturnFiled(ctx, order, &request)
	return &ReturnReceipt{
		ReturnID:    request.ReturnID,
		OrderNumber: order.OrderNumber,
	}, nil
}

// GetReturn looks a return request up by its id, without needing the parent
// order number.
func (s *ReturnService) GetReturn(ctx context.Context, returnID string) (*domain.Order, *domain.ReturnRequest, error) {
	order, err := s.orders.GetByReturnID(ctx, returnID)
	if err != nil {
		return nil, nil, err
	}
	request, ok := order.FindReturn(returnID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrReturnNotFound, returnID)
	}
	return order, request, nil
}

type ProcessReturnInput struct {
	Status         string
	RefundCents    int
	AdminNotes     string
	TrackingNumber string
	Actor          string
}

// ProcessReturn advances a return request through its own state machine:
// pending to approved or rejected, approved to processed, processed to
// refunded. ProcessedAt is stamped on the first transition out of pending.
func (s *ReturnService) ProcessReturn(ctx context.Context, returnID string, input ProcessReturnInput) (*domain.ReturnRequest, error) {
	next, ok := domain.ParseReturnStatus(input.Status)
	if !ok {
		return nil, fmt.Errorf("%w: unknown return status %q", domain.ErrInvalidTransition, input.Status)
	}

	order, err := s.orders.GetByReturnID(ctx, returnID)
	if err != nil {
		return nil, err
	}
	request, found := order.FindReturn(returnID)
	if !found {
		return nil, fmt.Errorf("%w: %s", domain.ErrReturnNotFound, returnID)
	}

	if !request.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: return %s -> %s", domain.ErrInvalidTransition, request.Status, next)
	}

	if request.Status == domain.ReturnPending {
		request.ProcessedAt = s.now()
	}
	request.Status = next
	for i := range request.Items {
		request.Items[i].Status = next
	}
	if input.RefundCents > 0 {
		request.RefundCents = input.RefundCents
	}
	if input.AdminNotes != "" {
		request.AdminNotes = input.AdminNotes
	}
	if input.TrackingNumber != "" {
		request.TrackingNumber = input.TrackingNumber
	}

	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}

	logging.FromContext(ctx, s.logger).Info("return processed",
		"return_id", returnID,
		"status", next,
		"actor", input.Actor,
	)
	return request, nil
}

// persistReturn mints a day-sequenced return id and writes the order back
// through the store's atomic id claim. Return ids are unique across the whole
// system, not per order, so two filings against different orders can race on
// the same daily count; the loser re-numbers up to maxReturnIDAttempts times
// before switching to the timestamped fallback form.
func (s *ReturnService) persistReturn(ctx context.Context, order *domain.Order) error {
	request := &order.ReturnRequests[len(order.ReturnRequests)-1]

	for attempt := 0; attempt < maxReturnIDAttempts; attempt++ {
		request.ReturnID = s.ids.NextReturnID(ctx)
		err := s.orders.AddReturn(ctx, order, request.ReturnID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrDuplicateReturnID) {
			return err
		}
		logging.FromContext(ctx, s.logger).Warn("return id conflict, retrying",
			"return_id", request.ReturnID, "attempt", attempt+1)
	}

	request.ReturnID = s.ids.Fallback(sequence.ReturnPrefix)
	if err := s.orders.AddReturn(ctx, order, request.ReturnID); err != nil {
		return fmt.Errorf("failed to persist return after id retries: %w", err)
	}
	return nil
}
