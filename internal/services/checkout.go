package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/timberline-shop/timberline/internal/domain"
	"github.com/timberline-shop/timberline/internal/logging"
	"github.com/timberline-shop/timberline/internal/pricing"
)

// Attempts at a day-sequenced order number before falling back to the
// guaranteed-unique form. Conflicts only happen when two checkouts race the
// same daily counter, so a small bound is plenty.
const maxNumberingAttempts = 3

type checkoutOrderStore interface {
	Create(ctx context.Context, order *domain.Order) error
}

type orderNumberSource interface {
	NextOrderNumber(ctx context.Context) string
	FallbackOrderNumber() string
}

type cartClearer interface {
	Clear(ctx context.Context, scope string) error
}

// Notifier informs the customer of order events. Implementations must never
// block or fail the triggering operation.
type Notifier interface {
	OrderCreated(ctx context.Context, order *domain.Order)
	StatusChanged(ctx context.Context, order *domain.Order, note string)
	ReturnFiled(ctx context.Context, order *domain.Order, request *domain.ReturnRequest)
}

type noopNotifier struct{}

func (noopNotifier) OrderCreated(context.Context, *domain.Order)                     {}
func (noopNotifier) StatusChanged(context.Context, *domain.Order, string)            {}
func (noopNotifier) ReturnFiled(context.Context, *domain.Order, *domain.ReturnRequest) {}

var addressValidator = validator.New()

// CheckoutService turns a cart plus shipping and payment selections into a
// persisted, financially reconciled order.
type CheckoutService struct {
	orders   checkoutOrderStore
	numbers  orderNumberSource
	carts    cartClearer
	rates    *pricing.Table
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewCheckoutService(orders checkoutOrderStore, numbers orderNumberSource, carts cartClearer, rates *pricing.Table, notifier Notifier, logger *slog.Logger) *CheckoutService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CheckoutService{
		orders:   orders,
		numbers:  numbers,
		carts:    carts,
		rates:    rates,
		notifier: notifier,
		logger:   logger.With("component", "checkout_service"),
		now:      time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *CheckoutService) WithClock(now func() time.Time) *CheckoutService {
	s.now = now
	return s
}

type SettleInput struct {
	Items           []domain.Item
	ShippingMethod  string
	ShippingAddress domain.Address
	PaymentMethod   string
	// UserID is the opaque, already-verified account reference from the
	// identity service. Empty means guest checkout.
	UserID       string
	CustomerNote string
	// CartScope, when set, names the cart to clear after the order persists.
	CartScope string
}

// Settle validates the cart, recomputes every financial figure from the item
// snapshots, assigns an order number, and persists the order. Client-supplied
// totals are never trusted. The source cart is cleared only after the order
// is durable.
func (s *CheckoutService) Settle(ctx context.Context, input SettleInput) (*domain.Order, error) {
	logger := logging.FromContext(ctx, s.logger)

	if len(input.Items) == 0 {
		return nil, domain.ErrEmptyCart
	}
	for i, item := range input.Items {
		if strings.TrimSpace(item.ProductRef) == "" {
			return nil, fmt.Errorf("%w: item %d has no product reference", domain.ErrInvalidOrder, i)
		}
		if item.Quantity < 1 {
			return nil, fmt.Errorf("%w: item %d quantity must be at least 1", domain.ErrInvalidOrder, i)
		}
		if item.UnitPriceCents < 0 {
			return nil, fmt.Errorf("%w: item %d unit price must not be negative", domain.ErrInvalidOrder, i)
		}
	}
	if err := addressValidator.Struct(input.ShippingAddress); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidAddress, err)
	}
	if strings.TrimSpace(input.PaymentMethod) == "" {
		return nil, fmt.Errorf("%w: payment method is required", domain.ErrInvalidOrder)
	}

	now := s.now()
	order := &domain.Order{
		Party:           s.resolveParty(input),
		Items:           append([]domain.Item(nil), input.Items...),
		ShippingAddress: input.ShippingAddress,
		ShippingMethod:  s.rates.NormalizeShippingMethod(input.ShippingMethod),
		PaymentMethod:   input.PaymentMethod,
		Status:          domain.StatusPending,
		CustomerNote:    input.CustomerNote,
		StatusHistory: []domain.StatusHistoryEntry{{
			Status:    domain.StatusPending,
			Note:      "Order created",
			Timestamp: now,
		}},
	}
	order.Normalize()
	order.Financials.ShippingCents = s.rates.ShippingCents(input.ShippingMethod)
	order.Financials.TaxCents = s.rates.TaxCents(order.Financials.SubtotalCents)
	order.Normalize()

	if err := order.Validate(); err != nil {
		return nil, err
	}

	if err := s.persistWithNumbering(ctx, order); err != nil {
		return nil, err
	}

	logger.Info("order created",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"party_kind", order.Party.Kind,
		"total_cents", order.Financials.TotalCents,
	)

	if input.CartScope != "" {
		if err := s.carts.Clear(ctx, input.CartScope); err != nil {
			// The order is already durable; a stale cart is recoverable.
			logger.Warn("failed to clear cart after checkout", "error", err, "order_number", order.OrderNumber)
		}
	}

	s.notifier.OrderCreated(ctx, order)
	return order, nil
}

// persistWithNumbering runs the count-then-format numbering scheme with a
// bounded retry: a uniqueness conflict means a concurrent checkout won the
// same sequence slot, so the count is re-run. After the retry budget the
// guaranteed-unique fallback identifier is used so numbering trouble never
// fails a checkout.
func (s *CheckoutService) persistWithNumbering(ctx context.Context, order *domain.Order) error {
	for attempt := 0; attempt < maxNumberingAttempts; attempt++ {
		order.OrderNumber = s.numbers.NextOrderNumber(ctx)
		err := s.orders.Create(ctx, order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrDuplicateOrderNumber) {
			return err
		}
		logging.FromContext(ctx, s.logger).Warn("order number conflict, retrying",
			"order_number", order.OrderNumber, "attempt", attempt+1)
	}

	order.OrderNumber = s.numbers.FallbackOrderNumber()
	if err := s.orders.Create(ctx, order); err != nil {
		return fmt.Errorf("failed to persist order after numbering retries: %w", err)
	}
	return nil
}

func (s *CheckoutService) resolveParty(input SettleInput) domain.Party {
	if userID := strings.TrimSpace(input.UserID); userID != "" {
		return domain.AccountParty(userID)
	}
	return domain.GuestParty(domain.GuestContact{
		Email: input.ShippingAddress.Email,
		Name:  input.ShippingAddress.Name,
		Phone: input.ShippingAddress.Phone,
	})
}
