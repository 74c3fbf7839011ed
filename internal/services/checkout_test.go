package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/timberline-shop/timberline/internal/domain"
	"github.com/timberline-shop/timberline/internal/pricing"
)

func newCheckout(orders *memOrderStore, numbers *fakeNumbers, carts *fakeCarts, notifier Notifier) *CheckoutService {
	return NewCheckoutService(orders, numbers, carts, pricing.Default(), notifier, nil).
		WithClock(func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) })
}

func TestSettleComputesFinancials(t *testing.T) {
	t.Parallel()

	orders := newMemOrderStore()
	notifier := &recordingNotifier{}
	svc := newCheckout(orders, &fakeNumbers{}, &fakeCarts{}, notifier)

	order, err := svc.Settle(context.Background(), SettleInput{
		Items: []domain.Item{
			{ProductRef: "walnut-board-L", ProductName: "Walnut Cutting Board", Quantity: 1, UnitPriceCents: 2500},
		},
		ShippingMethod:  "standard",
		ShippingAddress: validAddress(),
		PaymentMethod:   "card",
	})
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}

	f := order.Financials
	if f.SubtotalCents != 2500 {
		t.Errorf("subtotal = %d, want 2500", f.SubtotalCents)
	}
	if f.ShippingCents != 1500 {
		t.Errorf("shipping = %d, want 1500", f.ShippingCents)
	}
	if f.TaxCents != 200 {
		t.Errorf("tax = %d, want 200", f.TaxCents)
	}
	if f.TotalCents != 4200 {
		t.Errorf("total = %d, want 4200", f.TotalCents)
	}
	if order.Status != domain.StatusPending {
		t.Errorf("status = %s, want pending", order.Status)
	}
	if order.OrderNumber != "ORD-20260310-001" {
		t.Errorf("order number = %q", order.OrderNumber)
	}
	if len(order.StatusHistory) != 1 || order.StatusHistory[0].Status != domain.StatusPending {
		t.Errorf("status history = %+v", order.StatusHistory)
	}
	if notifier.created != 1 {
		t.Errorf("notifier.created = %d, want 1", notifier.created)
	}
}

func TestSettleIgnoresClientSuppliedTotals(t *testing.T) {
	t.Parallel()

	svc := newCheckout(newMemOrderStore(), &fakeNumbers{}, &fakeCarts{}, nil)

	order, err := svc.Settle(context.Background(), SettleInput{
		Items: []domain.Item{
			// SubtotalCents lies; it must be recomputed from price and quantity.
			{ProductRef: "oak-shelf", Quantity: 2, UnitPriceCents: 4500, SubtotalCents: 1},
		},
		ShippingAddress: validAddress(),
		PaymentMethod:   "card",
	})
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if order.Items[0].SubtotalCents != 9000 {
		t.Fatalf("item subtotal = %d, want 9000", order.Items[0].SubtotalCents)
	}
}

func TestSettleValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   SettleInput
		wantErr error
	}{
		{
			name:    "empty cart",
			input:   SettleInput{ShippingAddress: validAddress(), PaymentMethod: "card"},
			wantErr: domain.ErrEmptyCart,
		},
		{
			name: "item without product reference",
			input: SettleInput{
				Items:           []domain.Item{{Quantity: 1, UnitPriceCents: 100}},
				ShippingAddress: validAddress(),
				PaymentMethod:   "card",
			},
			wantErr: domain.ErrInvalidOrder,
		},
		{
			name: "zero quantity",
			input: SettleInput{
				Items:           []domain.Item{{ProductRef: "oak-shelf", Quantity: 0, UnitPriceCents: 100}},
				ShippingAddress: validAddress(),
				PaymentMethod:   "card",
			},
			wantErr: domain.ErrInvalidOrder,
		},
		{
			name: "missing address fields",
			input: SettleInput{
				Items:           []domain.Item{{ProductRef: "oak-shelf", Quantity: 1, UnitPriceCents: 100}},
				ShippingAddress: domain.Address{Name: "Jamie Rivera"},
				PaymentMethod:   "card",
			},
			wantErr: domain.ErrInvalidAddress,
		},
		{
			name: "bad email",
			input: SettleInput{
				Items: []domain.Item{{ProductRef: "oak-shelf", Quantity: 1, UnitPriceCents: 100}},
				ShippingAddress: func() domain.Address {
					a := validAddress()
					a.Email = "not-an-email"
					return a
				}(),
				PaymentMethod: "card",
			},
			wantErr: domain.ErrInvalidAddress,
		},
		{
			name: "missing payment method",
			input: SettleInput{
				Items:           []domain.Item{{ProductRef: "oak-shelf", Quantity: 1, UnitPriceCents: 100}},
				ShippingAddress: validAddress(),
			},
			wantErr: domain.ErrInvalidOrder,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := newCheckout(newMemOrderStore(), &fakeNumbers{}, &fakeCarts{}, nil)
			_, err := svc.Settle(context.Background(), tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSettlePartyResolution(t *testing.T) {
	t.Parallel()

	items := []domain.Item{{ProductRef: "oak-shelf", Quantity: 1, UnitPriceCents: 100}}

	svc := newCheckout(newMemOrderStore(), &fakeNumbers{}, &fakeCarts{}, nil)
	guest, err := svc.Settle(context.Background(), SettleInput{
		Items: items, ShippingAddress: validAddress(), PaymentMethod: "card",
	})
	if err != nil {
		t.Fatalf("guest Settle: %v", err)
	}
	if guest.Party.Kind != domain.PartyGuest || guest.Party.Guest == nil {
		t.Fatalf("guest party = %+v", guest.Party)
	}
	if guest.Party.Email() != "jamie@example.com" {
		t.Fatalf("guest email = %q", guest.Party.Email())
	}

	svc = newCheckout(newMemOrderStore(), &fakeNumbers{}, &fakeCarts{}, nil)
	account, err := svc.Settle(context.Background(), SettleInput{
		Items: items, ShippingAddress: validAddress(), PaymentMethod: "card", UserID: "user-1",
	})
	if err != nil {
		t.Fatalf("account Settle: %v", err)
	}
	if account.Party.Kind != domain.PartyAccount || account.Party.UserID != "user-1" {
		t.Fatalf("account party = %+v", account.Party)
	}
}

func TestSettleRetriesNumberingConflicts(t *testing.T) {
	t.Parallel()

	orders := newMemOrderStore()
	orders.duplicateFailures = 2
	numbers := &fakeNumbers{next: []string{
		"ORD-20260310-005", "ORD-20260310-005", "ORD-20260310-006",
	}}

	svc := newCheckout(orders, numbers, &fakeCarts{}, nil)
	order, err := svc.Settle(context.Background(), SettleInput{
		Items:           []domain.Item{{ProductRef: "oak-shelf", Quantity: 1, UnitPriceCents: 100}},
		ShippingAddress: validAddress(),
		PaymentMethod:   "card",
	})
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if order.OrderNumber != "ORD-20260310-006" {
		t.Fatalf("order number = %q, want the re-sequenced ORD-20260310-006", order.OrderNumber)
	}
	if orders.creates != 3 {
		t.Fatalf("creates = %d, want 3", orders.creates)
	}
}

func TestSettleFallsBackAfterRetryBudget(t *testing.T) {
	t.Parallel()

	orders := newMemOrderStore()
	orders.duplicateFailures = 3
	numbers := &fakeNumbers{fallback: "ORD-1773144000000-0042"}

	svc := newCheckout(orders, numbers, &fakeCarts{}, nil)
	order, err := svc.Settle(context.Background(), SettleInput{
		Items:           []domain.Item{{ProductRef: "oak-shelf", Quantity: 1, UnitPriceCents: 100}},
		ShippingAddress: validAddress(),
		PaymentMethod:   "card",
	})
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if order.OrderNumber != "ORD-1773144000000-0042" {
		t.Fatalf("order number = %q, want the fallback identifier", order.OrderNumber)
	}
}

func TestSettleClearsCartOnlyAfterPersist(t *testing.T) {
	t.Parallel()

	carts := &fakeCarts{}
	svc := newCheckout(newMemOrderStore(), &fakeNumbers{}, carts, nil)

	_, err := svc.Settle(context.Background(), SettleInput{
		Items:           []domain.Item{{ProductRef: "oak-shelf", Quantity: 1, UnitPriceCents: 100}},
		ShippingAddress: validAddress(),
		PaymentMethod:   "card",
		CartScope:       "guest-abc",
	})
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if len(carts.cleared) != 1 || carts.cleared[0] != "guest-abc" {
		t.Fatalf("cleared carts = %v, want [guest-abc]", carts.cleared)
	}

	// A failed persist must leave the cart alone.
	failing := newMemOrderStore()
	failing.createErr = errors.New("connection refused")
	carts = &fakeCarts{}
	svc = newCheckout(failing, &fakeNumbers{}, carts, nil)
	if _, err := svc.Settle(context.Background(), SettleInput{
		Items:           []domain.Item{{ProductRef: "oak-shelf", Quantity: 1, UnitPriceCents: 100}},
		ShippingAddress: validAddress(),
		PaymentMethod:   "card",
		CartScope:       "guest-abc",
	}); err == nil {
		t.Fatalf("expected error from failing store")
	}
	if len(carts.cleared) != 0 {
		t.Fatalf("cart cleared despite persist failure")
	}
}

func TestSettleCartClearFailureDoesNotFailCheckout(t *testing.T) {
	t.Parallel()

	carts := &fakeCarts{err: errors.New("redis down")}
	svc := newCheckout(newMemOrderStore(), &fakeNumbers{}, carts, nil)

	if _, err := svc.Settle(context.Background(), SettleInput{
		Items:           []domain.Item{{ProductRef: "oak-shelf", Quantity: 1, UnitPriceCents: 100}},
		ShippingAddress: validAddress(),
		PaymentMethod:   "card",
		CartScope:       "guest-abc",
	}); err != nil {
		t.Fatalf("Settle: %v", err)
	}
}
