// Package domain holds the order aggregate and the invariants enforced on it.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Item is an order line. ProductName and UnitPriceCents are snapshots taken at
// cart time; the live catalog is not consulted again during settlement.
type Item struct {
	ProductRef     string `json:"product_ref"`
	ProductName    string `json:"product_name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int    `json:"unit_price_cents"`
	Dimensions     string `json:"dimensions,omitempty"`
	SubtotalCents  int    `json:"subtotal_cents"`
}

// Address is the structured postal address plus the contact fields used to
// build a guest party when no account identity is present.
type Address struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"required"`
	Street     string `json:"street" validate:"required"`
	Unit       string `json:"unit,omitempty"`
	City       string `json:"city" validate:"required"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required"`
}

// Financials is the money breakdown of an order, in integer cents.
// TotalCents must always equal SubtotalCents + ShippingCents + TaxCents -
// DiscountCents; Normalize recomputes it on every save path.
type Financials struct {
	SubtotalCents int `json:"subtotal_cents"`
	ShippingCents int `json:"shipping_cents"`
	TaxCents      int `json:"tax_cents"`
	DiscountCents int `json:"discount_cents"`
	TotalCents    int `json:"total_cents"`
}

type StatusHistoryEntry struct {
	Status    OrderStatus `json:"status"`
	Note      string      `json:"note,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Actor     string      `json:"actor,omitempty"`
}

// Order is the root aggregate: one persisted record per checkout transaction
// and everything owned by it.
type Order struct {
	ID                 uuid.UUID            `json:"id"`
	OrderNumber        string               `json:"order_number"`
	Version            int64                `json:"version"`
	Party              Party                `json:"party"`
	Items              []Item               `json:"items"`
	ShippingAddress    Address              `json:"shipping_address"`
	ShippingMethod     string               `json:"shipping_method"`
	PaymentMethod      string               `json:"payment_method"`
	Financials         Financials           `json:"financials"`
	Status             OrderStatus          `json:"status"`
	StatusHistory      []StatusHistoryEntry `json:"status_history"`
	ReturnRequests     []ReturnRequest      `json:"return_requests"`
	TrackingNumber     string               `json:"tracking_number,omitempty"`
	EstimatedDelivery  time.Time            `json:"estimated_delivery,omitzero"`
	DeliveredAt        time.Time            `json:"delivered_at,omitzero"`
	CancelledAt        time.Time            `json:"cancelled_at,omitzero"`
	CancellationReason string               `json:"cancellation_reason,omitempty"`
	CustomerNote       string               `json:"customer_note,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// Normalize recomputes every derived money field from its parts. Client input
// is never trusted for totals; every save path goes through here first.
func (o *Order) Normalize() {
	subtotal := 0
	for i := range o.Items {
		o.Items[i].SubtotalCents = o.Items[i].UnitPriceCents * o.Items[i].Quantity
		subtotal += o.Items[i].SubtotalCents
	}
	o.Financials.SubtotalCents = subtotal
	o.Financials.TotalCents = subtotal + o.Financials.ShippingCents + o.Financials.TaxCents - o.Financials.DiscountCents
}

// Validate enforces the aggregate invariants. Callers must Normalize first.
func (o *Order) Validate() error {
	if len(o.Items) == 0 {
		return fmt.Errorf("%w: order has no items", ErrInvalidOrder)
	}
	for i, item := range o.Items {
		if item.Quantity < 1 {
			return fmt.Errorf("%w: item %d quantity must be at least 1", ErrInvalidOrder, i)
		}
		if item.UnitPriceCents < 0 {
			return fmt.Errorf("%w: item %d unit price must not be negative", ErrInvalidOrder, i)
		}
		if item.SubtotalCents != item.UnitPriceCents*item.Quantity {
			return fmt.Errorf("%w: item %d subtotal does not reconcile", ErrInvalidOrder, i)
		}
	}
	if err := o.Party.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	f := o.Financials
	if f.SubtotalCents < 0 || f.ShippingCents < 0 || f.TaxCents < 0 || f.DiscountCents < 0 || f.TotalCents < 0 {
		return fmt.Errorf("%w: financial amounts must not be negative", ErrInvalidOrder)
	}
	if f.TotalCents != f.SubtotalCents+f.ShippingCents+f.TaxCents-f.DiscountCents {
		return fmt.Errorf("%w: final amount does not reconcile", ErrInvalidOrder)
	}
	if !o.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidOrder, o.Status)
	}
	if len(o.StatusHistory) == 0 {
		return fmt.Errorf("%w: status history must not be empty", ErrInvalidOrder)
	}
	if last := o.StatusHistory[len(o.StatusHistory)-1]; last.Status != o.Status {
		return fmt.Errorf("%w: latest history entry %q does not match status %q", ErrInvalidOrder, last.Status, o.Status)
	}
	return nil
}

// UpdateStatus moves the order to next, appending a history entry. Illegal
// jumps against the transition graph are rejected. Cancellation goes through
// Cancel instead, which records the mandatory reason.
func (o *Order) UpdateStatus(next OrderStatus, note, actor string, now time.Time) error {
	if !next.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next)
	}
	if next == StatusCancelled {
		return fmt.Errorf("%w: cancellation requires a reason", ErrInvalidTransition)
	}
	if !o.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, next)
	}
	o.applyStatus(next, note, actor, now)
	if next == StatusDelivered {
		o.DeliveredAt = o.StatusHistory[len(o.StatusHistory)-1].Timestamp
	}
	return nil
}

// Cancel transitions the order to cancelled with the mandatory reason.
func (o *Order) Cancel(reason, actor string, now time.Time) error {
	if reason == "" {
		return fmt.Errorf("%w: cancellation requires a reason", ErrInvalidTransition)
	}
	if !o.Status.CanTransitionTo(StatusCancelled) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, StatusCancelled)
	}
	o.applyStatus(StatusCancelled, reason, actor, now)
	o.CancelledAt = o.StatusHistory[len(o.StatusHistory)-1].Timestamp
	o.CancellationReason = reason
	return nil
}

func (o *Order) applyStatus(next OrderStatus, note, actor string, now time.Time) {
	// History timestamps never go backwards, even under clock skew.
	if n := len(o.StatusHistory); n > 0 && now.Before(o.StatusHistory[n-1].Timestamp) {
		now = o.StatusHistory[n-1].Timestamp
	}
	o.Status = next
	o.StatusHistory = append(o.StatusHistory, StatusHistoryEntry{
		Status:    next,
		Note:      note,
		Timestamp: now,
		Actor:     actor,
	})
}

// FindReturn returns the nested return request with the given id.
func (o *Order) FindReturn(returnID string) (*ReturnRequest, bool) {
	for i := range o.ReturnRequests {
		if o.ReturnRequests[i].ReturnID == returnID {
			return &o.ReturnRequests[i], true
		}
	}
	return nil, false
}
