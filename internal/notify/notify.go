// Package notify informs customers of order events. Notification failures are
// logged and swallowed; they never fail or roll back the business operation
// that triggered them.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/timberline-shop/timberline/internal/domain"
	"github.com/timberline-shop/timberline/internal/email"
)

const sendTimeout = 10 * time.Second

type Service struct {
	provider  email.Provider
	renderer  *email.Renderer
	storeName string
	logger    *slog.Logger
}

// NewService builds a notifier. A nil provider produces a no-op service so
// deployments without email credentials still work.
func NewService(provider email.Provider, storeName string, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	renderer, err := email.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to build email renderer: %w", err)
	}
	return &Service{
		provider:  provider,
		renderer:  renderer,
		storeName: storeName,
		logger:    logger.With("component", "notify"),
	}, nil
}

func (s *Service) OrderCreated(ctx context.Context, order *domain.Order) {
	s.send(ctx, "order_confirmation", s.orderInfo(order))
}

func (s *Service) StatusChanged(ctx context.Context, order *domain.Order, note string) {
	info := s.orderInfo(order)
	info.Status = string(order.Status)
	info.StatusNote = note
	info.TrackingNumber = order.TrackingNumber
	s.send(ctx, "status_update", info)
}

func (s *Service) ReturnFiled(ctx context.Context, order *domain.Order, request *domain.ReturnRequest) {
	info := s.orderInfo(order)
	info.ReturnID = request.ReturnID
	info.ReturnReason = string(request.Reason)
	s.send(ctx, "return_received", info)
}

func (s *Service) send(ctx context.Context, templateName string, info *email.OrderInfo) {
	if s.provider == nil || info.CustomerEmail == "" {
		return
	}

	// Detached from the request so a slow provider never blocks the caller.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	go func() {
		defer cancel()
		message, err := s.renderer.Render(sendCtx, templateName, info)
		if err != nil {
			s.logger.Error("failed to render notification", "template", templateName, "error", err)
			return
		}
		if err := s.provider.SendEmail(sendCtx, message); err != nil {
			s.logger.Error("failed to send notification",
				"template", templateName,
				"order_number", info.OrderNumber,
				"error", err,
			)
		}
	}()
}

func (s *Service) orderInfo(order *domain.Order) *email.OrderInfo {
	items := make([]email.OrderItem, len(order.Items))
	for i, item := range order.Items {
		items[i] = email.OrderItem{
			Name:       item.ProductName,
			Quantity:   item.Quantity,
			UnitPrice:  formatCents(item.UnitPriceCents),
			TotalPrice: formatCents(item.SubtotalCents),
			Dimensions: item.Dimensions,
		}
	}

	info := &email.OrderInfo{
		OrderNumber:     order.OrderNumber,
		CustomerName:    order.ShippingAddress.Name,
		CustomerEmail:   order.ShippingAddress.Email,
		StoreName:       s.storeName,
		OrderDate:       order.CreatedAt.Format("January 2, 2006"),
		Items:           items,
		Subtotal:        formatCents(order.Financials.SubtotalCents),
		Shipping:        formatCents(order.Financials.ShippingCents),
		Tax:             formatCents(order.Financials.TaxCents),
		Total:           formatCents(order.Financials.TotalCents),
		ShippingAddress: formatAddress(order.ShippingAddress),
	}
	if order.Financials.DiscountCents > 0 {
		info.Discount = formatCents(order.Financials.DiscountCents)
	}
	return info
}

func formatCents(cents int) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

func formatAddress(a domain.Address) string {
	lines := []string{a.Name, a.Street}
	if a.Unit != "" {
		lines = append(lines, a.Unit)
	}
	cityLine := a.City
	if a.Region != "" {
		cityLine += ", " + a.Region
	}
	cityLine += " " + a.PostalCode
	lines = append(lines, cityLine, a.Country)
	return strings.Join(lines, "\n")
}
