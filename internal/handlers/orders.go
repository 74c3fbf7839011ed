package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/timberline-shop/timberline/internal/domain"
	"github.com/timberline-shop/timberline/internal/identity"
	"github.com/timberline-shop/timberline/internal/services"
)

type createOrderRequest struct {
	Items           []domain.Item  `json:"items"`
	ShippingAddress domain.Address `json:"shipping_address"`
	ShippingMethod  string         `json:"shipping_method"`
	PaymentMethod   string         `json:"payment_method"`
	CustomerNote    string         `json:"customer_note"`
}

// CreateOrder settles the submitted cart into a persisted order. The caller
// identity (bearer token) decides between account and guest checkout; the
// cart scope for the post-settlement clear comes from the same identity or
// from the X-Cart-Token header for guests.
func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())

	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_body", err.Error())
		return
	}

	input := services.SettleInput{
		Items:           req.Items,
		ShippingMethod:  req.ShippingMethod,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		CustomerNote:    req.CustomerNote,
		CartScope:       cartScope(r),
	}
	if id, ok := identity.FromContext(r.Context()); ok {
		input.UserID = id.UserID
	}

	order, err := h.checkout.Settle(r.Context(), input)
	if err != nil {
		respondError(w, logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// GetOrder looks an order up by internal id or by order number.
func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())

	order, err := h.orders.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, logger, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())
	query := r.URL.Query()

	input := services.ListInput{
		Status: strings.TrimSpace(query.Get("status")),
		Limit:  intQueryParam(query.Get("limit")),
		Offset: intQueryParam(query.Get("offset")),
		UserID: listUserFilter(r),
	}

	orders, err := h.orders.List(r.Context(), input)
	if err != nil {
		respondError(w, logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

type updateOrderStatusRequest struct {
	Status             string `json:"status"`
	Note               string `json:"note"`
	CancellationReason string `json:"cancellation_reason"`
	TrackingNumber     string `json:"tracking_number"`
	EstimatedDelivery  string `json:"estimated_delivery"`
}

func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())

	var req updateOrderStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_body", err.Error())
		return
	}

	input := services.UpdateStatusInput{
		Status:             req.Status,
		Note:               req.Note,
		CancellationReason: req.CancellationReason,
		TrackingNumber:     req.TrackingNumber,
		Actor:              actorFromRequest(r),
	}
	if raw := strings.TrimSpace(req.EstimatedDelivery); raw != "" {
		estimated, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed_body", "estimated_delivery must be RFC 3339")
			return
		}
		input.EstimatedDelivery = estimated
	}

	order, err := h.orders.UpdateStatus(r.Context(), mux.Vars(r)["id"], input)
	if err != nil {
		respondError(w, logger, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func (h *Handlers) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())

	if err := h.orders.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondError(w, logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func intQueryParam(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// listUserFilter resolves the party scope for order listings. An explicit
// user_id parameter wins, so operators can list another party's orders or,
// with user_id left blank, list across all parties. Without the parameter a
// signed-in caller sees only their own orders.
func listUserFilter(r *http.Request) string {
	if query := r.URL.Query(); query.Has("user_id") {
		return strings.TrimSpace(query.Get("user_id"))
	}
	if id, ok := identity.FromContext(r.Context()); ok {
		return id.UserID
	}
	return ""
}

func actorFromRequest(r *http.Request) string {
	if id, ok := identity.FromContext(r.Context()); ok {
		if id.Name != "" {
			return id.Name
		}
		return id.UserID
	}
	return "admin"
}
