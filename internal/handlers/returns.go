package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/timberline-shop/timberline/internal/services"
)

type fileReturnRequest struct {
	OrderNumber string `json:"order_number"`
	Reason      string `json:"reason"`
	Description string `json:"description"`
}

// FileReturn opens a return request against a delivered order. The response
// carries the customer-facing return id.
func (h *Handlers) FileReturn(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())

	var req fileReturnRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_body", err.Error())
		return
	}

	receipt, err := h.returns.FileReturn(r.Context(), req.OrderNumber, req.Reason, req.Description)
	if err != nil {
		respondError(w, logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, receipt)
}

// GetReturn resolves a return id to its request plus the order it belongs to.
func (h *Handlers) GetReturn(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())

	order, request, err := h.returns.GetReturn(r.Context(), mux.Vars(r)["returnId"])
	if err != nil {
		respondError(w, logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"return":       request,
		"order_number": order.OrderNumber,
		"order_status": order.Status,
	})
}

type processReturnRequest struct {
	Status         string `json:"status"`
	RefundCents    int    `json:"refund_cents"`
	AdminNotes     string `json:"admin_notes"`
	TrackingNumber string `json:"tracking_number"`
}

// ProcessReturn advances a return request through approval, processing, and
// refund.
func (h *Handlers) ProcessReturn(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())

	var req processReturnRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_body", err.Error())
		return
	}

	request, err := h.returns.ProcessReturn(r.Context(), mux.Vars(r)["returnId"], services.ProcessReturnInput{
		Status:         req.Status,
		RefundCents:    req.RefundCents,
		AdminNotes:     req.AdminNotes,
		TrackingNumber: req.TrackingNumber,
		Actor:          actorFromRequest(r),
	})
	if err != nil {
		respondError(w, logger, err)
		return
	}

	writeJSON(w, http.StatusOK, request)
}
