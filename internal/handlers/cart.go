package handlers

import (
	"net/http"
	"strings"

	"github.com/timberline-shop/timberline/internal/domain"
	"github.com/timberline-shop/timberline/internal/identity"
)

// cartTokenHeader carries the guest cart scope. Signed-in callers are scoped
// by their account id instead and the header is ignored.
const cartTokenHeader = "X-Cart-Token"

func cartScope(r *http.Request) string {
	if id, ok := identity.FromContext(r.Context()); ok {
		return id.UserID
	}
	return strings.TrimSpace(r.Header.Get(cartTokenHeader))
}

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())

	scope := cartScope(r)
	if scope == "" {
		writeError(w, http.StatusBadRequest, "missing_cart_scope", "sign in or provide an X-Cart-Token header")
		return
	}

	items, err := h.carts.Get(r.Context(), scope)
	if err != nil {
		respondError(w, logger, err)
		return
	}
	if items == nil {
		items = []domain.Item{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type putCartRequest struct {
	Items []domain.Item `json:"items"`
}

// PutCart replaces the cart for the current scope. An empty item list clears
// it.
func (h *Handlers) PutCart(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())

	scope := cartScope(r)
	if scope == "" {
		writeError(w, http.StatusBadRequest, "missing_cart_scope", "sign in or provide an X-Cart-Token header")
		return
	}

	var req putCartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_body", err.Error())
		return
	}

	if len(req.Items) == 0 {
		if err := h.carts.Clear(r.Context(), scope); err != nil {
			respondError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": []domain.Item{}})
		return
	}

	if err := h.carts.Save(r.Context(), scope, req.Items); err != nil {
		respondError(w, logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": req.Items})
}

// ReconcileCart merges the guest cart named by X-Cart-Token into the
// signed-in caller's cart. Quantities add up for matching product
// references; the guest cart is cleared afterwards.
func (h *Handlers) ReconcileCart(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())

	id, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "cart reconciliation requires a signed-in caller")
		return
	}

	guestScope := strings.TrimSpace(r.Header.Get(cartTokenHeader))
	if guestScope == "" {
		writeError(w, http.StatusBadRequest, "missing_cart_scope", "provide the guest cart via X-Cart-Token")
		return
	}

	items, err := h.carts.ReconcileOnLogin(r.Context(), guestScope, id.UserID)
	if err != nil {
		respondError(w, logger, err)
		return
	}
	if items == nil {
		items = []domain.Item{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
