package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/timberline-shop/timberline/internal/domain"
)

func TestRespondErrorMapping(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "empty cart", err: domain.ErrEmptyCart, wantStatus: http.StatusBadRequest, wantCode: "empty_cart"},
		{name: "invalid address", err: fmt.Errorf("%w: street required", domain.ErrInvalidAddress), wantStatus: http.StatusBadRequest, wantCode: "invalid_address"},
		{name: "invalid order", err: fmt.Errorf("%w: quantity", domain.ErrInvalidOrder), wantStatus: http.StatusBadRequest, wantCode: "validation_failed"},
		{name: "order not found", err: domain.ErrOrderNotFound, wantStatus: http.StatusNotFound, wantCode: "order_not_found"},
		{name: "return not found", err: domain.ErrReturnNotFound, wantStatus: http.StatusNotFound, wantCode: "return_not_found"},
		{name: "window expired", err: domain.ErrReturnWindowExpired, wantStatus: http.StatusUnprocessableEntity, wantCode: "return_window_expired"},
		{name: "ineligible status", err: domain.ErrIneligibleStatus, wantStatus: http.StatusUnprocessableEntity, wantCode: "ineligible_status"},
		{name: "invalid transition", err: domain.ErrInvalidTransition, wantStatus: http.StatusUnprocessableEntity, wantCode: "invalid_transition"},
		{name: "version conflict", err: domain.ErrConflict, wantStatus: http.StatusConflict, wantCode: "conflict"},
		{name: "anything else", err: errors.New("pool exhausted"), wantStatus: http.StatusInternalServerError, wantCode: "internal"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			respondError(rec, logger, tt.err)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var envelope errorEnvelope
			if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if envelope.Error.Code != tt.wantCode {
				t.Fatalf("code = %q, want %q", envelope.Error.Code, tt.wantCode)
			}
			if envelope.Error.Message == "" {
				t.Fatalf("message is empty")
			}
		})
	}
}

func TestRespondErrorNeverLeaksInternals(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := httptest.NewRecorder()
	respondError(rec, logger, errors.New("dial tcp 10.0.0.5:5432: connection refused"))

	var envelope errorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if envelope.Error.Message != "internal server error" {
		t.Fatalf("message = %q leaked internals", envelope.Error.Message)
	}
}
