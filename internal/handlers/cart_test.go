package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/timberline-shop/timberline/internal/identity"
)

func TestCartScope(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	if got := cartScope(req); got != "" {
		t.Fatalf("scope = %q, want empty", got)
	}

	req.Header.Set(cartTokenHeader, " guest-abc ")
	if got := cartScope(req); got != "guest-abc" {
		t.Fatalf("scope = %q, want guest-abc", got)
	}

	// A signed-in caller is scoped by account id, the header is ignored.
	ctx := identity.WithIdentity(req.Context(), identity.Identity{UserID: "user-1"})
	req = req.WithContext(ctx)
	if got := cartScope(req); got != "user-1" {
		t.Fatalf("scope = %q, want user-1", got)
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	type payload struct {
		Items []struct {
			ProductRef string `json:"product_ref"`
		} `json:"items"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "well formed", body: `{"items":[{"product_ref":"oak-shelf"}]}`},
		{name: "malformed json", body: `{"items":[{"product_ref":"oak-shelf"]}`, wantErr: true},
		{name: "unknown field", body: `{"items":[],"surprise":true}`, wantErr: true},
		{name: "trailing garbage", body: `{"items":[]}{"again":true}`, wantErr: true},
		{name: "empty body", body: ``, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPut, "/api/v1/cart", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			var dst payload
			err := decodeJSON(rec, req, &dst)
			if tt.wantErr && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	}
}
