package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/timberline-shop/timberline/internal/cart"
	"github.com/timberline-shop/timberline/internal/config"
	"github.com/timberline-shop/timberline/internal/logging"
	"github.com/timberline-shop/timberline/internal/services"
)

const maxRequestBodyBytes = 1 << 20 // 1 MB

// Handlers provides the HTTP request handlers for the Timberline order API.
type Handlers struct {
	config   *config.Config
	db       *pgxpool.Pool
	checkout *services.CheckoutService
	orders   *services.OrderService
	returns  *services.ReturnService
	carts    *cart.Store
	logger   *slog.Logger
}

type Dependencies struct {
	Config   *config.Config
	DB       *pgxpool.Pool
	Checkout *services.CheckoutService
	Orders   *services.OrderService
	Returns  *services.ReturnService
	Carts    *cart.Store
	Logger   *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if deps.Config == nil {
		return nil, fmt.Errorf("handlers dependencies: config is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("handlers dependencies: db is required")
	}
	if deps.Checkout == nil {
		return nil, fmt.Errorf("handlers dependencies: checkout service is required")
	}
	if deps.Orders == nil {
		return nil, fmt.Errorf("handlers dependencies: order service is required")
	}
	if deps.Returns == nil {
		return nil, fmt.Errorf("handlers dependencies: return service is required")
	}
	if deps.Carts == nil {
		return nil, fmt.Errorf("handlers dependencies: cart store is required")
	}

	return &Handlers{
		config:   deps.Config,
		db:       deps.DB,
		checkout: deps.Checkout,
		orders:   deps.Orders,
		returns:  deps.Returns,
		carts:    deps.Carts,
		logger:   logger.With("component", "handlers"),
	}, nil
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	if err := h.db.Ping(ctx); err != nil {
		logger.Error("database health check failed", "error", err)
		http.Error(w, "Database unhealthy", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}

// decodeJSON reads a bounded request body into dst and rejects trailing
// garbage and unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("decode request body: unexpected trailing data")
	}
	return nil
}
