package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/timberline-shop/timberline/internal/config"
	"github.com/timberline-shop/timberline/internal/handlers"
	"github.com/timberline-shop/timberline/internal/identity"
)

type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	handlers   *handlers.Handlers
	identity   *identity.Verifier
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger, h *handlers.Handlers, verifier *identity.Verifier) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if h == nil {
		return nil, fmt.Errorf("handlers are required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("identity verifier is required")
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		handlers: h,
		identity: verifier,
	}

	router := s.buildRouter()
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return s, nil
}

func (s *Server) Run() error {
	s.logger.Info("server starting", "port", s.cfg.Port)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Close(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}

	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) buildRouter() *mux.Router {
	h := s.handlers

	r := mux.NewRouter()
	r.Use(h.RequestLogger)
	r.Use(h.SecurityHeaders)
	r.HandleFunc("/health", h.Health).Methods("GET").Name("health")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(s.identity.Middleware)
	api.HandleFunc("/orders", h.CreateOrder).Methods("POST").Name("orders.create")
	api.HandleFunc("/orders", h.ListOrders).Methods("GET").Name("orders.list")
	api.HandleFunc("/orders/{id}", h.GetOrder).Methods("GET").Name("orders.get")
	api.HandleFunc("/orders/{id}", h.DeleteOrder).Methods("DELETE").Name("orders.delete")
	api.HandleFunc("/orders/{id}/status", h.UpdateOrderStatus).Methods("PATCH").Name("orders.status")
	api.HandleFunc("/returns", h.FileReturn).Methods("POST").Name("returns.file")
	api.HandleFunc("/returns/{returnId}", h.GetReturn).Methods("GET").Name("returns.get")
	api.HandleFunc("/returns/{returnId}/decision", h.ProcessReturn).Methods("POST").Name("returns.decision")
	api.HandleFunc("/cart", h.GetCart).Methods("GET").Name("cart.get")
	api.HandleFunc("/cart", h.PutCart).Methods("PUT").Name("cart.put")
	api.HandleFunc("/cart/reconcile", h.ReconcileCart).Methods("POST").Name("cart.reconcile")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"not_found","message":"route not found"}}`))
	})

	return r
}
