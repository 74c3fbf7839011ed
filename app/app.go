package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/timberline-shop/timberline/internal/cache"
	"github.com/timberline-shop/timberline/internal/cart"
	"github.com/timberline-shop/timberline/internal/config"
	"github.com/timberline-shop/timberline/internal/email"
	"github.com/timberline-shop/timberline/internal/handlers"
	"github.com/timberline-shop/timberline/internal/identity"
	"github.com/timberline-shop/timberline/internal/notify"
	"github.com/timberline-shop/timberline/internal/pricing"
	"github.com/timberline-shop/timberline/internal/sequence"
	"github.com/timberline-shop/timberline/internal/services"
	"github.com/timberline-shop/timberline/internal/store"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	DB            *pgxpool.Pool
	CacheProvider cache.Provider
	Identity      *identity.Verifier
	Handlers      *handlers.Handlers
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	database, err := store.Connect(startupCtx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(startupCtx, database); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	rates, err := pricing.LoadFile(cfg.PricingFile)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to load pricing table: %w", err)
	}

	cacheProvider, err := cache.NewProvider(cache.Config{
		Provider:              cfg.CacheProvider,
		RedisConnectionString: cfg.RedisConnectionString,
	})
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize cache provider: %w", err)
	}

	var emailProvider email.Provider
	if cfg.EmailEnabled() {
		emailProvider, err = email.NewProvider(email.Config{
			Provider: cfg.EmailProvider,
			APIKey:   cfg.EmailAPIKey,
			From:     cfg.EmailFrom,
			Domain:   cfg.EmailDomain,
		})
		if err != nil {
			closeCacheProvider(logger, cacheProvider)
			database.Close()
			return nil, fmt.Errorf("failed to initialize email provider: %w", err)
		}
	}

	notifier, err := notify.NewService(emailProvider, cfg.StoreName, logger.With("component", "notify"))
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize notifications: %w", err)
	}

	orderStore := store.NewOrderStore(database)
	numbers := sequence.NewGenerator(orderStore, rates.OrderNumberPrefix, logger)
	carts := cart.NewStore(cacheProvider)

	checkoutService := services.NewCheckoutService(orderStore, numbers, carts, rates, notifier, logger.With("component", "checkout_service"))
	orderService := services.NewOrderService(orderStore, notifier, logger.With("component", "order_service"))
	returnService := services.NewReturnService(orderStore, numbers, notifier, logger.With("component", "return_service"))

	verifier := identity.NewVerifier(cfg.JWTSecret, logger.With("component", "identity"))

	h, err := handlers.New(handlers.Dependencies{
		Config:   cfg,
		DB:       database,
		Checkout: checkoutService,
		Orders:   orderService,
		Returns:  returnService,
		Carts:    carts,
		Logger:   logger,
	})
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		DB:            database,
		CacheProvider: cacheProvider,
		Identity:      verifier,
		Handlers:      h,
	}, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.CacheProvider != nil {
		closeCacheProvider(a.Logger, a.CacheProvider)
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	format := strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	case "text", "":
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level: cfg.LogLevel,
		}))
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: cfg.LogLevel}))
}

func closeCacheProvider(logger *slog.Logger, provider cache.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close cache provider", "error", err)
	}
}
