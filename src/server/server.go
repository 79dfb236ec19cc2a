package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	logger "github.com/sirupsen/logrus"

	"quantsystem/src/app"
	"quantsystem/src/auth"
	"quantsystem/src/handler"
)

// NewRouter mounts the dashboard API. Reads go through the read-only
// repositories; account and order endpoints go through the trader.
func NewRouter(ac *app.Context, cfg *Config) http.Handler {
	r := chi.NewRouter()
	// === Global Middleware ===
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error(" \"/health error")
		}
	})

	// Protected routes
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.BasicAuth(cfg.DashboardUser, cfg.DashboardPasswordHash, "quantsystem"))

		r.Get("/account", handler.AccountHandler(ac.Trader))
		r.Get("/positions", handler.PositionsHandler(ac.Trader))
		r.Get("/selections", handler.SelectionsHandler(ac.ReadRepos.Selections))
		r.Get("/snapshots", handler.SnapshotsHandler(ac.ReadRepos.Snapshots))
		r.Get("/exceptions", handler.ExceptionsHandler(ac.ReadRepos.Exceptions))

		r.Get("/orders", handler.SearchOrdersHandler(ac.ReadRepos.Orders))
		r.Post("/orders", handler.PlaceOrderHandler(ac.Trader, validator.New()))
		r.Get("/orders/{id}", handler.GetOrderHandler(ac.Trader))
		r.Post("/orders/{id}/cancel", handler.CancelOrderHandler(ac.Trader))
	})

	return r
}

// StartServer serves the dashboard until ctx is cancelled, then shuts down gracefully.
func StartServer(ctx context.Context, ac *app.Context, cfg *Config) error {
	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(ac, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Error("Server crashed")
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown error")
		return err
	}
	return nil
}
