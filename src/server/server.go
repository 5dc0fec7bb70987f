package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	logger "github.com/sirupsen/logrus"

	"tradelifecycle/src/auth"
	"tradelifecycle/src/handler"
	"tradelifecycle/src/model"
	"tradelifecycle/src/repository"
)

// Deps are the stores the operator API works against. The read-only
// repositories serve the listing endpoints and default to the writable ones.
type Deps struct {
	Mode      model.Mode
	AccountID string
	OrderTTL  time.Duration

	Orders            *repository.OrderRepository
	Positions         *repository.PositionRepository
	OrdersReadOnly    *repository.OrderRepository
	PositionsReadOnly *repository.PositionRepository
	Ledger            *repository.LedgerRepository
	Exceptions        *repository.ExceptionRepository

	TokenHash string
	Operator  string
}

func NewRouter(deps Deps) http.Handler {
	if deps.OrdersReadOnly == nil {
		deps.OrdersReadOnly = deps.Orders
	}
	if deps.PositionsReadOnly == nil {
		deps.PositionsReadOnly = deps.Positions
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("/healthcheck write error")
		}
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireToken(deps.TokenHash, deps.Operator))

		r.Get("/orders", handler.ListOrdersHandler(deps.OrdersReadOnly))
		r.Post("/orders", handler.CreateOrderHandler(deps.Orders, deps.OrderTTL, nil))
		r.Post("/orders/{id}/cancel", handler.CancelOrderHandler(deps.Orders))
		r.Get("/orders/{id}/logs", handler.OrderLogsHandler(deps.OrdersReadOnly))

		r.Get("/positions", handler.ListPositionsHandler(deps.PositionsReadOnly))
		r.Post("/positions/{id}/close", handler.ClosePositionHandler(deps.Positions))
		r.Put("/positions/{id}/risk", handler.UpdateRiskHandler(deps.Positions))

		r.Get("/account", handler.AccountHandler(deps.Mode, deps.AccountID, deps.Ledger, deps.PositionsReadOnly))
		r.Get("/exceptions", handler.ListExceptionsHandler(deps.Exceptions))
	})

	return r
}

// StartServer serves h on port until ctx is canceled, then shuts down gracefully.
func StartServer(ctx context.Context, port string, h http.Handler) error {
	addr := ":" + port
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown error")
		return err
	}
	return nil
}
