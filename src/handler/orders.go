package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradelifecycle/src/auth"
	"tradelifecycle/src/model"
)

type orderStore interface {
	Latest(ctx context.Context, status string, limit int) ([]model.Order, error)
	Get(ctx context.Context, orderID string) (*model.Order, error)
	Put(ctx context.Context, order *model.Order) error
	UpdateStatusIf(ctx context.Context, orderID, status, reason string, from ...string) (bool, error)
	Logs(ctx context.Context, orderID string) ([]model.OrderLog, error)
}

// ListOrdersHandler returns the newest orders. Supports ?status= and ?limit=.
func ListOrdersHandler(repo orderStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := limitParam(r, 50)
		if !ok {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}

		orders, err := repo.Latest(r.Context(), r.URL.Query().Get("status"), limit)
		if err != nil {
			logger.WithError(err).Error("failed to list orders")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, orders)
	}
}

type createOrderRequest struct {
	Symbol     string          `json:"symbol"`
	Side       string          `json:"side"`
	Kind       string          `json:"kind"`
	LimitPrice decimal.Decimal `json:"limit_price"`
	Quantity   decimal.Decimal `json:"quantity"`
	PositionID string          `json:"position_id"`
}

// CreateOrderHandler stores a manual pending order. The trader adopts it on
// its next reconciliation.
func CreateOrderHandler(repo orderStore, ttl time.Duration, now func() time.Time) http.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}

		req.Side = strings.ToLower(req.Side)
		req.Kind = strings.ToLower(req.Kind)
		if req.Kind == "" {
			req.Kind = model.OrderKindEntry
		}
		switch {
		case strings.TrimSpace(req.Symbol) == "":
			http.Error(w, "symbol is required", http.StatusBadRequest)
			return
		case !model.ValidOrderSide(req.Side):
			http.Error(w, "side must be buy or sell", http.StatusBadRequest)
			return
		case !model.ValidOrderKind(req.Kind):
			http.Error(w, "kind must be entry or exit", http.StatusBadRequest)
			return
		case !req.LimitPrice.IsPositive() || !req.Quantity.IsPositive():
			http.Error(w, "limit_price and quantity must be positive", http.StatusBadRequest)
			return
		}

		created := now().UTC()
		order := &model.Order{
			OrderID:    "manual-" + uuid.NewString(),
			Symbol:     req.Symbol,
			Side:       req.Side,
			Kind:       req.Kind,
			LimitPrice: req.LimitPrice,
			Quantity:   req.Quantity,
			Status:     model.OrderStatusPending,
			PositionID: req.PositionID,
			ExpiresAt:  created.Add(ttl),
			CreatedAt:  created,
		}
		if err := repo.Put(r.Context(), order); err != nil {
			logger.WithError(err).Error("failed to create manual order")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		fields := map[string]interface{}{"order_id": order.OrderID, "side": order.Side, "kind": order.Kind}
		if op, ok := auth.GetOperatorFromContext(r.Context()); ok {
			fields["operator"] = op.Name
		}
		logger.WithFields(fields).Info("manual order created")
		writeJSON(w, http.StatusCreated, order)
	}
}

// CancelOrderHandler moves a pending order to request_cancel.
func CancelOrderHandler(repo orderStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		order, err := repo.Get(r.Context(), id)
		if err != nil {
			logger.WithError(err).WithField("order_id", id).Error("failed to load order")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if order == nil {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}

		moved, err := repo.UpdateStatusIf(r.Context(), id, model.OrderStatusRequestCancel, "api",
			model.OrderStatusPending)
		if err != nil {
			logger.WithError(err).WithField("order_id", id).Error("failed to request cancel")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if !moved {
			http.Error(w, "order is "+order.Status+", not pending", http.StatusConflict)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"order_id": id, "status": model.OrderStatusRequestCancel})
	}
}

// OrderLogsHandler returns the status transitions of one order, oldest first.
func OrderLogsHandler(repo orderStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		order, err := repo.Get(r.Context(), id)
		if err != nil {
			logger.WithError(err).WithField("order_id", id).Error("failed to load order")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if order == nil {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}

		logs, err := repo.Logs(r.Context(), id)
		if err != nil {
			logger.WithError(err).WithField("order_id", id).Error("failed to load order logs")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, logs)
	}
}
