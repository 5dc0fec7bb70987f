package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradelifecycle/src/model"
	"tradelifecycle/src/repository"
)

type positionStore interface {
	Latest(ctx context.Context, status string, limit int) ([]model.Position, error)
	Get(ctx context.Context, positionID string) (*model.Position, error)
	UpdateStatusIf(ctx context.Context, positionID, status string, from ...string) (bool, error)
	UpdateRiskParams(ctx context.Context, positionID string, stopLoss, takeProfit decimal.NullDecimal) error
}

func ListPositionsHandler(repo positionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := limitParam(r, 50)
		if !ok {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}

		positions, err := repo.Latest(r.Context(), r.URL.Query().Get("status"), limit)
		if err != nil {
			logger.WithError(err).Error("failed to list positions")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, positions)
	}
}

// ClosePositionHandler moves an open position to request_close.
func ClosePositionHandler(repo positionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		position, err := repo.Get(r.Context(), id)
		if err != nil {
			logger.WithError(err).WithField("position_id", id).Error("failed to load position")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if position == nil {
			http.Error(w, "position not found", http.StatusNotFound)
			return
		}

		moved, err := repo.UpdateStatusIf(r.Context(), id, model.PositionStatusRequestClose, model.PositionStatusOpen)
		if err != nil {
			logger.WithError(err).WithField("position_id", id).Error("failed to request close")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if !moved {
			http.Error(w, "position is "+position.Status+", not open", http.StatusConflict)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"position_id": id, "status": model.PositionStatusRequestClose})
	}
}

type riskRequest struct {
	StopLoss   decimal.NullDecimal `json:"stop_loss"`
	TakeProfit decimal.NullDecimal `json:"take_profit"`
}

// UpdateRiskHandler sets or clears stop loss and take profit. A null clears
// the level.
func UpdateRiskHandler(repo positionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req riskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if (req.StopLoss.Valid && !req.StopLoss.Decimal.IsPositive()) ||
			(req.TakeProfit.Valid && !req.TakeProfit.Decimal.IsPositive()) {
			http.Error(w, "stop_loss and take_profit must be positive", http.StatusBadRequest)
			return
		}

		if err := repo.UpdateRiskParams(r.Context(), id, req.StopLoss, req.TakeProfit); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				http.Error(w, "position not found", http.StatusNotFound)
				return
			}
			logger.WithError(err).WithField("position_id", id).Error("failed to update risk params")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, req)
	}
}
