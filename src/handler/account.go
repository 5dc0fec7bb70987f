package handler

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradelifecycle/src/model"
)

type balanceReader interface {
	Get(ctx context.Context, accountID string) (*model.AccountBalance, error)
}

type statsReader interface {
	Stats(ctx context.Context) (*model.PnlStats, error)
}

type accountResponse struct {
	Mode           model.Mode          `json:"mode"`
	AccountID      string              `json:"account_id,omitempty"`
	Balance        decimal.NullDecimal `json:"balance"`
	InitialBalance decimal.NullDecimal `json:"initial_balance"`
	Pnl            *model.PnlStats     `json:"pnl"`
}

// AccountHandler reports the ledger balance (paper mode) and position P&L stats.
func AccountHandler(mode model.Mode, accountID string, balances balanceReader, stats statsReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := accountResponse{Mode: mode}

		if mode.IsPaper() && balances != nil {
			row, err := balances.Get(r.Context(), accountID)
			if err != nil {
				logger.WithError(err).Error("failed to load balance")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			resp.AccountID = accountID
			if row != nil {
				resp.Balance = decimal.NewNullDecimal(row.Balance)
				resp.InitialBalance = decimal.NewNullDecimal(row.InitialBalance)
			}
		}

		pnl, err := stats.Stats(r.Context())
		if err != nil {
			logger.WithError(err).Error("failed to compute pnl stats")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		resp.Pnl = pnl
		writeJSON(w, http.StatusOK, resp)
	}
}
