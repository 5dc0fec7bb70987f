package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradelifecycle/src/model"
)

func TestAccountHandler_Paper(t *testing.T) {
	balances := &mockBalances{row: &model.AccountBalance{
		AccountID:      "paper",
		Balance:        decimal.NewFromInt(9910),
		InitialBalance: decimal.NewFromInt(10000),
	}}
	h := AccountHandler(model.ModePaper, "paper", balances, &mockPositionStore{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/account", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var got accountResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, model.ModePaper, got.Mode)
	assert.True(t, got.Balance.Valid)
	assert.True(t, got.Balance.Decimal.Equal(decimal.NewFromInt(9910)))
	require.NotNil(t, got.Pnl)
	assert.True(t, got.Pnl.TotalPnl.Equal(decimal.RequireFromString("12.5")))
}

func TestAccountHandler_LiveSkipsLedger(t *testing.T) {
	balances := &mockBalances{err: assert.AnError}
	h := AccountHandler(model.ModeLive, "", balances, &mockPositionStore{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/account", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var got accountResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.False(t, got.Balance.Valid)
}

func TestAccountHandler_Errors(t *testing.T) {
	rr := httptest.NewRecorder()
	AccountHandler(model.ModePaper, "paper", &mockBalances{err: assert.AnError}, &mockPositionStore{}).
		ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/account", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	rr = httptest.NewRecorder()
	AccountHandler(model.ModePaper, "paper", &mockBalances{}, &mockPositionStore{err: assert.AnError}).
		ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/account", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
