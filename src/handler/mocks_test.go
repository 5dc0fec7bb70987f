package handler

import (
	"context"

	"github.com/shopspring/decimal"

	"tradelifecycle/src/model"
	"tradelifecycle/src/repository"
)

type mockOrderStore struct {
	orders map[string]*model.Order
	list   []model.Order
	logs   map[string][]model.OrderLog
	err    error
	logErr error

	gotStatus string
	gotLimit  int
	put       []*model.Order
	reason    string
}

func (m *mockOrderStore) Latest(ctx context.Context, status string, limit int) ([]model.Order, error) {
	m.gotStatus = status
	m.gotLimit = limit
	return m.list, m.err
}

func (m *mockOrderStore) Get(ctx context.Context, orderID string) (*model.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.orders[orderID], nil
}

func (m *mockOrderStore) Put(ctx context.Context, order *model.Order) error {
	if m.err != nil {
		return m.err
	}
	m.put = append(m.put, order)
	return nil
}

func (m *mockOrderStore) UpdateStatusIf(ctx context.Context, orderID, status, reason string, from ...string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	o, ok := m.orders[orderID]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if o.Status == f {
			o.Status = status
			m.reason = reason
			return true, nil
		}
	}
	return false, nil
}

func (m *mockOrderStore) Logs(ctx context.Context, orderID string) ([]model.OrderLog, error) {
	if m.logErr != nil {
		return nil, m.logErr
	}
	return m.logs[orderID], nil
}

type mockExceptions struct {
	rows []model.Exception
	err  error

	gotLevel string
	gotLimit int
}

func (m *mockExceptions) Recent(ctx context.Context, level string, limit int) ([]model.Exception, error) {
	m.gotLevel = level
	m.gotLimit = limit
	return m.rows, m.err
}

type mockPositionStore struct {
	positions map[string]*model.Position
	list      []model.Position
	err       error

	gotStatus string
}

func (m *mockPositionStore) Latest(ctx context.Context, status string, limit int) ([]model.Position, error) {
	m.gotStatus = status
	return m.list, m.err
}

func (m *mockPositionStore) Get(ctx context.Context, positionID string) (*model.Position, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.positions[positionID], nil
}

func (m *mockPositionStore) UpdateStatusIf(ctx context.Context, positionID, status string, from ...string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	p, ok := m.positions[positionID]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if p.Status == f {
			p.Status = status
			return true, nil
		}
	}
	return false, nil
}

func (m *mockPositionStore) UpdateRiskParams(ctx context.Context, positionID string, stopLoss, takeProfit decimal.NullDecimal) error {
	if m.err != nil {
		return m.err
	}
	p, ok := m.positions[positionID]
	if !ok {
		return repository.ErrNotFound
	}
	p.StopLoss = stopLoss
	p.TakeProfit = takeProfit
	return nil
}

func (m *mockPositionStore) Stats(ctx context.Context) (*model.PnlStats, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &model.PnlStats{TotalPnl: decimal.RequireFromString("12.5"), Wins: 1, Closed: 1}, nil
}

type mockBalances struct {
	row *model.AccountBalance
	err error
}

func (m *mockBalances) Get(ctx context.Context, accountID string) (*model.AccountBalance, error) {
	return m.row, m.err
}
