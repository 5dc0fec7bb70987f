package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"tradelifecycle/src/metrics"
	"tradelifecycle/src/model"
)

const (
	PassImportPending  = "import_pending"
	PassCancelRequests = "cancel_requests"
	PassCloseRequests  = "close_requests"
	PassRiskParams     = "risk_params"
)

// SyncState reconciles the manager with the shared store in four passes.
// Each pass runs regardless of earlier failures; their errors are joined.
// Every store write is conditional on the status the pass observed, so a
// second run with no outside change does nothing.
func (m *Manager) SyncState(ctx context.Context, prices map[string]decimal.Decimal) error {
	passes := []struct {
		name string
		run  func(context.Context) error
	}{
		{PassImportPending, m.importPendingOrders},
		{PassCancelRequests, m.processCancelRequests},
		{PassCloseRequests, func(ctx context.Context) error { return m.processCloseRequests(ctx, prices) }},
		{PassRiskParams, m.SyncRiskParams},
	}

	var errs []error
	for _, p := range passes {
		if err := m.runPass(ctx, p.name, p.run); err != nil {
			metrics.IncSyncPassFailure(p.name)
			m.log.WithField("pass", p.name).WithError(err).Error("Reconciliation pass failed")
			errs = append(errs, fmt.Errorf("%s: %w", p.name, err))
		}
	}

	metrics.SetOpenPosition(m.current != nil)
	metrics.SetPendingOrders(len(m.pending))

	return errors.Join(errs...)
}

func (m *Manager) runPass(ctx context.Context, name string, run func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", name, r)
		}
	}()
	return run(ctx)
}

// importPendingOrders adopts pending store orders the manager does not track yet.
func (m *Manager) importPendingOrders(ctx context.Context) error {
	orders, err := m.orders.ScanByStatus(ctx, model.OrderStatusPending)
	if err != nil {
		return err
	}

	var errs []error
	for i := range orders {
		order := orders[i]
		if _, ok := m.pending[order.OrderID]; ok {
			continue
		}

		fields := logrus.Fields{
			"order_id": order.OrderID,
			"symbol":   order.Symbol,
			"side":     order.Side,
			"kind":     order.Kind,
		}

		if !model.ValidOrderSide(order.Side) || !order.Quantity.IsPositive() || !order.LimitPrice.IsPositive() {
			m.log.WithFields(fields).Warn("Skipping malformed pending order")
			continue
		}

		repaired := false
		if order.Kind == "" {
			m.log.WithFields(fields).Warn("Pending order has no kind, treating as entry")
			order.Kind = model.OrderKindEntry
			repaired = true
		}
		if order.ExpiresAt.IsZero() {
			order.ExpiresAt = m.now().UTC().Add(m.cfg.OrderTTL)
			repaired = true
		}
		if order.CreatedAt.IsZero() {
			order.CreatedAt = m.now().UTC()
		}

		if repaired {
			if err := m.orders.Put(ctx, &order); err != nil {
				errs = append(errs, fmt.Errorf("repair %s: %w", order.OrderID, err))
				continue
			}
		}

		m.engine.Track(&order)
		m.pending[order.OrderID] = &order
		m.log.WithFields(fields).Info("Imported pending order from store")
	}

	return errors.Join(errs...)
}

// processCancelRequests cancels request_cancel orders engine-side and moves
// them to canceled. Orders the manager never tracked, e.g. after a restart,
// are handed to the engine first so the cancel still reaches the venue. An
// order the venue filled before the cancel is applied as a fill instead.
func (m *Manager) processCancelRequests(ctx context.Context) error {
	orders, err := m.orders.ScanByStatus(ctx, model.OrderStatusRequestCancel)
	if err != nil {
		return err
	}

	var errs []error
	for i := range orders {
		order := &orders[i]
		fields := logrus.Fields{"order_id": order.OrderID}

		if tracked, ok := m.pending[order.OrderID]; ok {
			order = tracked
		} else {
			m.engine.Track(order)
		}

		filled, err := m.cancelOrder(ctx, order)
		if filled {
			m.log.WithFields(fields).Warn("Cancel request lost to a venue fill")
			if err != nil {
				errs = append(errs, fmt.Errorf("cancel %s filled: %w", order.OrderID, err))
			}
			continue
		}
		if err != nil {
			m.log.WithFields(fields).WithError(err).Error("Engine cancel failed")
			errs = append(errs, fmt.Errorf("cancel %s: %w", order.OrderID, err))
			continue
		}

		moved, err := m.orders.UpdateStatusIf(ctx, order.OrderID, model.OrderStatusCanceled, "request_cancel",
			model.OrderStatusRequestCancel)
		if err != nil {
			errs = append(errs, fmt.Errorf("mark %s canceled: %w", order.OrderID, err))
			continue
		}

		delete(m.pending, order.OrderID)
		if moved {
			metrics.IncOrderFinished(string(m.mode), model.OrderStatusCanceled)
			m.log.WithFields(fields).Info("Processed cancel request")
		} else {
			m.log.WithFields(fields).Info("Cancel request already handled")
		}
	}

	return errors.Join(errs...)
}

// processCloseRequests claims request_close positions by moving them to
// closing before placing the exit, and reverts the claim if placement fails.
// Positions without a price this cycle are left untouched.
func (m *Manager) processCloseRequests(ctx context.Context, prices map[string]decimal.Decimal) error {
	positions, err := m.positions.ScanByStatus(ctx, model.PositionStatusRequestClose)
	if err != nil {
		return err
	}

	var errs []error
	for i := range positions {
		position := positions[i]
		fields := logrus.Fields{"position_id": position.PositionID, "symbol": position.Symbol}

		price, ok := prices[position.Symbol]
		if !ok || !price.IsPositive() {
			m.log.WithFields(fields).Warn("Cannot process close request: no price data")
			continue
		}

		claimed, err := m.positions.UpdateStatusIf(ctx, position.PositionID, model.PositionStatusClosing,
			model.PositionStatusRequestClose)
		if err != nil {
			errs = append(errs, fmt.Errorf("claim %s: %w", position.PositionID, err))
			continue
		}
		if !claimed {
			m.log.WithFields(fields).Info("Close request already claimed")
			continue
		}
		position.Status = model.PositionStatusClosing

		ok, err = m.ClosePositionImmediate(ctx, position.PositionID, price, &position)
		if err != nil || !ok {
			m.revertClose(ctx, position.PositionID, model.PositionStatusRequestClose)
			if m.current != nil && m.current.PositionID == position.PositionID {
				m.current.Status = model.PositionStatusRequestClose
			}
			if err == nil {
				err = errors.New("close order not placed")
			}
			errs = append(errs, fmt.Errorf("close %s: %w", position.PositionID, err))
			continue
		}

		m.log.WithFields(fields).Info("Processed close request")
	}

	return errors.Join(errs...)
}

// SyncRiskParams overlays stop loss and take profit edited in the store onto
// the tracked position. Callers that write risk params from the tracked
// position run it first so store edits are not overwritten.
func (m *Manager) SyncRiskParams(ctx context.Context) error {
	if m.current == nil {
		return nil
	}

	stored, err := m.positions.Get(ctx, m.current.PositionID)
	if err != nil {
		return err
	}
	if stored == nil {
		m.log.WithField("position_id", m.current.PositionID).Warn("Tracked position missing from store")
		return nil
	}

	if !nullEqual(stored.StopLoss, m.current.StopLoss) || !nullEqual(stored.TakeProfit, m.current.TakeProfit) {
		m.log.WithFields(logrus.Fields{
			"position_id": m.current.PositionID,
			"stop_loss":   nullString(stored.StopLoss),
			"take_profit": nullString(stored.TakeProfit),
		}).Info("Risk params updated from store")
	}
	m.current.StopLoss = stored.StopLoss
	m.current.TakeProfit = stored.TakeProfit
	return nil
}

func nullEqual(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}

func nullString(v decimal.NullDecimal) string {
	if !v.Valid {
		return "none"
	}
	return v.Decimal.String()
}
