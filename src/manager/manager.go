// Package manager owns the single tracked position and the in-flight order
// working set. It turns signals into orders, fills into positions and keeps
// both in step with the shared store.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"tradelifecycle/src/fill"
	"tradelifecycle/src/ledger"
	"tradelifecycle/src/metrics"
	"tradelifecycle/src/model"
)

type OrderStore interface {
	Put(ctx context.Context, order *model.Order) error
	Get(ctx context.Context, orderID string) (*model.Order, error)
	UpdateStatusIf(ctx context.Context, orderID, status, reason string, from ...string) (bool, error)
	ScanByStatus(ctx context.Context, status string) ([]model.Order, error)
}

type PositionStore interface {
	Put(ctx context.Context, position *model.Position) error
	Get(ctx context.Context, positionID string) (*model.Position, error)
	UpdateStatusIf(ctx context.Context, positionID, status string, from ...string) (bool, error)
	UpdateRiskParams(ctx context.Context, positionID string, stopLoss, takeProfit decimal.NullDecimal) error
	UpdatePnl(ctx context.Context, positionID string, pnl, markPrice decimal.Decimal) error
	ScanByStatus(ctx context.Context, statuses ...string) ([]model.Position, error)
	ScanActivePosition(ctx context.Context) (*model.Position, error)
}

// MarketInfo supplies the venue's minimum tradeable quantity.
type MarketInfo interface {
	LoadMarketMinQty(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// ExceptionRecorder persists errors worth keeping past the log stream.
type ExceptionRecorder interface {
	Capture(ctx context.Context, service, module, method, level, entityID string, err error, contextData map[string]interface{})
}

type Deps struct {
	Engine     fill.Engine
	Orders     OrderStore
	Positions  PositionStore
	Ledger     *ledger.Ledger // paper mode only
	Market     MarketInfo
	Exceptions ExceptionRecorder
	Logger     *logrus.Entry
	Now        func() time.Time
}

type Manager struct {
	cfg        Config
	mode       model.Mode
	engine     fill.Engine
	orders     OrderStore
	positions  PositionStore
	ledger     *ledger.Ledger
	market     MarketInfo
	exceptions ExceptionRecorder
	log        *logrus.Entry
	now        func() time.Time

	current *model.Position
	pending map[string]*model.Order
}

func New(deps Deps, cfg Config) *Manager {
	log := deps.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	m := &Manager{
		cfg:        cfg,
		mode:       deps.Engine.Mode(),
		engine:     deps.Engine,
		orders:     deps.Orders,
		positions:  deps.Positions,
		ledger:     deps.Ledger,
		market:     deps.Market,
		exceptions: deps.Exceptions,
		now:        now,
		pending:    make(map[string]*model.Order),
	}
	m.log = log.WithFields(logrus.Fields{"component": "manager", "mode": string(m.mode)})

	m.log.WithFields(logrus.Fields{
		"entry_offset":  cfg.EntryOffsetPct.String(),
		"exit_slippage": cfg.ExitSlippagePct.String(),
		"order_ttl":     cfg.OrderTTL.String(),
	}).Info("Lifecycle manager initialized")

	return m
}

func (m *Manager) Mode() model.Mode { return m.mode }

// CanOpenPosition is true only with no tracked position and an empty working
// set. Any pending order blocks new entries.
func (m *Manager) CanOpenPosition(symbol string) bool {
	if m.current != nil {
		m.log.WithFields(logrus.Fields{
			"symbol":      symbol,
			"position_id": m.current.PositionID,
		}).Debug("Cannot open position: already have a position")
		return false
	}
	if len(m.pending) > 0 {
		m.log.WithFields(logrus.Fields{
			"symbol":  symbol,
			"pending": len(m.pending),
		}).Debug("Cannot open position: have pending orders")
		return false
	}
	return true
}

// CalculatePositionSize returns the venue minimum quantity for symbol.
func (m *Manager) CalculatePositionSize(ctx context.Context, symbol string, price decimal.Decimal) (decimal.Decimal, error) {
	if m.market == nil {
		return decimal.Zero, &SizingError{Symbol: symbol, Reason: "no market metadata source"}
	}

	qty, err := m.market.LoadMarketMinQty(ctx, symbol)
	if err != nil {
		return decimal.Zero, &SizingError{Symbol: symbol, Reason: "market metadata unavailable", Err: err}
	}
	if !qty.IsPositive() {
		return decimal.Zero, &SizingError{Symbol: symbol, Reason: fmt.Sprintf("non-positive minimum quantity %s", qty)}
	}

	m.log.WithFields(logrus.Fields{
		"symbol": symbol,
		"qty":    qty.String(),
		"price":  price.String(),
	}).Info("Using minimum quantity")

	return qty, nil
}

// EntryLimit offsets price toward a likely fill: buys above, sells below.
func (m *Manager) EntryLimit(side string, price decimal.Decimal) decimal.Decimal {
	return offsetLimit(side, price, m.cfg.EntryOffsetPct).Round(m.cfg.PricePrecision)
}

// ExitLimit prices an exit through the market: sells below, buys above.
func (m *Manager) ExitLimit(side string, price decimal.Decimal) decimal.Decimal {
	return offsetLimit(side, price, m.cfg.ExitSlippagePct).Round(m.cfg.PricePrecision)
}

func offsetLimit(side string, price, pct decimal.Decimal) decimal.Decimal {
	if side == model.OrderSideBuy {
		return price.Mul(decimal.NewFromInt(1).Add(pct))
	}
	return price.Mul(decimal.NewFromInt(1).Sub(pct))
}

// PlaceOrder prices and places an order at the configured offset for its
// kind, tracks it and persists it.
func (m *Manager) PlaceOrder(ctx context.Context, symbol, side string, currentPrice, qty decimal.Decimal, kind string) (*model.Order, error) {
	if !model.ValidOrderSide(side) || !model.ValidOrderKind(kind) {
		return nil, fmt.Errorf("%w: side=%q kind=%q", ErrInvalidOrder, side, kind)
	}
	if !currentPrice.IsPositive() || !qty.IsPositive() {
		return nil, fmt.Errorf("%w: price=%s qty=%s", ErrInvalidOrder, currentPrice, qty)
	}

	if kind == model.OrderKindEntry {
		if !m.CanOpenPosition(symbol) {
			return nil, ErrPositionLimit
		}
		return m.place(ctx, symbol, side, m.EntryLimit(side, currentPrice), qty, kind, uuid.NewString())
	}

	positionID := ""
	if m.current != nil {
		positionID = m.current.PositionID
	} else {
		m.log.WithField("symbol", symbol).Warn("Placing exit order with no tracked position")
	}
	return m.place(ctx, symbol, side, m.ExitLimit(side, currentPrice), qty, kind, positionID)
}

func (m *Manager) place(ctx context.Context, symbol, side string, limit, qty decimal.Decimal, kind, positionID string) (*model.Order, error) {
	order, err := m.engine.Place(ctx, fill.PlaceRequest{
		Symbol:     symbol,
		Side:       side,
		Kind:       kind,
		LimitPrice: limit,
		Quantity:   qty,
		PositionID: positionID,
		ExpiresAt:  m.now().UTC().Add(m.cfg.OrderTTL),
	})
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"symbol": symbol,
			"side":   side,
			"kind":   kind,
		}).WithError(err).Error("Failed to place order")
		return nil, fmt.Errorf("place %s %s order: %w", kind, side, err)
	}

	m.pending[order.OrderID] = order
	metrics.IncOrderPlaced(string(m.mode), kind, side)

	fields := logrus.Fields{
		"order_id":    order.OrderID,
		"symbol":      symbol,
		"side":        side,
		"kind":        kind,
		"limit":       limit.String(),
		"qty":         qty.String(),
		"position_id": positionID,
	}
	if err := m.orders.Put(ctx, order); err != nil {
		// tracked in memory; the fill or expiry write will persist it again
		m.log.WithFields(fields).WithError(err).Error("Failed to persist placed order")
	}

	m.log.WithFields(fields).Info("Order placed")
	return order, nil
}

// CheckOrderStatus offers a tracked order to the fill engine and applies a
// fill according to the order's kind. Unknown ids return (nil, nil). Entry
// orders are held while a position is tracked.
func (m *Manager) CheckOrderStatus(ctx context.Context, orderID string, currentPrice decimal.Decimal) (*model.Order, error) {
	order, ok := m.pending[orderID]
	if !ok {
		return nil, nil
	}

	if order.Kind == model.OrderKindEntry && m.current != nil {
		m.log.WithFields(logrus.Fields{
			"order_id":    orderID,
			"position_id": m.current.PositionID,
		}).Debug("Holding entry order while a position is tracked")
		return nil, nil
	}

	filled, err := m.engine.TryFill(ctx, orderID, currentPrice)
	if err != nil {
		var closed *fill.ClosedError
		if errors.As(err, &closed) {
			m.dropClosedOrder(ctx, order, closed.Status)
			return nil, nil
		}
		return nil, fmt.Errorf("check order %s: %w", orderID, err)
	}
	if filled == nil {
		return nil, nil
	}

	return m.applyFill(ctx, order, filled)
}

// applyFill drops a filled order from the working set, persists it and
// dispatches on its kind.
func (m *Manager) applyFill(ctx context.Context, order *model.Order, filled *fill.Fill) (*model.Order, error) {
	delete(m.pending, order.OrderID)
	result := filled.Order
	if result.Kind == "" {
		result.Kind = order.Kind
	}
	metrics.IncOrderFilled(string(m.mode), result.Kind)

	fields := logrus.Fields{
		"order_id":   order.OrderID,
		"kind":       result.Kind,
		"fill_price": filled.Price.String(),
	}
	m.log.WithFields(fields).Info("Order filled")

	if err := m.orders.Put(ctx, result); err != nil {
		m.log.WithFields(fields).WithError(err).Error("Failed to persist filled order")
	}
	m.saveLedger(ctx)

	switch result.Kind {
	case model.OrderKindExit:
		if err := m.applyExitFill(ctx, result, filled); err != nil {
			return result, err
		}
	default:
		if err := m.applyEntryFill(ctx, result, filled); err != nil {
			return result, err
		}
	}

	return result, nil
}

func (m *Manager) applyEntryFill(ctx context.Context, order *model.Order, f *fill.Fill) error {
	positionID := order.PositionID
	if positionID == "" {
		positionID = uuid.NewString()
	}

	position := &model.Position{
		PositionID:   positionID,
		Symbol:       order.Symbol,
		Side:         order.PositionSide(),
		EntryPrice:   f.Price,
		Quantity:     order.Quantity,
		EntryTime:    f.At.UTC(),
		Status:       model.PositionStatusOpen,
		Pnl:          decimal.Zero,
		CurrentPrice: decimal.NewNullDecimal(f.Price),
	}

	fields := logrus.Fields{
		"position_id": position.PositionID,
		"symbol":      position.Symbol,
		"side":        position.Side,
		"qty":         position.Quantity.String(),
		"entry_price": position.EntryPrice.String(),
	}

	// The venue filled an entry the manager was holding. The position is
	// stored so the store matches the account, but it is not tracked.
	if m.current != nil {
		err := fmt.Errorf("%w: order %s opened %s while tracking %s",
			ErrEntryFillWhileTracked, order.OrderID, position.PositionID, m.current.PositionID)
		if perr := m.positions.Put(ctx, position); perr != nil {
			m.log.WithFields(fields).WithError(perr).Error("Failed to persist untracked position")
		}
		m.integrityAlert(ctx, "applyEntryFill", position.PositionID, err, map[string]interface{}{
			"order_id":            order.OrderID,
			"tracked_position_id": m.current.PositionID,
		})
		return err
	}

	m.current = position
	if err := m.positions.Put(ctx, position); err != nil {
		m.log.WithFields(fields).WithError(err).Error("Failed to persist opened position")
	}
	m.log.WithFields(fields).Info("Position opened")
	return nil
}

func (m *Manager) applyExitFill(ctx context.Context, order *model.Order, f *fill.Fill) error {
	if m.current == nil {
		m.log.WithFields(logrus.Fields{
			"order_id":    order.OrderID,
			"position_id": order.PositionID,
		}).Error("Exit order filled but no position is tracked")
		return fmt.Errorf("order %s: %w", order.OrderID, ErrExitWithoutPosition)
	}

	position := m.current
	if order.PositionID != "" && order.PositionID != position.PositionID {
		m.log.WithFields(logrus.Fields{
			"order_id":          order.OrderID,
			"order_position_id": order.PositionID,
			"position_id":       position.PositionID,
		}).Warn("Exit order references another position; closing the tracked one")
	}

	pnl := position.PnlAt(f.Price)
	position.MarkClosed(f.Price, pnl, f.At)
	m.current = nil
	metrics.IncPositionClosed(string(m.mode), pnl)

	fields := logrus.Fields{
		"position_id": position.PositionID,
		"exit_price":  f.Price.String(),
		"pnl":         pnl.String(),
	}
	if err := m.positions.Put(ctx, position); err != nil {
		m.log.WithFields(fields).WithError(err).Error("Failed to persist closed position")
	}
	m.log.WithFields(fields).Info("Position closed")
	return nil
}

func (m *Manager) dropClosedOrder(ctx context.Context, order *model.Order, status string) {
	delete(m.pending, order.OrderID)
	metrics.IncOrderFinished(string(m.mode), status)

	fields := logrus.Fields{"order_id": order.OrderID, "status": status}
	if _, err := m.orders.UpdateStatusIf(ctx, order.OrderID, status, "venue",
		model.OrderStatusPending, model.OrderStatusRequestCancel); err != nil {
		m.log.WithFields(fields).WithError(err).Error("Failed to persist venue-closed order")
	}
	m.log.WithFields(fields).Warn("Order closed by venue without fill")
}

func (m *Manager) saveLedger(ctx context.Context) {
	if m.ledger == nil {
		return
	}
	if err := m.ledger.Save(ctx); err != nil {
		m.log.WithError(err).Error("Failed to persist ledger balance")
	}
}

// ClosePosition places an exit order for the tracked position and moves it
// to closing. It is a no-op when nothing is open or a close is already under way.
func (m *Manager) ClosePosition(ctx context.Context, currentPrice decimal.Decimal) (*model.Order, error) {
	if m.current == nil {
		m.log.Warn("No open position to close")
		return nil, nil
	}

	position := m.current
	fields := logrus.Fields{"position_id": position.PositionID, "status": position.Status}
	if position.Status == model.PositionStatusClosing || m.hasPendingExit(position.PositionID) {
		m.log.WithFields(fields).Warn("Position is already closing")
		return nil, nil
	}

	claimed, err := m.claimClose(ctx, position)
	if err != nil {
		return nil, err
	}
	if !claimed {
		m.log.WithFields(fields).Warn("Close already claimed by another writer")
		position.Status = model.PositionStatusClosing
		return nil, nil
	}

	previous := position.Status
	position.Status = model.PositionStatusClosing

	order, err := m.placeExit(ctx, position, currentPrice)
	if err != nil {
		position.Status = previous
		m.revertClose(ctx, position.PositionID, previous)
		return nil, err
	}
	return order, nil
}

func (m *Manager) placeExit(ctx context.Context, position *model.Position, currentPrice decimal.Decimal) (*model.Order, error) {
	side := position.ExitSide()
	return m.place(ctx, position.Symbol, side, m.ExitLimit(side, currentPrice), position.Quantity, model.OrderKindExit, position.PositionID)
}

// claimClose moves the stored position to closing if it is still open or
// request_close. A position missing from the store is written as closing.
func (m *Manager) claimClose(ctx context.Context, position *model.Position) (bool, error) {
	moved, err := m.positions.UpdateStatusIf(ctx, position.PositionID, model.PositionStatusClosing,
		model.PositionStatusOpen, model.PositionStatusRequestClose)
	if err != nil {
		return false, fmt.Errorf("claim close of %s: %w", position.PositionID, err)
	}
	if moved {
		return true, nil
	}

	stored, err := m.positions.Get(ctx, position.PositionID)
	if err != nil {
		return false, fmt.Errorf("claim close of %s: %w", position.PositionID, err)
	}
	if stored != nil {
		return false, nil
	}

	row := *position
	row.Status = model.PositionStatusClosing
	if err := m.positions.Put(ctx, &row); err != nil {
		return false, fmt.Errorf("claim close of %s: %w", position.PositionID, err)
	}
	return true, nil
}

func (m *Manager) revertClose(ctx context.Context, positionID, status string) {
	if _, err := m.positions.UpdateStatusIf(ctx, positionID, status, model.PositionStatusClosing); err != nil {
		m.log.WithField("position_id", positionID).WithError(err).Error("Failed to revert closing status")
	}
}

func (m *Manager) hasPendingExit(positionID string) bool {
	for _, o := range m.pending {
		if o.Kind == model.OrderKindExit && o.PositionID == positionID {
			return true
		}
	}
	return false
}

// ClosePositionImmediate closes a position by id even when it is not the
// tracked one. The target is resolved from the tracked position, then the
// paper ledger, then the store, then hint. It returns false when the
// position cannot be found or an exit could not be placed.
func (m *Manager) ClosePositionImmediate(ctx context.Context, positionID string, currentPrice decimal.Decimal, hint *model.Position) (bool, error) {
	fields := logrus.Fields{"position_id": positionID, "price": currentPrice.String()}

	position, source, err := m.resolvePosition(ctx, positionID, hint)
	if err != nil {
		return false, err
	}
	if position == nil {
		m.log.WithFields(fields).Warn("Position not found for immediate close")
		return false, nil
	}
	fields["source"] = source

	if position.Status == model.PositionStatusClosed {
		m.log.WithFields(fields).Warn("Position already closed")
		return false, nil
	}

	switch {
	case m.current == nil:
		m.current = position
		m.log.WithFields(fields).Info("Adopted position for close")
	case m.current.PositionID != positionID:
		err := fmt.Errorf("%w: tracking %s, asked to close %s", ErrPositionMismatch, m.current.PositionID, positionID)
		m.integrityAlert(ctx, "ClosePositionImmediate", positionID, err, map[string]interface{}{
			"tracked_position_id": m.current.PositionID,
		})
		return false, err
	}

	if m.hasPendingExit(positionID) {
		m.log.WithFields(fields).Info("Exit order already pending")
		return true, nil
	}

	order, err := m.placeExit(ctx, m.current, currentPrice)
	if err != nil {
		return false, err
	}

	m.current.Status = model.PositionStatusClosing
	if _, err := m.positions.UpdateStatusIf(ctx, positionID, model.PositionStatusClosing,
		model.PositionStatusOpen, model.PositionStatusRequestClose); err != nil {
		m.log.WithFields(fields).WithError(err).Error("Failed to mark position closing")
	}

	m.log.WithFields(fields).WithField("order_id", order.OrderID).Info("Close order placed")
	return true, nil
}

func (m *Manager) resolvePosition(ctx context.Context, positionID string, hint *model.Position) (*model.Position, string, error) {
	if m.current != nil && m.current.PositionID == positionID {
		return m.current, "tracked", nil
	}

	if m.ledger != nil {
		if h, ok := m.ledger.HoldingByPositionID(positionID); ok {
			return &model.Position{
				PositionID: h.PositionID,
				Symbol:     h.Symbol,
				Side:       h.Side,
				EntryPrice: h.EntryPrice,
				Quantity:   h.Quantity,
				EntryTime:  h.OpenedAt,
				Status:     model.PositionStatusOpen,
				Pnl:        decimal.Zero,
			}, "ledger", nil
		}
	}

	stored, err := m.positions.Get(ctx, positionID)
	if err != nil {
		return nil, "", fmt.Errorf("resolve position %s: %w", positionID, err)
	}
	if stored != nil {
		return stored, "store", nil
	}

	if hint != nil && (hint.PositionID == positionID || hint.PositionID == "") {
		p := *hint
		p.PositionID = positionID
		return &p, "hint", nil
	}
	return nil, "", nil
}

// UpdatePositionPnl marks the tracked position to price and persists it on every call.
func (m *Manager) UpdatePositionPnl(ctx context.Context, symbol string, currentPrice decimal.Decimal) error {
	if m.current == nil || m.current.Symbol != symbol {
		return nil
	}

	pnl := m.current.PnlAt(currentPrice)
	m.current.Pnl = pnl
	m.current.CurrentPrice = decimal.NewNullDecimal(currentPrice)

	if err := m.positions.UpdatePnl(ctx, m.current.PositionID, pnl, currentPrice); err != nil {
		return fmt.Errorf("update pnl of %s: %w", m.current.PositionID, err)
	}
	return nil
}

// UpdateRiskParams sets stop loss and take profit on the tracked position.
func (m *Manager) UpdateRiskParams(ctx context.Context, stopLoss, takeProfit decimal.NullDecimal) error {
	if m.current == nil {
		return nil
	}
	m.current.StopLoss = stopLoss
	m.current.TakeProfit = takeProfit
	if err := m.positions.UpdateRiskParams(ctx, m.current.PositionID, stopLoss, takeProfit); err != nil {
		return fmt.Errorf("update risk params of %s: %w", m.current.PositionID, err)
	}
	return nil
}

// CancelExpiredOrders cancels every tracked order past its expiry, stores it
// as expired and drops it. Orders whose store write fails stay tracked and
// are retried next call.
func (m *Manager) CancelExpiredOrders(ctx context.Context) error {
	now := m.now()
	var errs []error

	for _, id := range m.PendingOrderIDs() {
		order := m.pending[id]
		if !order.IsExpired(now) {
			continue
		}

		fields := logrus.Fields{"order_id": id, "expires_at": order.ExpiresAt}
		filled, err := m.cancelOrder(ctx, order)
		if filled {
			m.log.WithFields(fields).Warn("Expired order filled on venue before cancel")
			if err != nil {
				errs = append(errs, fmt.Errorf("expired %s filled: %w", id, err))
			}
			continue
		}
		if err != nil {
			m.log.WithFields(fields).WithError(err).Error("Failed to cancel expired order")
			errs = append(errs, fmt.Errorf("cancel expired %s: %w", id, err))
			continue
		}

		moved, err := m.orders.UpdateStatusIf(ctx, id, model.OrderStatusExpired, "ttl",
			model.OrderStatusPending, model.OrderStatusRequestCancel)
		if err != nil {
			m.log.WithFields(fields).WithError(err).Error("Failed to persist expired order")
			errs = append(errs, fmt.Errorf("expire %s: %w", id, err))
			continue
		}
		if !moved {
			m.log.WithFields(fields).Warn("Expired order already advanced in store")
		}

		delete(m.pending, id)
		metrics.IncOrderFinished(string(m.mode), model.OrderStatusExpired)
		m.log.WithFields(fields).Info("Canceled expired order")
	}

	return errors.Join(errs...)
}

// cancelOrder cancels order engine-side. Untracked ids count as canceled.
// When the venue filled the order first the fill is applied and filled is true.
func (m *Manager) cancelOrder(ctx context.Context, order *model.Order) (filled bool, err error) {
	err = m.engine.Cancel(ctx, order.OrderID)
	var raced *fill.FilledError
	switch {
	case err == nil, errors.Is(err, fill.ErrUnknownOrder):
		return false, nil
	case errors.As(err, &raced):
		_, err = m.applyFill(ctx, order, raced.Fill)
		return true, err
	}
	return false, err
}

func (m *Manager) integrityAlert(ctx context.Context, method, entityID string, err error, data map[string]interface{}) {
	metrics.IncIntegrityViolation()

	m.log.WithFields(logrus.Fields{
		"alert":     "data_integrity",
		"method":    method,
		"entity_id": entityID,
	}).WithError(err).Error("DATA INTEGRITY VIOLATION")

	if m.exceptions != nil {
		m.exceptions.Capture(ctx, "trader", "manager", method, model.ExceptionLevelFatal, entityID, err, data)
	}
}

// CurrentPosition returns a copy of the tracked position, or nil.
func (m *Manager) CurrentPosition() *model.Position {
	if m.current == nil {
		return nil
	}
	p := *m.current
	return &p
}

// PendingOrderIDs returns the working set ids in creation order.
func (m *Manager) PendingOrderIDs() []string {
	ids := make([]string, 0, len(m.pending))
	for id := range m.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := m.pending[ids[i]], m.pending[ids[j]]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Snapshot is a read-only view of the manager state.
type Snapshot struct {
	Position *model.Position
	Pending  []model.Order
}

func (m *Manager) Snapshot() Snapshot {
	s := Snapshot{Position: m.CurrentPosition()}
	for _, id := range m.PendingOrderIDs() {
		s.Pending = append(s.Pending, *m.pending[id])
	}
	return s
}

// ResumeClose re-places the exit for a tracked position left in closing with
// no exit order in flight, e.g. after its exit expired or a restart.
func (m *Manager) ResumeClose(ctx context.Context, currentPrice decimal.Decimal) (*model.Order, error) {
	if m.current == nil || m.current.Status != model.PositionStatusClosing || m.hasPendingExit(m.current.PositionID) {
		return nil, nil
	}

	m.log.WithField("position_id", m.current.PositionID).Warn("Closing position has no exit order, re-placing")
	return m.placeExit(ctx, m.current, currentPrice)
}
