package executors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"tradelifecycle/src/feed"
	"tradelifecycle/src/ledger"
	"tradelifecycle/src/manager"
	"tradelifecycle/src/metrics"
	"tradelifecycle/src/model"
	"tradelifecycle/src/risk"
	"tradelifecycle/src/strategy"
)

// Lifecycle is the part of manager.Manager the driver calls.
type Lifecycle interface {
	Mode() model.Mode
	CanOpenPosition(symbol string) bool
	CalculatePositionSize(ctx context.Context, symbol string, price decimal.Decimal) (decimal.Decimal, error)
	PlaceOrder(ctx context.Context, symbol, side string, currentPrice, qty decimal.Decimal, kind string) (*model.Order, error)
	CheckOrderStatus(ctx context.Context, orderID string, currentPrice decimal.Decimal) (*model.Order, error)
	ClosePosition(ctx context.Context, currentPrice decimal.Decimal) (*model.Order, error)
	ResumeClose(ctx context.Context, currentPrice decimal.Decimal) (*model.Order, error)
	UpdatePositionPnl(ctx context.Context, symbol string, currentPrice decimal.Decimal) error
	UpdateRiskParams(ctx context.Context, stopLoss, takeProfit decimal.NullDecimal) error
	SyncRiskParams(ctx context.Context) error
	CancelExpiredOrders(ctx context.Context) error
	SyncState(ctx context.Context, prices map[string]decimal.Decimal) error
	CurrentPosition() *model.Position
	PendingOrderIDs() []string
}

type PriceSource interface {
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)
}

type CandleSource interface {
	ClosedCandles(n int) []feed.Candle
}

type PriceStore interface {
	Append(ctx context.Context, bar *model.PriceBar) error
	PruneExpired(ctx context.Context, now time.Time) (int64, error)
	NextStopLoss(ctx context.Context, position *model.Position, now time.Time, interval time.Duration, lookback int) (decimal.NullDecimal, bool, error)
}

type DriverDeps struct {
	Manager  Lifecycle
	Prices   PriceSource
	Candles  CandleSource
	History  PriceStore
	Strategy strategy.Strategy
	// Ledger is set in paper mode for equity reporting.
	Ledger *ledger.Ledger
	Risk   risk.Config
	Logger *logrus.Entry
	Now    func() time.Time
}

// Driver runs the trading cycle on a fixed cadence.
type Driver struct {
	cfg      Config
	mgr      Lifecycle
	prices   PriceSource
	candles  CandleSource
	history  PriceStore
	strategy strategy.Strategy
	ledger   *ledger.Ledger
	risk     risk.Config
	log      *logrus.Entry
	now      func() time.Time

	started    time.Time
	cycles     int
	lastPrune  time.Time
	lastBar    time.Time
	flip       strategy.Signal
	lastPrice  decimal.Decimal
	lastSignal strategy.Signal

	// position the default stops were last considered for
	seededID string
}

func NewDriver(cfg Config, deps DriverDeps) *Driver {
	log := deps.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	if cfg.StatusEvery <= 0 {
		cfg.StatusEvery = 6
	}
	return &Driver{
		cfg:      cfg,
		mgr:      deps.Manager,
		prices:   deps.Prices,
		candles:  deps.Candles,
		history:  deps.History,
		strategy: deps.Strategy,
		ledger:   deps.Ledger,
		risk:     deps.Risk,
		log:      log.WithFields(logrus.Fields{"component": "driver", "symbol": cfg.Symbol}),
		now:      now,
		started:  now(),
	}
}

// Run ticks every LoopPeriod until ctx ends. A failing or panicking tick is
// logged and the loop carries on.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.LoopPeriod)
	defer ticker.Stop()

	d.log.WithField("period", d.cfg.LoopPeriod.String()).Info("driver started")
	d.safeTick(ctx)

	for {
		select {
		case <-ctx.Done():
			d.log.Info("driver stopped")
			return nil
		case <-ticker.C:
			d.safeTick(ctx)
		}
	}
}

func (d *Driver) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncTickFailure("panic")
			d.log.WithField("panic", fmt.Sprint(r)).Error("tick panicked")
		}
	}()
	if err := d.Tick(ctx); err != nil {
		d.log.WithError(err).Warn("tick finished with errors")
	}
}

// Tick runs one cycle. Stage failures are counted and joined; later stages
// still run unless there is no price at all.
func (d *Driver) Tick(ctx context.Context) error {
	d.cycles++
	symbol := d.cfg.Symbol
	var errs []error
	fail := func(stage string, err error) {
		metrics.IncTickFailure(stage)
		d.log.WithField("stage", stage).WithError(err).Error("tick stage failed")
		errs = append(errs, fmt.Errorf("%s: %w", stage, err))
	}

	price, err := d.prices.Price(ctx, symbol)
	if err != nil {
		fail("price", err)
		// store-side requests still get reconciled, close requests wait for a price
		if err := d.mgr.SyncState(ctx, nil); err != nil {
			fail("sync", err)
		}
		return errors.Join(errs...)
	}
	d.lastPrice = price
	now := d.now()

	if d.history != nil {
		if err := d.history.Append(ctx, model.NewTickBar(symbol, price, now, d.cfg.PriceHistoryTTL)); err != nil {
			fail("history", err)
		}
	}

	if err := d.mgr.UpdatePositionPnl(ctx, symbol, price); err != nil {
		fail("pnl", err)
	}

	for _, id := range d.mgr.PendingOrderIDs() {
		filled, err := d.mgr.CheckOrderStatus(ctx, id, price)
		if err != nil {
			fail("orders", err)
			continue
		}
		if filled != nil {
			d.log.WithFields(logrus.Fields{
				"order_id": filled.OrderID,
				"kind":     filled.Kind,
				"side":     filled.Side,
				"price":    filled.FillPrice.Decimal.String(),
			}).Info("order filled")
		}
	}

	if err := d.mgr.CancelExpiredOrders(ctx); err != nil {
		fail("expiry", err)
	}

	if _, err := d.mgr.ResumeClose(ctx, price); err != nil {
		fail("resume_close", err)
	}

	if err := d.mgr.SyncRiskParams(ctx); err != nil {
		fail("risk_sync", err)
	} else if err := d.manageRisk(ctx, price, now); err != nil {
		fail("risk", err)
	}

	if err := d.evaluateSignal(ctx, price, now); err != nil {
		fail("signal", err)
	}

	if err := d.mgr.SyncState(ctx, map[string]decimal.Decimal{symbol: price}); err != nil {
		fail("sync", err)
	}

	if d.history != nil && (d.lastPrune.IsZero() || now.Sub(d.lastPrune) >= d.cfg.PruneEvery) {
		n, err := d.history.PruneExpired(ctx, now)
		if err != nil {
			fail("prune", err)
		} else {
			d.lastPrune = now
			if n > 0 {
				d.log.WithField("rows", n).Info("pruned expired price history")
			}
		}
	}

	if d.ledger != nil {
		metrics.SetEquity(d.ledger.Equity(map[string]decimal.Decimal{symbol: price}))
	}
	if d.cycles%d.cfg.StatusEvery == 0 {
		d.logStatus(price, now)
	}

	return errors.Join(errs...)
}

// manageRisk seeds default stops on a fresh position, trails the stop and
// closes on a stop loss or take profit hit. It expects the tracked position
// to carry the store's risk params already.
func (d *Driver) manageRisk(ctx context.Context, price decimal.Decimal, now time.Time) error {
	position := d.mgr.CurrentPosition()
	if position == nil || position.Status != model.PositionStatusOpen {
		return nil
	}

	if d.needsDefaultStops(position) {
		sl, tp := defaultStops(position, d.cfg.StopLossPct, d.cfg.TakeProfitPct)
		if err := d.mgr.UpdateRiskParams(ctx, sl, tp); err != nil {
			return err
		}
		d.seededID = position.PositionID
		position.StopLoss, position.TakeProfit = sl, tp
		d.log.WithFields(logrus.Fields{
			"position_id": position.PositionID,
			"stop_loss":   sl.Decimal.String(),
			"take_profit": tp.Decimal.String(),
		}).Info("default stops set")
	}

	if d.cfg.TrailingStop && d.history != nil && position.StopLoss.Valid {
		next, moved, err := d.history.NextStopLoss(ctx, position, now, d.cfg.TrailingInterval, d.cfg.TrailingLookback)
		if err != nil {
			return fmt.Errorf("trailing stop: %w", err)
		}
		if moved {
			if err := d.mgr.UpdateRiskParams(ctx, next, position.TakeProfit); err != nil {
				return err
			}
			d.log.WithFields(logrus.Fields{
				"position_id": position.PositionID,
				"from":        position.StopLoss.Decimal.String(),
				"to":          next.Decimal.String(),
			}).Info("stop loss trailed")
			position.StopLoss = next
		}
	}

	reason, hit := risk.CheckExit(position, price)
	if !hit {
		return nil
	}
	d.log.WithFields(logrus.Fields{
		"position_id": position.PositionID,
		"reason":      reason,
		"price":       price.String(),
	}).Info("exit level reached, closing")
	_, err := d.mgr.ClosePosition(ctx, price)
	return err
}

// needsDefaultStops is true once per position opened since the driver
// started, and only while it has neither level. Levels cleared later stay cleared.
func (d *Driver) needsDefaultStops(p *model.Position) bool {
	if p.PositionID == d.seededID || p.EntryTime.Before(d.started) {
		return false
	}
	if d.cfg.StopLossPct <= 0 && d.cfg.TakeProfitPct <= 0 {
		return false
	}
	if p.StopLoss.Valid || p.TakeProfit.Valid {
		d.seededID = p.PositionID
		return false
	}
	return true
}

func defaultStops(p *model.Position, slPct, tpPct float64) (decimal.NullDecimal, decimal.NullDecimal) {
	hundred := decimal.NewFromInt(100)
	sign := decimal.NewFromInt(1)
	if p.Side == model.PositionSideShort {
		sign = sign.Neg()
	}

	var sl, tp decimal.NullDecimal
	if slPct > 0 {
		dist := p.EntryPrice.Mul(decimal.NewFromFloat(slPct)).Div(hundred)
		sl = decimal.NewNullDecimal(p.EntryPrice.Sub(dist.Mul(sign)).Round(8))
	}
	if tpPct > 0 {
		dist := p.EntryPrice.Mul(decimal.NewFromFloat(tpPct)).Div(hundred)
		tp = decimal.NewNullDecimal(p.EntryPrice.Add(dist.Mul(sign)).Round(8))
	}
	return sl, tp
}

// evaluateSignal runs the strategy once per new closed candle. An opposite
// signal closes the position and the new side is entered once flat.
func (d *Driver) evaluateSignal(ctx context.Context, price decimal.Decimal, now time.Time) error {
	if d.strategy == nil || d.candles == nil {
		return nil
	}

	candles := d.candles.ClosedCandles(d.strategy.MinBars())
	if len(candles) > 0 {
		newest := candles[len(candles)-1].OpenTime
		if newest.After(d.lastBar) {
			d.lastBar = newest
			closes := make([]decimal.Decimal, len(candles))
			for i, c := range candles {
				closes[i] = c.Close
			}
			if sig := d.strategy.Calculate(closes); sig != strategy.SignalNone {
				d.lastSignal = sig
				d.log.WithFields(logrus.Fields{"signal": sig, "strategy": d.strategy.Name()}).Info("strategy signal")
				if err := d.onSignal(ctx, sig, price); err != nil {
					return err
				}
			}
		}
	}

	if d.flip != strategy.SignalNone && d.mgr.CanOpenPosition(d.cfg.Symbol) {
		sig := d.flip
		d.flip = strategy.SignalNone
		return d.enter(ctx, sig, price, now)
	}
	return nil
}

func (d *Driver) onSignal(ctx context.Context, sig strategy.Signal, price decimal.Decimal) error {
	position := d.mgr.CurrentPosition()
	if position == nil {
		if !d.mgr.CanOpenPosition(d.cfg.Symbol) {
			d.log.WithField("signal", sig).Info("entry already pending, signal ignored")
			return nil
		}
		return d.enter(ctx, sig, price, d.now())
	}

	same := (sig == strategy.SignalBuy && position.Side == model.PositionSideLong) ||
		(sig == strategy.SignalSell && position.Side == model.PositionSideShort)
	if same {
		return nil
	}

	d.log.WithFields(logrus.Fields{
		"position_id": position.PositionID,
		"signal":      sig,
	}).Info("opposite signal, closing to flip")
	d.flip = sig
	_, err := d.mgr.ClosePosition(ctx, price)
	return err
}

func (d *Driver) enter(ctx context.Context, sig strategy.Signal, price decimal.Decimal, now time.Time) error {
	if ok, session := risk.EntryAllowed(now, d.risk); !ok {
		d.log.WithFields(logrus.Fields{"signal": sig, "session": session}).Info("entry blocked by session window")
		return nil
	}

	side := model.OrderSideBuy
	if sig == strategy.SignalSell {
		side = model.OrderSideSell
	}

	qty, err := d.mgr.CalculatePositionSize(ctx, d.cfg.Symbol, price)
	if err != nil {
		var sizing *manager.SizingError
		if errors.As(err, &sizing) {
			d.log.WithError(err).Warn("cannot size entry")
			return nil
		}
		return err
	}

	order, err := d.mgr.PlaceOrder(ctx, d.cfg.Symbol, side, price, qty, model.OrderKindEntry)
	if err != nil {
		if errors.Is(err, manager.ErrPositionLimit) {
			return nil
		}
		return err
	}
	d.log.WithFields(logrus.Fields{
		"order_id": order.OrderID,
		"side":     side,
		"qty":      qty.String(),
		"limit":    order.LimitPrice.String(),
	}).Info("entry order placed")
	return nil
}

func (d *Driver) logStatus(price decimal.Decimal, now time.Time) {
	fields := logrus.Fields{
		"mode":    d.mgr.Mode(),
		"uptime":  now.Sub(d.started).Truncate(time.Second).String(),
		"cycles":  d.cycles,
		"price":   price.String(),
		"pending": len(d.mgr.PendingOrderIDs()),
		"session": risk.SessionAt(now),
	}
	if d.lastSignal != strategy.SignalNone {
		fields["last_signal"] = d.lastSignal
	}
	if p := d.mgr.CurrentPosition(); p != nil {
		fields["position_id"] = p.PositionID
		fields["position_side"] = p.Side
		fields["position_status"] = p.Status
		fields["pnl"] = p.Pnl.StringFixed(2)
	}
	if d.ledger != nil {
		stats := d.ledger.Stats(map[string]decimal.Decimal{d.cfg.Symbol: price})
		fields["balance"] = stats.Balance.StringFixed(2)
		fields["equity"] = stats.Equity.StringFixed(2)
		fields["total_pnl"] = stats.TotalPnl.StringFixed(2)
	}
	d.log.WithFields(fields).Info("STATUS")
}

// OnClosedCandle stores a closed stream candle as a 1m bar.
func (d *Driver) OnClosedCandle(ctx context.Context, c feed.Candle) {
	if d.history == nil {
		return
	}
	base := model.OHLCVBase{
		Datetime: c.OpenTime,
		Open:     c.Open,
		High:     c.High,
		Low:      c.Low,
		Close:    c.Close,
		Volume:   c.Volume,
		Symbol:   c.Symbol,
	}
	if err := d.history.Append(ctx, base.ToPriceBar(model.PriceInterval1m, d.cfg.PriceHistoryTTL)); err != nil {
		metrics.IncTickFailure("candle")
		d.log.WithError(err).Warn("failed to store closed candle")
	}
}
