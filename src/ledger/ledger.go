// Package ledger keeps the virtual cash balance and holdings of the paper
// account. It is mutated only by simulated fills and persisted by the caller
// after every fill through Save.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"tradelifecycle/src/model"
)

var (
	ErrInvalidFill  = errors.New("invalid fill")
	ErrSideMismatch = errors.New("opening fill on the opposite side of an existing holding")
)

// Store persists the balance row. Get returns (nil, nil) when nothing was saved.
type Store interface {
	Get(ctx context.Context, accountID string) (*model.AccountBalance, error)
	Save(ctx context.Context, balance *model.AccountBalance) error
}

// Holding is the ledger's view of an open simulated position.
type Holding struct {
	PositionID string
	Symbol     string
	Side       string
	EntryPrice decimal.Decimal
	Quantity   decimal.Decimal
	OpenedAt   time.Time
}

// UnrealizedPnl marks the holding to price.
func (h Holding) UnrealizedPnl(price decimal.Decimal) decimal.Decimal {
	diff := price.Sub(h.EntryPrice)
	if h.Side == model.PositionSideShort {
		diff = diff.Neg()
	}
	return diff.Mul(h.Quantity)
}

// FillInput describes one executed fill. Opening fills create or add to a
// holding; closing fills reduce it.
type FillInput struct {
	PositionID string
	Symbol     string
	Side       string
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	Opening    bool
	At         time.Time
}

// FillResult is the ledger effect of a fill.
type FillResult struct {
	PositionID  string
	RealizedPnl decimal.Decimal
	Balance     decimal.Decimal
	Closed      bool
}

type Stats struct {
	Balance        decimal.Decimal `json:"balance"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	Equity         decimal.Decimal `json:"equity"`
	TotalPnl       decimal.Decimal `json:"total_pnl"`
	PnlPct         decimal.Decimal `json:"pnl_pct"`
	OpenHoldings   int             `json:"open_holdings"`
}

type Ledger struct {
	mu sync.RWMutex

	accountID string
	initial   decimal.Decimal
	balance   decimal.Decimal
	holdings  map[string]*Holding

	store Store
	log   *logrus.Entry
}

// New creates a ledger at the configured initial balance. store may be nil,
// in which case Load and Save are no-ops.
func New(config Config, store Store, log *logrus.Entry) *Ledger {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Ledger{
		accountID: config.AccountID,
		initial:   config.InitialBalance,
		balance:   config.InitialBalance,
		holdings:  make(map[string]*Holding),
		store:     store,
		log:       log.WithField("component", "ledger"),
	}
}

// Load reads the persisted balance, seeding the store with the initial
// balance on first run.
func (l *Ledger) Load(ctx context.Context) error {
	if l.store == nil {
		return nil
	}

	row, err := l.store.Get(ctx, l.accountID)
	if err != nil {
		return fmt.Errorf("load ledger balance: %w", err)
	}

	if row == nil {
		l.log.WithField("balance", l.initial.String()).Info("No stored balance, seeding initial balance")
		return l.Save(ctx)
	}

	l.mu.Lock()
	l.balance = row.Balance
	if !row.InitialBalance.IsZero() {
		l.initial = row.InitialBalance
	}
	l.mu.Unlock()

	l.log.WithField("balance", row.Balance.String()).Info("Ledger balance restored")
	return nil
}

// Save persists the current balance.
func (l *Ledger) Save(ctx context.Context) error {
	if l.store == nil {
		return nil
	}

	l.mu.RLock()
	row := &model.AccountBalance{
		AccountID:      l.accountID,
		Balance:        l.balance,
		InitialBalance: l.initial,
		UpdatedAt:      time.Now().UTC(),
	}
	l.mu.RUnlock()

	if err := l.store.Save(ctx, row); err != nil {
		return fmt.Errorf("save ledger balance: %w", err)
	}
	return nil
}

// Restore replaces the holdings, used after Load when an active position is
// rehydrated from the store.
func (l *Ledger) Restore(holdings []Holding) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.holdings = make(map[string]*Holding, len(holdings))
	for i := range holdings {
		h := holdings[i]
		l.holdings[h.Symbol] = &h
	}
}

// RecordFill applies a fill: buys debit price*qty, sells credit it.
func (l *Ledger) RecordFill(in FillInput) (FillResult, error) {
	if in.Symbol == "" || !in.Quantity.IsPositive() || !in.Price.IsPositive() || !model.ValidOrderSide(in.Side) {
		return FillResult{}, fmt.Errorf("%w: symbol=%q side=%q qty=%s price=%s",
			ErrInvalidFill, in.Symbol, in.Side, in.Quantity, in.Price)
	}
	if in.At.IsZero() {
		in.At = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	side := model.PositionSideLong
	if in.Side == model.OrderSideSell {
		side = model.PositionSideShort
	}

	existing := l.holdings[in.Symbol]
	if in.Opening && existing != nil && existing.Side != side {
		return FillResult{}, fmt.Errorf("%w: %s holding is %s", ErrSideMismatch, in.Symbol, existing.Side)
	}

	notional := in.Price.Mul(in.Quantity)
	if in.Side == model.OrderSideBuy {
		l.balance = l.balance.Sub(notional)
	} else {
		l.balance = l.balance.Add(notional)
	}

	res := FillResult{PositionID: in.PositionID, RealizedPnl: decimal.Zero}

	fields := logrus.Fields{
		"symbol":  in.Symbol,
		"side":    in.Side,
		"qty":     in.Quantity.String(),
		"price":   in.Price.String(),
		"opening": in.Opening,
	}

	switch {
	case in.Opening && existing == nil:
		l.holdings[in.Symbol] = &Holding{
			PositionID: in.PositionID,
			Symbol:     in.Symbol,
			Side:       side,
			EntryPrice: in.Price,
			Quantity:   in.Quantity,
			OpenedAt:   in.At,
		}

	case in.Opening:
		total := existing.Quantity.Add(in.Quantity)
		existing.EntryPrice = existing.EntryPrice.Mul(existing.Quantity).
			Add(in.Price.Mul(in.Quantity)).
			Div(total)
		existing.Quantity = total
		res.PositionID = existing.PositionID

	case existing == nil:
		l.log.WithFields(fields).Warn("Closing fill without a holding; cash moved, no pnl realized")

	default:
		closedQty := decimal.Min(in.Quantity, existing.Quantity)
		res.PositionID = existing.PositionID
		res.RealizedPnl = Holding{Side: existing.Side, EntryPrice: existing.EntryPrice, Quantity: closedQty}.
			UnrealizedPnl(in.Price)
		existing.Quantity = existing.Quantity.Sub(in.Quantity)
		if !existing.Quantity.IsPositive() {
			delete(l.holdings, in.Symbol)
			res.Closed = true
		}
	}

	res.Balance = l.balance
	l.log.WithFields(fields).WithFields(logrus.Fields{
		"balance":      l.balance.String(),
		"realized_pnl": res.RealizedPnl.String(),
	}).Info("Paper fill recorded")

	return res, nil
}

func (l *Ledger) Balance() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balance
}

func (l *Ledger) InitialBalance() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.initial
}

// Holding returns a copy of the holding for symbol.
func (l *Ledger) Holding(symbol string) (Holding, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	h, ok := l.holdings[symbol]
	if !ok {
		return Holding{}, false
	}
	return *h, true
}

// HoldingByPositionID looks a holding up by the position it backs.
func (l *Ledger) HoldingByPositionID(positionID string) (Holding, bool) {
	if positionID == "" {
		return Holding{}, false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, h := range l.holdings {
		if h.PositionID == positionID {
			return *h, true
		}
	}
	return Holding{}, false
}

// Holdings returns copies of every holding ordered by symbol.
func (l *Ledger) Holdings() []Holding {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Holding, 0, len(l.holdings))
	for _, h := range l.holdings {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// UnrealizedPnl sums the mark-to-market of holdings with a known price.
func (l *Ledger) UnrealizedPnl(prices map[string]decimal.Decimal) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := decimal.Zero
	for symbol, h := range l.holdings {
		if price, ok := prices[symbol]; ok {
			total = total.Add(h.UnrealizedPnl(price))
		}
	}
	return total
}

func (l *Ledger) Equity(prices map[string]decimal.Decimal) decimal.Decimal {
	return l.Balance().Add(l.UnrealizedPnl(prices))
}

func (l *Ledger) Stats(prices map[string]decimal.Decimal) Stats {
	equity := l.Equity(prices)
	initial := l.InitialBalance()
	total := equity.Sub(initial)

	pct := decimal.Zero
	if !initial.IsZero() {
		pct = total.Div(initial).Mul(decimal.NewFromInt(100)).Round(4)
	}

	l.mu.RLock()
	open := len(l.holdings)
	l.mu.RUnlock()

	return Stats{
		Balance:        l.Balance(),
		InitialBalance: initial,
		Equity:         equity,
		TotalPnl:       total,
		PnlPct:         pct,
		OpenHoldings:   open,
	}
}

// HoldingFromPosition rebuilds a holding from a stored position.
func HoldingFromPosition(p *model.Position) Holding {
	return Holding{
		PositionID: p.PositionID,
		Symbol:     p.Symbol,
		Side:       p.Side,
		EntryPrice: p.EntryPrice,
		Quantity:   p.Quantity,
		OpenedAt:   p.EntryTime,
	}
}
