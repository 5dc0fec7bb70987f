package fill

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"tradelifecycle/src/ledger"
	"tradelifecycle/src/model"
)

// SimulatedEngine fills paper orders instantly at the observed price once it
// crosses the limit.
type SimulatedEngine struct {
	mu     sync.Mutex
	ledger *ledger.Ledger
	orders map[string]*model.Order
	now    func() time.Time
	log    *logrus.Entry
}

func NewSimulatedEngine(l *ledger.Ledger, log *logrus.Entry) *SimulatedEngine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &SimulatedEngine{
		ledger: l,
		orders: make(map[string]*model.Order),
		now:    time.Now,
		log:    log.WithField("engine", "simulated"),
	}
}

// WithClock overrides the time source.
func (e *SimulatedEngine) WithClock(now func() time.Time) *SimulatedEngine {
	e.now = now
	return e
}

func (e *SimulatedEngine) Mode() model.Mode { return model.ModePaper }

func (e *SimulatedEngine) Place(_ context.Context, req PlaceRequest) (*model.Order, error) {
	if err := req.validate(); err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}

	now := e.now().UTC()
	order := &model.Order{
		OrderID:    uuid.NewString(),
		Symbol:     req.Symbol,
		Side:       req.Side,
		Kind:       req.Kind,
		LimitPrice: req.LimitPrice,
		Quantity:   req.Quantity,
		Status:     model.OrderStatusPending,
		PositionID: req.PositionID,
		ExpiresAt:  req.ExpiresAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	e.mu.Lock()
	e.orders[order.OrderID] = clone(order)
	e.mu.Unlock()

	e.log.WithFields(logrus.Fields{
		"order_id": order.OrderID,
		"symbol":   order.Symbol,
		"side":     order.Side,
		"kind":     order.Kind,
		"limit":    order.LimitPrice.String(),
		"qty":      order.Quantity.String(),
	}).Info("[PAPER] Placed limit order")

	return order, nil
}

func (e *SimulatedEngine) TryFill(_ context.Context, orderID string, currentPrice decimal.Decimal) (*Fill, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.orders[orderID]
	if !ok || order.Status != model.OrderStatusPending {
		return nil, nil
	}
	if !Crosses(order.Side, order.LimitPrice, currentPrice) {
		return nil, nil
	}

	kind := order.Kind
	if kind == "" {
		kind = model.OrderKindEntry
	}
	if kind == model.OrderKindEntry && order.PositionID == "" {
		order.PositionID = uuid.NewString()
	}

	at := e.now().UTC()
	fill := &Fill{Price: currentPrice, At: at}

	if e.ledger != nil {
		res, err := e.ledger.RecordFill(ledger.FillInput{
			PositionID: order.PositionID,
			Symbol:     order.Symbol,
			Side:       order.Side,
			Quantity:   order.Quantity,
			Price:      currentPrice,
			Opening:    kind == model.OrderKindEntry,
			At:         at,
		})
		if err != nil {
			return nil, fmt.Errorf("record fill for %s: %w", orderID, err)
		}
		fill.RealizedPnl = decimal.NewNullDecimal(res.RealizedPnl)
		fill.Balance = decimal.NewNullDecimal(res.Balance)
		if order.PositionID == "" {
			order.PositionID = res.PositionID
		}
	}

	order.MarkFilled(currentPrice, at)
	order.UpdatedAt = at
	delete(e.orders, orderID)

	fill.Order = clone(order)

	e.log.WithFields(logrus.Fields{
		"order_id":   orderID,
		"side":       order.Side,
		"kind":       kind,
		"fill_price": currentPrice.String(),
		"limit":      order.LimitPrice.String(),
	}).Info("[PAPER] Order filled")

	return fill, nil
}

func (e *SimulatedEngine) Cancel(_ context.Context, orderID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.orders[orderID]; !ok {
		return ErrUnknownOrder
	}
	delete(e.orders, orderID)

	e.log.WithField("order_id", orderID).Info("[PAPER] Order canceled")
	return nil
}

func (e *SimulatedEngine) Track(order *model.Order) {
	if order == nil || order.OrderID == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.orders[order.OrderID]; ok {
		return
	}
	e.orders[order.OrderID] = clone(order)
}
