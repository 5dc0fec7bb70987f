package fill

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"tradelifecycle/src/model"
)

const (
	VenueStatusOpen            = "open"
	VenueStatusPartiallyFilled = "partially_filled"
	VenueStatusFilled          = "filled"
	VenueStatusCanceled        = "canceled"
	VenueStatusExpired         = "expired"
	VenueStatusRejected        = "rejected"
)

// ErrVenueOrderNotFound is returned by a Venue when it has no order for the client id.
var ErrVenueOrderNotFound = errors.New("venue order not found")

// VenueOrder is the venue's view of an order, keyed by the client order id
// the engine assigned.
type VenueOrder struct {
	ID            string
	ClientOrderID string
	Symbol        string
	Status        string
	FilledQty     decimal.Decimal
	AvgPrice      decimal.Decimal
	UpdatedAt     time.Time
}

// Venue is the execution venue used in live mode.
type Venue interface {
	LoadMarketMinQty(ctx context.Context, symbol string) (decimal.Decimal, error)
	CreateLimitOrder(ctx context.Context, clientOrderID, symbol, side string, qty, price decimal.Decimal) (*VenueOrder, error)
	FetchOrder(ctx context.Context, symbol, clientOrderID string) (*VenueOrder, error)
	CancelOrder(ctx context.Context, symbol, clientOrderID string) error
}

type liveOrder struct {
	order     *model.Order
	submitted bool
}

// LiveEngine places real limit orders and detects fills by polling FetchOrder.
// Orders adopted through Track are submitted lazily on the next TryFill,
// after checking the venue does not already hold them.
type LiveEngine struct {
	mu     sync.Mutex
	venue  Venue
	orders map[string]*liveOrder
	now    func() time.Time
	log    *logrus.Entry
}

func NewLiveEngine(venue Venue, log *logrus.Entry) *LiveEngine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &LiveEngine{
		venue:  venue,
		orders: make(map[string]*liveOrder),
		now:    time.Now,
		log:    log.WithField("engine", "live"),
	}
}

func (e *LiveEngine) WithClock(now func() time.Time) *LiveEngine {
	e.now = now
	return e
}

func (e *LiveEngine) Mode() model.Mode { return model.ModeLive }

func (e *LiveEngine) Place(ctx context.Context, req PlaceRequest) (*model.Order, error) {
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

	if _, err := e.venue.CreateLimitOrder(ctx, order.OrderID, order.Symbol, order.Side, order.Quantity, order.LimitPrice); err != nil {
		return nil, fmt.Errorf("create limit order on venue: %w", err)
	}

	e.mu.Lock()
	e.orders[order.OrderID] = &liveOrder{order: clone(order), submitted: true}
	e.mu.Unlock()

	e.log.WithFields(logrus.Fields{
		"order_id": order.OrderID,
		"symbol":   order.Symbol,
		"side":     order.Side,
		"kind":     order.Kind,
		"limit":    order.LimitPrice.String(),
		"qty":      order.Quantity.String(),
	}).Info("[LIVE] Placed limit order")

	return order, nil
}

func (e *LiveEngine) TryFill(ctx context.Context, orderID string, _ decimal.Decimal) (*Fill, error) {
	e.mu.Lock()
	tracked, ok := e.orders[orderID]
	e.mu.Unlock()
	if !ok {
		return nil, nil
	}

	order := tracked.order
	remote, err := e.venue.FetchOrder(ctx, order.Symbol, orderID)
	if errors.Is(err, ErrVenueOrderNotFound) {
		if tracked.submitted {
			e.forget(orderID)
			return nil, &ClosedError{OrderID: orderID, Status: model.OrderStatusCanceled}
		}
		if _, err := e.venue.CreateLimitOrder(ctx, orderID, order.Symbol, order.Side, order.Quantity, order.LimitPrice); err != nil {
			return nil, fmt.Errorf("submit adopted order %s: %w", orderID, err)
		}
		e.markSubmitted(orderID)
		e.log.WithField("order_id", orderID).Info("[LIVE] Submitted adopted order")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch order %s: %w", orderID, err)
	}
	e.markSubmitted(orderID)

	switch remote.Status {
	case VenueStatusFilled:
		filled := e.fillFrom(order, remote)
		e.forget(orderID)

		e.log.WithFields(logrus.Fields{
			"order_id":   orderID,
			"venue_id":   remote.ID,
			"fill_price": filled.Price.String(),
		}).Info("[LIVE] Order filled")

		return filled, nil

	case VenueStatusCanceled, VenueStatusRejected:
		e.forget(orderID)
		return nil, &ClosedError{OrderID: orderID, Status: model.OrderStatusCanceled}

	case VenueStatusExpired:
		e.forget(orderID)
		return nil, &ClosedError{OrderID: orderID, Status: model.OrderStatusExpired}
	}

	return nil, nil
}

// Cancel cancels the order on the venue, adopted orders included. When the
// venue has no live order under the id it is asked for the order's final
// state: a fill comes back as *FilledError, anything else counts as canceled.
func (e *LiveEngine) Cancel(ctx context.Context, orderID string) error {
	e.mu.Lock()
	tracked, ok := e.orders[orderID]
	e.mu.Unlock()
	if !ok {
		return ErrUnknownOrder
	}

	order := tracked.order
	err := e.venue.CancelOrder(ctx, order.Symbol, orderID)
	if err == nil {
		e.forget(orderID)
		e.log.WithField("order_id", orderID).Info("[LIVE] Order canceled")
		return nil
	}
	if !errors.Is(err, ErrVenueOrderNotFound) {
		return fmt.Errorf("cancel order %s on venue: %w", orderID, err)
	}

	remote, err := e.venue.FetchOrder(ctx, order.Symbol, orderID)
	if errors.Is(err, ErrVenueOrderNotFound) {
		e.forget(orderID)
		e.log.WithField("order_id", orderID).Info("[LIVE] Order never reached venue, canceled locally")
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch order %s after cancel: %w", orderID, err)
	}

	fields := logrus.Fields{"order_id": orderID, "venue_id": remote.ID, "venue_status": remote.Status}
	switch remote.Status {
	case VenueStatusFilled:
		filled := e.fillFrom(order, remote)
		e.forget(orderID)
		e.log.WithFields(fields).WithField("fill_price", filled.Price.String()).Warn("[LIVE] Order filled before cancel")
		return &FilledError{Fill: filled}
	case VenueStatusOpen, VenueStatusPartiallyFilled:
		// cancel and fetch disagree; keep tracking and retry next cycle
		return fmt.Errorf("cancel order %s: venue reports %s", orderID, remote.Status)
	}

	e.forget(orderID)
	e.log.WithFields(fields).Info("[LIVE] Order already closed on venue")
	return nil
}

func (e *LiveEngine) Track(order *model.Order) {
	if order == nil || order.OrderID == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.orders[order.OrderID]; ok {
		return
	}
	e.orders[order.OrderID] = &liveOrder{order: clone(order)}
}

func (e *LiveEngine) fillFrom(order *model.Order, remote *VenueOrder) *Fill {
	price := remote.AvgPrice
	if !price.IsPositive() {
		price = order.LimitPrice
	}
	at := remote.UpdatedAt
	if at.IsZero() {
		at = e.now()
	}

	filled := clone(order)
	filled.MarkFilled(price, at)
	filled.UpdatedAt = at.UTC()
	return &Fill{Order: filled, Price: price, At: at.UTC()}
}

func (e *LiveEngine) markSubmitted(orderID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if o, ok := e.orders[orderID]; ok {
		o.submitted = true
	}
}

func (e *LiveEngine) forget(orderID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.orders, orderID)
}
