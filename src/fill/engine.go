// Package fill decides whether orders fill. SimulatedEngine crosses orders
// against observed prices and books them on the paper ledger; LiveEngine
// places real limit orders on a venue and polls their status.
package fill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tradelifecycle/src/model"
)

var (
	// ErrUnknownOrder is returned by Cancel for ids the engine is not tracking.
	ErrUnknownOrder = errors.New("order not tracked by engine")

	// ErrOrderClosedByVenue means the venue ended the order without a fill.
	ErrOrderClosedByVenue = errors.New("order closed by venue without fill")

	// ErrFilledBeforeCancel means a cancel found the order already filled.
	ErrFilledBeforeCancel = errors.New("order filled before cancel")
)

// ClosedError carries the terminal status a venue reported for an order that
// ended without filling.
type ClosedError struct {
	OrderID string
	Status  string
}

func (e *ClosedError) Error() string {
	return fmt.Sprintf("%s: order %s is %s", ErrOrderClosedByVenue, e.OrderID, e.Status)
}

func (e *ClosedError) Unwrap() error { return ErrOrderClosedByVenue }

// FilledError is returned by Cancel when the venue filled the order first.
// The engine no longer tracks it; the caller must apply Fill.
type FilledError struct {
	Fill *Fill
}

func (e *FilledError) Error() string {
	return fmt.Sprintf("%s: order %s at %s", ErrFilledBeforeCancel, e.Fill.Order.OrderID, e.Fill.Price)
}

func (e *FilledError) Unwrap() error { return ErrFilledBeforeCancel }

type PlaceRequest struct {
	Symbol     string
	Side       string
	Kind       string
	LimitPrice decimal.Decimal
	Quantity   decimal.Decimal
	PositionID string
	ExpiresAt  time.Time
}

func (r PlaceRequest) validate() error {
	switch {
	case r.Symbol == "":
		return errors.New("symbol is required")
	case !model.ValidOrderSide(r.Side):
		return fmt.Errorf("invalid side %q", r.Side)
	case !model.ValidOrderKind(r.Kind):
		return fmt.Errorf("invalid kind %q", r.Kind)
	case !r.LimitPrice.IsPositive():
		return fmt.Errorf("limit price must be positive, got %s", r.LimitPrice)
	case !r.Quantity.IsPositive():
		return fmt.Errorf("quantity must be positive, got %s", r.Quantity)
	}
	return nil
}

// Fill is a completed fill. Order is already in status filled.
type Fill struct {
	Order *model.Order
	Price decimal.Decimal
	At    time.Time

	// Set by the simulated engine from the ledger effect.
	RealizedPnl decimal.NullDecimal
	Balance     decimal.NullDecimal
}

// Engine is selected once at startup by mode.
type Engine interface {
	Mode() model.Mode
	Place(ctx context.Context, req PlaceRequest) (*model.Order, error)
	// TryFill returns (nil, nil) when the order did not fill or is unknown.
	TryFill(ctx context.Context, orderID string, currentPrice decimal.Decimal) (*Fill, error)
	// Cancel returns ErrUnknownOrder for untracked ids and a *FilledError
	// when the order filled before the cancel took effect.
	Cancel(ctx context.Context, orderID string) error
	// Track adopts an order created outside the engine, e.g. imported from the store.
	Track(order *model.Order)
}

func clone(o *model.Order) *model.Order {
	c := *o
	if o.FilledAt != nil {
		t := *o.FilledAt
		c.FilledAt = &t
	}
	return &c
}

// Crosses reports whether a limit order would fill at price: buys at or
// below the limit, sells at or above it.
func Crosses(side string, limit, price decimal.Decimal) bool {
	switch side {
	case model.OrderSideBuy:
		return price.LessThanOrEqual(limit)
	case model.OrderSideSell:
		return price.GreaterThanOrEqual(limit)
	}
	return false
}
