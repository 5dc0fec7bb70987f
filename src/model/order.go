package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderKindEntry = "entry"
	OrderKindExit  = "exit"

	OrderSideBuy  = "buy"
	OrderSideSell = "sell"

	OrderStatusPending       = "pending"
	OrderStatusFilled        = "filled"
	OrderStatusCanceled      = "canceled"
	OrderStatusExpired       = "expired"
	OrderStatusRequestCancel = "request_cancel"
)

// Order is an intent to trade a fixed quantity of one symbol at a limit price.
// Kind tells the fill handler whether the fill opens or closes a position and
// must survive every store round trip.
type Order struct {
	OrderID    string              `gorm:"primaryKey;size:64;column:order_id" json:"order_id"`
	Symbol     string              `gorm:"size:50;not null" json:"symbol"`
	Side       string              `gorm:"size:10;not null" json:"side"`
	Kind       string              `gorm:"size:10;not null;default:entry" json:"kind"`
	LimitPrice decimal.Decimal     `gorm:"type:numeric;not null" json:"limit_price"`
	Quantity   decimal.Decimal     `gorm:"type:numeric;not null" json:"quantity"`
	Status     string              `gorm:"size:50;not null;default:pending" json:"status"`
	PositionID string              `gorm:"size:64" json:"position_id,omitempty"`
	FillPrice  decimal.NullDecimal `gorm:"type:numeric" json:"fill_price"`
	FilledAt   *time.Time          `json:"filled_at,omitempty"`
	ExpiresAt  time.Time           `json:"expires_at"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// IsTerminal reports whether the order reached an immutable status.
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusExpired:
		return true
	}
	return false
}

func (o *Order) IsExpired(now time.Time) bool {
	return !o.ExpiresAt.IsZero() && now.After(o.ExpiresAt)
}

// MarkFilled moves the order to filled. FillPrice and FilledAt are only ever
// set here.
func (o *Order) MarkFilled(price decimal.Decimal, at time.Time) {
	o.Status = OrderStatusFilled
	o.FillPrice = decimal.NewNullDecimal(price)
	filledAt := at.UTC()
	o.FilledAt = &filledAt
}

// PositionSide maps the order side to the side of the position an entry fill opens.
func (o *Order) PositionSide() string {
	if o.Side == OrderSideSell {
		return PositionSideShort
	}
	return PositionSideLong
}

// OppositeSide returns the order side that unwinds the given one.
func OppositeSide(side string) string {
	if side == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// ValidOrderSide reports whether side is buy or sell.
func ValidOrderSide(side string) bool {
	return side == OrderSideBuy || side == OrderSideSell
}

// ValidOrderKind reports whether kind is entry or exit.
func ValidOrderKind(kind string) bool {
	return kind == OrderKindEntry || kind == OrderKindExit
}
