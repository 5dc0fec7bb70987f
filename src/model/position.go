package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PositionSideLong  = "long"
	PositionSideShort = "short"

	PositionStatusOpen         = "open"
	PositionStatusRequestClose = "request_close"
	PositionStatusClosing      = "closing"
	PositionStatusClosed       = "closed"
)

// ActivePositionStatuses are the statuses scanned when recovering the tracked position.
var ActivePositionStatuses = []string{PositionStatusOpen, PositionStatusRequestClose}

type Position struct {
	PositionID   string              `gorm:"primaryKey;size:64;column:position_id" json:"position_id"`
	Symbol       string              `gorm:"size:50;not null" json:"symbol"`
	Side         string              `gorm:"size:10;not null" json:"side"`
	EntryPrice   decimal.Decimal     `gorm:"type:numeric;not null" json:"entry_price"`
	Quantity     decimal.Decimal     `gorm:"type:numeric;not null" json:"quantity"`
	EntryTime    time.Time           `json:"entry_time"`
	Status       string              `gorm:"size:50;not null;default:open" json:"status"`
	ExitPrice    decimal.NullDecimal `gorm:"type:numeric" json:"exit_price"`
	ExitTime     *time.Time          `json:"exit_time,omitempty"`
	Pnl          decimal.Decimal     `gorm:"type:numeric;not null" json:"pnl"`
	CurrentPrice decimal.NullDecimal `gorm:"type:numeric" json:"current_price"`
	StopLoss     decimal.NullDecimal `gorm:"type:numeric" json:"stop_loss"`
	TakeProfit   decimal.NullDecimal `gorm:"type:numeric" json:"take_profit"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// IsActive is true for every status that counts against the single-position rule.
func (p *Position) IsActive() bool {
	switch p.Status {
	case PositionStatusOpen, PositionStatusRequestClose, PositionStatusClosing:
		return true
	}
	return false
}

// PnlAt marks the position to price: (price - entry) * qty for longs, inverse for shorts.
func (p *Position) PnlAt(price decimal.Decimal) decimal.Decimal {
	diff := price.Sub(p.EntryPrice)
	if p.Side == PositionSideShort {
		diff = diff.Neg()
	}
	return diff.Mul(p.Quantity)
}

// ExitSide is the order side that closes the position.
func (p *Position) ExitSide() string {
	if p.Side == PositionSideShort {
		return OrderSideBuy
	}
	return OrderSideSell
}

// MarkClosed records the terminal exit of the position.
func (p *Position) MarkClosed(exitPrice, pnl decimal.Decimal, at time.Time) {
	exitTime := at.UTC()
	p.Status = PositionStatusClosed
	p.ExitPrice = decimal.NewNullDecimal(exitPrice)
	p.ExitTime = &exitTime
	p.Pnl = pnl
	p.CurrentPrice = decimal.NewNullDecimal(exitPrice)
}

// PnlStats summarizes realized and unrealized results across positions.
type PnlStats struct {
	TotalPnl  decimal.Decimal `json:"total_pnl"`
	OpenPnl   decimal.Decimal `json:"open_pnl"`
	ClosedPnl decimal.Decimal `json:"closed_pnl"`
	WinRate   decimal.Decimal `json:"win_rate"`
	Wins      int             `json:"wins"`
	Losses    int             `json:"losses"`
	Closed    int             `json:"closed"`
}
