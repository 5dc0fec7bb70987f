// model/order_log.go
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderLog is the audit trail of order status transitions, one row per change.
type OrderLog struct {
	ID uint `gorm:"primaryKey" json:"id"`

	OrderID string `gorm:"size:64;index" json:"order_id"`
	Mode    string `gorm:"size:10" json:"mode"`

	// Snapshot of the order at the moment of this log entry
	Symbol   string              `gorm:"size:50" json:"symbol"`
	Side     string              `gorm:"size:10" json:"side"`
	Kind     string              `gorm:"size:10" json:"kind"`
	Quantity decimal.Decimal     `gorm:"type:numeric" json:"quantity"`
	Price    decimal.NullDecimal `gorm:"type:numeric" json:"price"`

	FromStatus string    `gorm:"size:50" json:"from_status"`
	Status     string    `gorm:"size:50;not null" json:"status"`
	Reason     string    `gorm:"size:255" json:"reason"` // e.g. "filled", "expired", "request_cancel"
	CreatedAt  time.Time `json:"created_at"`
}

func (OrderLog) TableName() string {
	return "order_logs"
}

// NewOrderLog snapshots the order for a transition from -> order.Status.
func NewOrderLog(mode Mode, order *Order, from, reason string) *OrderLog {
	price := order.FillPrice
	if !price.Valid {
		price = decimal.NewNullDecimal(order.LimitPrice)
	}
	return &OrderLog{
		OrderID:    order.OrderID,
		Mode:       string(mode),
		Symbol:     order.Symbol,
		Side:       order.Side,
		Kind:       order.Kind,
		Quantity:   order.Quantity,
		Price:      price,
		FromStatus: from,
		Status:     order.Status,
		Reason:     reason,
		CreatedAt:  time.Now().UTC(),
	}
}
