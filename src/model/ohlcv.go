package model

import (
	"time"

	"github.com/shopspring/decimal"

	"tradelifecycle/src/utils"
)

const (
	PriceIntervalTick = "tick"
	PriceInterval1m   = "1m"
	PriceInterval1h   = "1h"
)

// PriceBar is one row of the append-only price history. Ticks are stored as
// bars with open = high = low = close. Rows past ExpiresAt are pruned.
type PriceBar struct {
	ID        uint            `gorm:"primaryKey"`
	Symbol    string          `json:"symbol"   gorm:"type:varchar(50);not null;uniqueIndex:ux_price_history_symbol_interval_datetime,priority:1"`
	Interval  string          `json:"interval" gorm:"type:varchar(10);not null;uniqueIndex:ux_price_history_symbol_interval_datetime,priority:2"`
	Datetime  time.Time       `json:"datetime" gorm:"not null;uniqueIndex:ux_price_history_symbol_interval_datetime,priority:3;index:idx_price_history_datetime"`
	Open      decimal.Decimal `json:"open"   gorm:"type:double precision;not null"`
	High      decimal.Decimal `json:"high"   gorm:"type:double precision;not null"`
	Low       decimal.Decimal `json:"low"    gorm:"type:double precision;not null"`
	Close     decimal.Decimal `json:"close"  gorm:"type:double precision;not null"`
	Volume    decimal.Decimal `json:"volume" gorm:"type:double precision;not null"`
	ExpiresAt time.Time       `json:"expires_at" gorm:"not null;index:idx_price_history_expires_at"`
}

func (PriceBar) TableName() string {
	return "price_history"
}

// NewTickBar builds a tick row for price observed at the given time.
func NewTickBar(symbol string, price decimal.Decimal, at time.Time, ttl time.Duration) *PriceBar {
	at = at.UTC().Truncate(time.Second)
	return &PriceBar{
		Symbol:    symbol,
		Interval:  PriceIntervalTick,
		Datetime:  at,
		Open:      price,
		High:      price,
		Low:       price,
		Close:     price,
		Volume:    decimal.Zero,
		ExpiresAt: at.Add(ttl),
	}
}

// OHLCVBase is the interval-agnostic candle shape produced by venue clients.
type OHLCVBase struct {
	Datetime time.Time       `json:"datetime"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	Volume   decimal.Decimal `json:"volume"`
	Symbol   string          `json:"symbol"`
}

// ToPriceBar aligns the candle to its interval boundary and stamps the TTL.
func (o *OHLCVBase) ToPriceBar(interval string, ttl time.Duration) *PriceBar {
	dt := o.Datetime.UTC()
	switch interval {
	case PriceInterval1m:
		dt = utils.ResetTime(dt, "minute")
	case PriceInterval1h:
		dt = utils.ResetTime(dt, "hour")
	}
	return &PriceBar{
		Symbol:    o.Symbol,
		Interval:  interval,
		Datetime:  dt,
		Open:      o.Open,
		High:      o.High,
		Low:       o.Low,
		Close:     o.Close,
		Volume:    o.Volume,
		ExpiresAt: dt.Add(ttl),
	}
}

func (b PriceBar) IsBullish() bool { return b.Close.GreaterThan(b.Open) }
func (b PriceBar) IsBearish() bool { return b.Close.LessThan(b.Open) }
