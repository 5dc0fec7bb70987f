package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MACrossover signals buy when the short SMA crosses above the long SMA and
// sell when it crosses below, comparing the last two closes.
type MACrossover struct {
	short int
	long  int
}

func NewMACrossover(short, long int) (*MACrossover, error) {
	if short <= 0 || long <= 0 {
		return nil, fmt.Errorf("sma periods must be positive (short=%d long=%d)", short, long)
	}
	if short >= long {
		return nil, fmt.Errorf("short period %d must be below long period %d", short, long)
	}
	return &MACrossover{short: short, long: long}, nil
}

func (s *MACrossover) Name() string { return "ma_crossover" }

// MinBars needs one extra close so the previous bar has a long SMA too.
func (s *MACrossover) MinBars() int { return s.long + 1 }

func (s *MACrossover) Calculate(closes []decimal.Decimal) Signal {
	n := len(closes)
	if n < s.MinBars() {
		return SignalNone
	}

	prevShort := SMA(closes[:n-1], s.short)
	prevLong := SMA(closes[:n-1], s.long)
	lastShort := SMA(closes, s.short)
	lastLong := SMA(closes, s.long)

	switch {
	case prevShort.LessThanOrEqual(prevLong) && lastShort.GreaterThan(lastLong):
		return SignalBuy
	case prevShort.GreaterThanOrEqual(prevLong) && lastShort.LessThan(lastLong):
		return SignalSell
	default:
		return SignalNone
	}
}

// SMA is the mean of the last period values. Zero if there are fewer.
func SMA(values []decimal.Decimal, period int) decimal.Decimal {
	if period <= 0 || len(values) < period {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range values[len(values)-period:] {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(period)))
}
