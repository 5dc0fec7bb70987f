package tp_sl

import (
	"github.com/shopspring/decimal"

	"tradelifecycle/src/model"
)

type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// SideOf maps a position side onto the trailing direction.
func SideOf(p *model.Position) Side {
	if p.Side == model.PositionSideShort {
		return SideShort
	}
	return SideLong
}

func AvgLow(bars []model.PriceBar) decimal.Decimal {
	if len(bars) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, b := range bars {
		sum = sum.Add(b.Low)
	}
	return sum.Div(decimal.NewFromInt(int64(len(bars))))
}

func AvgHigh(bars []model.PriceBar) decimal.Decimal {
	if len(bars) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, b := range bars {
		sum = sum.Add(b.High)
	}
	return sum.Div(decimal.NewFromInt(int64(len(bars))))
}

// ComputeNextStopLossDirectional trails a stop for long or short positions.
// A missing current stop is treated as "no stop yet": the first candidate is adopted.
//
// Long:
// - gate: previous bar bullish
// - floor: avg(low) over lookback, clamped to <= prev.Low
// - update: SL = max(SL, candidate)
//
// Short:
// - gate: previous bar bearish
// - ceiling: avg(high) over lookback, clamped to >= prev.High
// - update: SL = min(SL, candidate)
func ComputeNextStopLossDirectional(
	side Side,
	currentSL decimal.NullDecimal,
	bars []model.PriceBar,
	lookback int,
) (newSL decimal.NullDecimal, moved bool) {
	if len(bars) < 2 {
		return currentSL, false
	}
	if lookback <= 0 {
		lookback = 20
	}
	if lookback > len(bars) {
		lookback = len(bars)
	}

	prev := bars[len(bars)-2]
	window := bars[len(bars)-lookback:]

	switch side {
	case SideLong:
		if !prev.IsBullish() {
			return currentSL, false
		}
		candidate := decimal.Min(AvgLow(window), prev.Low)
		if !currentSL.Valid || candidate.GreaterThan(currentSL.Decimal) {
			return decimal.NewNullDecimal(candidate), true
		}
		return currentSL, false

	case SideShort:
		if !prev.IsBearish() {
			return currentSL, false
		}
		candidate := decimal.Max(AvgHigh(window), prev.High)
		// stop only moves down for shorts
		if !currentSL.Valid || candidate.LessThan(currentSL.Decimal) {
			return decimal.NewNullDecimal(candidate), true
		}
		return currentSL, false

	default:
		return currentSL, false
	}
}
