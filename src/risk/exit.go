package risk

import (
	"github.com/shopspring/decimal"

	"tradelifecycle/src/model"
)

type ExitReason string

const (
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
)

// CheckExit reports whether price has reached the position's stop loss or
// take profit. A long stops at or below its stop and takes profit at or above
// its target; a short is mirrored. The stop wins when both are hit.
func CheckExit(p *model.Position, price decimal.Decimal) (ExitReason, bool) {
	if p == nil || !price.IsPositive() {
		return "", false
	}

	short := p.Side == model.PositionSideShort

	if p.StopLoss.Valid {
		sl := p.StopLoss.Decimal
		if (!short && price.LessThanOrEqual(sl)) || (short && price.GreaterThanOrEqual(sl)) {
			return ExitStopLoss, true
		}
	}
	if p.TakeProfit.Valid {
		tp := p.TakeProfit.Decimal
		if (!short && price.GreaterThanOrEqual(tp)) || (short && price.LessThanOrEqual(tp)) {
			return ExitTakeProfit, true
		}
	}
	return "", false
}
