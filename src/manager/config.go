package manager

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	// Limit offset for entry orders: buy at price*(1+x), sell at price*(1-x).
	EntryOffsetPct decimal.Decimal `envconfig:"ENTRY_OFFSET_PCT" default:"0.001"`
	// Marketable-limit offset for exit orders: sell at price*(1-x), buy at price*(1+x).
	ExitSlippagePct decimal.Decimal `envconfig:"EXIT_SLIPPAGE_PCT" default:"0.005"`
	OrderTTL        time.Duration   `envconfig:"ORDER_TTL" default:"300s"`
	// Decimal places limit prices are rounded to before placement.
	PricePrecision int32 `envconfig:"PRICE_PRECISION" default:"8"`
}

func GetConfig() Config {
	var config Config
	envconfig.MustProcess("", &config)
	return config
}

// DefaultConfig returns the values GetConfig yields with an empty environment.
func DefaultConfig() Config {
	return Config{
		EntryOffsetPct:  decimal.RequireFromString("0.001"),
		ExitSlippagePct: decimal.RequireFromString("0.005"),
		OrderTTL:        300 * time.Second,
		PricePrecision:  8,
	}
}
