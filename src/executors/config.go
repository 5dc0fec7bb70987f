package executors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Mode        string        `envconfig:"TRADING_MODE" default:"paper"`
	Symbol      string        `envconfig:"SYMBOL" default:"BTC/USDT"`
	LoopPeriod  time.Duration `envconfig:"LOOP_PERIOD" default:"10s"`
	StatusEvery int           `envconfig:"STATUS_EVERY" default:"6"`

	PriceHistoryTTL time.Duration `envconfig:"PRICE_HISTORY_TTL" default:"168h"`
	PruneEvery      time.Duration `envconfig:"PRUNE_EVERY" default:"1h"`

	// Percent distances applied to a new position without stops. Zero disables.
	StopLossPct   float64 `envconfig:"STOP_LOSS_PCT" default:"0"`
	TakeProfitPct float64 `envconfig:"TAKE_PROFIT_PCT" default:"0"`

	TrailingStop     bool          `envconfig:"TRAILING_STOP" default:"false"`
	TrailingInterval time.Duration `envconfig:"TRAILING_INTERVAL" default:"15m"`
	TrailingLookback int           `envconfig:"TRAILING_LOOKBACK" default:"20"`

	// BinanceAPISecretSealed is used when BINANCE_API_SECRET is empty.
	BinanceAPISecretSealed string `envconfig:"BINANCE_API_SECRET_SEALED"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
