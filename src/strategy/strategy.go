package strategy

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Signal string

const (
	SignalNone Signal = ""
	SignalBuy  Signal = "buy"
	SignalSell Signal = "sell"
)

// Strategy turns a series of closed-candle closes, oldest first, into a signal.
type Strategy interface {
	Name() string
	// MinBars is the number of closes needed before a signal can be produced.
	MinBars() int
	Calculate(closes []decimal.Decimal) Signal
}

type Config struct {
	Name        string `envconfig:"STRATEGY_NAME" default:"ma_crossover"`
	ShortPeriod int    `envconfig:"STRATEGY_SHORT_PERIOD" default:"10"`
	LongPeriod  int    `envconfig:"STRATEGY_LONG_PERIOD" default:"100"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// New builds the strategy named in cfg.
func New(cfg Config) (Strategy, error) {
	switch cfg.Name {
	case "ma_crossover", "MA_Crossover", "":
		return NewMACrossover(cfg.ShortPeriod, cfg.LongPeriod)
	default:
		return nil, fmt.Errorf("strategy %q not found", cfg.Name)
	}
}
