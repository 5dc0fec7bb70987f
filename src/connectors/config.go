package connectors

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	BinanceBaseURL    string `envconfig:"BINANCE_BASE_URL" default:"https://testnet.binance.vision"`
	BinanceAPIKey     string `envconfig:"BINANCE_API_KEY"`
	BinanceAPISecret  string `envconfig:"BINANCE_API_SECRET"`
	BinanceRecvWindow int64  `envconfig:"BINANCE_RECV_WINDOW" default:"5000"`

	// MarketMinQty overrides venue minimums, e.g. "BTC/USDT:0.00001,ETH/USDT:0.0001".
	// Paper mode uses it instead of calling the venue.
	MarketMinQty map[string]string `envconfig:"MARKET_MIN_QTY" default:"BTC/USDT:0.00001"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
