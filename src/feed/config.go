package feed

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	WSURL      string        `envconfig:"FEED_WS_URL" default:"wss://stream.binance.com:9443/ws"`
	Interval   string        `envconfig:"FEED_INTERVAL" default:"1m"`
	StaleAfter time.Duration `envconfig:"FEED_STALE_AFTER" default:"30s"`
	History    int           `envconfig:"FEED_HISTORY" default:"200"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
