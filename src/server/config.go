package server

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port string `envconfig:"PORT" default:"9898"`
	// bcrypt hash of the operator bearer token, see `tradelifecycle keys hash-token`
	APITokenHash string `envconfig:"API_TOKEN_HASH"`
	APIOperator  string `envconfig:"API_OPERATOR" default:"operator"`
	TradingMode  string `envconfig:"TRADING_MODE" default:"paper"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
