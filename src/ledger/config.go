package ledger

import (
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	AccountID      string          `envconfig:"PAPER_ACCOUNT_ID" default:"paper"`
	InitialBalance decimal.Decimal `envconfig:"PAPER_INITIAL_BALANCE" default:"10000"`
}

func GetConfig() Config {
	var config Config
	envconfig.MustProcess("", &config)
	return config
}
