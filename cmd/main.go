package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"tradelifecycle/cmd/apiserver"
	"tradelifecycle/cmd/backfill"
	"tradelifecycle/cmd/executor"
	"tradelifecycle/cmd/keys"
	"tradelifecycle/cmd/maintenance"
	"tradelifecycle/src/database"
	"tradelifecycle/src/model"
	"tradelifecycle/src/repository"
)

var Version string

func main() {
	// a missing .env is fine, the environment wins anyway
	_ = godotenv.Load()

	app := cli.NewApp()
	app.Name = "tradelifecycle"
	app.Usage = "Limit-order trading loop with store reconciliation"
	app.Version = Version
	app.Before = func(_ *cli.Context) error {
		SetupLogger()
		return nil
	}

	app.Commands = []cli.Command{
		traderCMD,
		apiCMD,
		backfillCMD,
		keysCMD,
		pruneCMD,
		cancelPendingCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func SetupLogger() {
	config := database.GetConfig()

	level, err := logrus.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)

	if config.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

var modeFlag = cli.StringFlag{
	Name:   "mode",
	Value:  "paper",
	Usage:  "paper or live",
	EnvVar: "TRADING_MODE",
}

var (
	traderCMD = cli.Command{
		Name:        "trader",
		Usage:       "run the trading loop",
		Action:      traderAction,
		Description: `Runs the strategy, order lifecycle and reconciliation loop until interrupted`,
	}
	apiCMD = cli.Command{
		Name:        "api",
		Usage:       "run the operator API",
		Action:      apiAction,
		Description: `Serves /orders, /positions, /account, /healthcheck and /metrics`,
	}
	backfillCMD = cli.Command{
		Name:        "backfill",
		Usage:       "load Binance klines into price_history",
		Action:      backfillAction,
		Description: `Pages klines from BACKFILL_START_DATE (or the newest stored bar) up to now`,
	}
	keysCMD = cli.Command{
		Name:  "keys",
		Usage: "seal venue secrets and hash API tokens",
		Subcommands: []cli.Command{
			{
				Name:      "seal",
				Usage:     "encrypt a secret with EXCHANGE_CREDENTIALS_KEY",
				ArgsUsage: "SECRET",
				Action: func(c *cli.Context) error {
					return keys.Seal(os.Stdout, c.Args().First())
				},
			},
			{
				Name:      "open",
				Usage:     "decrypt a sealed secret",
				ArgsUsage: "SEALED",
				Action: func(c *cli.Context) error {
					return keys.Open(os.Stdout, c.Args().First())
				},
			},
			{
				Name:      "hash-token",
				Usage:     "print the bcrypt hash for API_TOKEN_HASH",
				ArgsUsage: "TOKEN",
				Action: func(c *cli.Context) error {
					return keys.HashToken(os.Stdout, c.Args().First())
				},
			},
		},
	}
	pruneCMD = cli.Command{
		Name:   "prune",
		Usage:  "delete price history past its TTL",
		Action: pruneAction,
	}
	cancelPendingCMD = cli.Command{
		Name:   "cancel-pending",
		Usage:  "request cancellation of every pending order",
		Action: cancelPendingAction,
		Flags:  []cli.Flag{modeFlag},
	}
)

func traderAction(_ *cli.Context) error {
	logrus.Info("Starting trader CMD")

	if err := (&executor.Executor{}).Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

func apiAction(_ *cli.Context) error {
	logrus.Info("Starting api CMD")

	if err := (&apiserver.APIServer{}).Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

func backfillAction(_ *cli.Context) error {
	logrus.Info("Starting backfill CMD")
	if err := database.InitMainDB(); err != nil {
		return err
	}

	b := &backfill.Backfill{
		Log:    logrus.WithField("cmd", "backfill"),
		Prices: repository.NewPriceRepository(),
	}
	if err := b.Start(context.Background()); err != nil {
		logrus.WithError(err).Error("Starting backfill cmd")
		return err
	}
	return nil
}

func pruneAction(_ *cli.Context) error {
	if err := database.InitMainDB(); err != nil {
		return err
	}
	_, err := maintenance.Prune(context.Background(), repository.NewPriceRepository(), time.Now().UTC())
	return err
}

func cancelPendingAction(c *cli.Context) error {
	mode, err := model.ParseMode(c.String("mode"))
	if err != nil {
		return err
	}
	if err := database.InitMainDB(); err != nil {
		return err
	}
	_, err = maintenance.CancelPending(context.Background(), repository.NewOrderRepository(mode), "cli")
	return err
}
