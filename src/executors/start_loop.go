package executors

import (
	"context"
	"errors"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradelifecycle/src/connectors"
	"tradelifecycle/src/feed"
	"tradelifecycle/src/fill"
	"tradelifecycle/src/ledger"
	"tradelifecycle/src/manager"
	"tradelifecycle/src/model"
	"tradelifecycle/src/repository"
	"tradelifecycle/src/risk"
	"tradelifecycle/src/security"
	"tradelifecycle/src/strategy"
)

// StartLoop wires the trader from env config and the main DB and runs the
// driver until ctx ends. database.InitMainDB must have been called.
func StartLoop(ctx context.Context) error {
	config := GetConfig()

	mode, err := model.ParseMode(config.Mode)
	if err != nil {
		return err
	}
	log := logger.WithFields(logger.Fields{"cmd": "trader", "mode": string(mode)})

	connCfg := connectors.GetConfig()
	if mode == model.ModeLive && connCfg.BinanceAPISecret == "" && config.BinanceAPISecretSealed != "" {
		secret, err := security.DecryptString(config.BinanceAPISecretSealed)
		if err != nil {
			log.WithError(err).Error("Failed to decrypt API secret")
			return err
		}
		connCfg.BinanceAPISecret = secret
	}
	binance := connectors.NewBinanceClientFromConfig(connCfg)

	orders := repository.NewOrderRepository(mode)
	positions := repository.NewPositionRepository(mode)
	priceRepo := repository.NewPriceRepository()
	exceptions := repository.NewExceptionRepository()

	var (
		engine fill.Engine
		l      *ledger.Ledger
		market manager.MarketInfo
	)
	switch mode {
	case model.ModeLive:
		if connCfg.BinanceAPIKey == "" || connCfg.BinanceAPISecret == "" {
			return errors.New("live mode needs BINANCE_API_KEY and BINANCE_API_SECRET")
		}
		engine = fill.NewLiveEngine(binance, log)
		market = binance
	default:
		l = ledger.New(ledger.GetConfig(), repository.NewLedgerRepository(), log)
		engine = fill.NewSimulatedEngine(l, log)
		static, err := connectors.NewStaticMarketInfo(connCfg.MarketMinQty)
		if err != nil {
			return err
		}
		market = static
	}

	mgr := manager.New(manager.Deps{
		Engine:     engine,
		Orders:     orders,
		Positions:  positions,
		Ledger:     l,
		Market:     market,
		Exceptions: exceptions,
		Logger:     log,
	}, manager.GetConfig())

	if err := mgr.Restore(ctx); err != nil {
		log.WithError(err).Error("Failed to restore manager state")
		return err
	}

	strat, err := strategy.New(strategy.GetConfig())
	if err != nil {
		return err
	}

	var driver *Driver
	stream := feed.NewKlineStream(feed.GetConfig(), config.Symbol, func(c feed.Candle) {
		driver.OnClosedCandle(ctx, c)
	}, log)
	if err := warmup(ctx, priceRepo, stream, config.Symbol, strat.MinBars()); err != nil {
		log.WithError(err).Warn("Failed to warm up candles from price history")
	}

	driver = NewDriver(config, DriverDeps{
		Manager:  mgr,
		Prices:   feed.NewPrices(binance, log, stream),
		Candles:  stream,
		History:  priceRepo,
		Strategy: strat,
		Ledger:   l,
		Risk:     risk.GetConfig(),
		Logger:   log,
	})

	go func() {
		if err := stream.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("kline stream stopped")
		}
	}()

	return driver.Run(ctx)
}

// warmup seeds the stream with stored 1m bars so the strategy can signal
// without waiting for a full window of live candles.
func warmup(ctx context.Context, repo *repository.PriceRepository, stream *feed.KlineStream, symbol string, n int) error {
	bars, err := repo.RecentBars(ctx, symbol, model.PriceInterval1m, time.Now().UTC(), n)
	if err != nil {
		return fmt.Errorf("recent bars: %w", err)
	}
	candles := make([]feed.Candle, 0, len(bars))
	for _, b := range bars {
		candles = append(candles, feed.Candle{
			Symbol:   b.Symbol,
			Interval: b.Interval,
			OpenTime: b.Datetime,
			Open:     b.Open,
			High:     b.High,
			Low:      b.Low,
			Close:    b.Close,
			Volume:   b.Volume,
			Closed:   true,
		})
	}
	stream.Seed(candles)
	return nil
}
