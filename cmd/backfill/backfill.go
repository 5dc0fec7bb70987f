package backfill

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradelifecycle/src/model"
)

const (
	Duration1m = "1m"
	Duration1h = "1h"
)

type barStore interface {
	UpsertBars(ctx context.Context, bars []*model.PriceBar) error
	LatestDatetime(ctx context.Context, symbol, interval string) (*time.Time, error)
}

// Backfill pages Binance klines into price_history so the strategy can warm
// up without waiting for the live stream.
type Backfill struct {
	Log    *logger.Entry
	Prices barStore
	Config *Config

	exchange goex.API
}

func (b *Backfill) Start(ctx context.Context) error {
	if b.Config == nil {
		b.Config = GetConfig()
	}
	if b.Log == nil {
		b.Log = logger.WithField("cmd", "backfill")
	}
	if _, err := b.parseDuration(); err != nil {
		return err
	}
	if b.Config.EndDt.IsZero() {
		b.Config.EndDt = time.Now().UTC()
	}
	if b.exchange == nil {
		b.exchange = b.newBinanceInstance()
	}

	if b.Config.AutoMode {
		if err := b.determineStartPoint(ctx); err != nil {
			return err
		}
	}

	n, err := b.aggregateAndSave(ctx)
	b.Log.WithFields(logger.Fields{
		"symbol":   b.symbol(),
		"interval": b.Config.DurationStr,
		"bars":     n,
	}).Info("backfill finished")
	return err
}

func (b *Backfill) newBinanceInstance() *binance.Binance {
	return binance.NewWithConfig(&goex.APIConfig{
		HttpClient: http.DefaultClient,
		Endpoint:   b.Config.Endpoint,
	})
}

// symbol is the name bars are stored under, matching the trader's SYMBOL.
func (b *Backfill) symbol() string {
	return b.Config.Symbol + "/" + b.Config.Quote
}

func (b *Backfill) aggregateAndSave(ctx context.Context) (int, error) {
	step, _ := b.parseDuration()
	total := 0

	for page := 0; page < b.Config.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		if !b.Config.StartDt.Before(b.Config.EndDt) {
			break
		}

		series, err := b.fetchOHLCVSeries()
		if err != nil {
			return total, err
		}
		if len(series) == 0 {
			break
		}

		bars := make([]*model.PriceBar, 0, len(series))
		var last time.Time
		for i := range series {
			k := series[i]
			base := &model.OHLCVBase{
				Datetime: time.Unix(k.Timestamp, 0).UTC(),
				Open:     decimal.NewFromFloat(k.Open),
				High:     decimal.NewFromFloat(k.High),
				Low:      decimal.NewFromFloat(k.Low),
				Close:    decimal.NewFromFloat(k.Close),
				Volume:   decimal.NewFromFloat(k.Vol),
				Symbol:   b.symbol(),
			}
			bar := base.ToPriceBar(b.Config.DurationStr, b.Config.HistoryTTL)
			bars = append(bars, bar)
			if bar.Datetime.After(last) {
				last = bar.Datetime
			}
		}

		if err := b.Prices.UpsertBars(ctx, bars); err != nil {
			b.Log.WithError(err).Error("aggregateAndSave, UpsertBars")
			return total, err
		}
		total += len(bars)

		b.Log.WithFields(logger.Fields{
			"page": page,
			"bars": len(bars),
			"last": last,
		}).Debug("OHLCV page stored")

		if len(series) < b.Config.Limit || !last.After(b.Config.StartDt) {
			break
		}
		b.Config.StartDt = last.Add(step)
	}

	return total, nil
}

// determineStartPoint resumes one interval before the newest stored bar.
func (b *Backfill) determineStartPoint(ctx context.Context) error {
	step, _ := b.parseDuration()

	latest, err := b.Prices.LatestDatetime(ctx, b.symbol(), b.Config.DurationStr)
	if err != nil {
		b.Log.WithError(err).Error("Failed to query latest datetime")
		return err
	}
	if latest == nil {
		b.Log.WithField("StartDt", b.Config.StartDt.String()).
			Info("no stored bars, starting from the configured start date")
		return nil
	}

	b.Config.StartDt = latest.Add(-step)
	b.Log.WithFields(logger.Fields{
		"StartDt": b.Config.StartDt.String(),
		"EndDt":   b.Config.EndDt.String(),
	}).Info("resuming from the newest stored bar")
	return nil
}

func (b *Backfill) fetchOHLCVSeries() ([]goex.Kline, error) {
	pair := goex.NewCurrencyPair(goex.Currency{Symbol: b.Config.Symbol}, goex.Currency{Symbol: b.Config.Quote})
	period, err := b.parseDurationToGoex()
	if err != nil {
		return nil, err
	}

	const millis = 1000
	return b.exchange.GetKlineRecords(
		pair,
		period,
		b.Config.Limit,
		goex.OptionalParameter{}.
			Optional("startTime", b.Config.StartDt.Unix()*millis).
			Optional("endTime", b.Config.EndDt.Unix()*millis),
	)
}

func (b *Backfill) parseDuration() (time.Duration, error) {
	switch b.Config.DurationStr {
	case Duration1m:
		return time.Minute, nil
	case Duration1h:
		return time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid BACKFILL_DURATION %q", b.Config.DurationStr)
	}
}

func (b *Backfill) parseDurationToGoex() (goex.KlinePeriod, error) {
	switch b.Config.DurationStr {
	case Duration1m:
		return goex.KLINE_PERIOD_1MIN, nil
	case Duration1h:
		return goex.KLINE_PERIOD_1H, nil
	default:
		return 0, fmt.Errorf("invalid BACKFILL_DURATION %q", b.Config.DurationStr)
	}
}
