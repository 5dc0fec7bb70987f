package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ErrNoPrice is returned when neither the stream nor the ticker has a price.
var ErrNoPrice = errors.New("no price available")

// Ticker is a REST last-price lookup (connectors.BinanceClient).
type Ticker interface {
	TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Prices answers current prices from fresh stream data, falling back to the
// REST ticker when the stream is stale or missing.
type Prices struct {
	streams map[string]*KlineStream
	ticker  Ticker
	log     *logrus.Entry
}

func NewPrices(ticker Ticker, log *logrus.Entry, streams ...*KlineStream) *Prices {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	m := make(map[string]*KlineStream, len(streams))
	for _, s := range streams {
		m[s.symbol] = s
	}
	return &Prices{streams: m, ticker: ticker, log: log.WithField("component", "prices")}
}

func (p *Prices) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if s, ok := p.streams[symbol]; ok {
		if price, fresh := s.LastPrice(); fresh {
			return price, nil
		}
		p.log.WithField("symbol", symbol).Debug("stream stale, polling ticker")
	}

	if p.ticker == nil {
		return decimal.Zero, fmt.Errorf("%s: %w", symbol, ErrNoPrice)
	}
	price, err := p.ticker.TickerPrice(ctx, symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w: %v", symbol, ErrNoPrice, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s: %w", symbol, ErrNoPrice)
	}
	return price, nil
}

// Stream returns the kline stream for symbol, if one is registered.
func (p *Prices) Stream(symbol string) (*KlineStream, bool) {
	s, ok := p.streams[symbol]
	return s, ok
}
