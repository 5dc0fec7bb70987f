package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"tradelifecycle/src/utils"
)

// Candle is one kline. Closed is true only for the final update of a bar.
type Candle struct {
	Symbol    string
	Interval  string
	OpenTime  time.Time
	CloseTime time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	Closed    bool
}

type klineEvent struct {
	Event  string `json:"e"`
	Symbol string `json:"s"`
	Kline  struct {
		StartTime int64  `json:"t"`
		CloseTime int64  `json:"T"`
		Interval  string `json:"i"`
		Open      string `json:"o"`
		Close     string `json:"c"`
		High      string `json:"h"`
		Low       string `json:"l"`
		Volume    string `json:"v"`
		IsClosed  bool   `json:"x"`
	} `json:"k"`
}

// KlineStream follows the Binance kline stream for one symbol. It keeps the
// latest price and a bounded history of closed candles, and reconnects
// until its context ends.
type KlineStream struct {
	symbol     string
	url        string
	interval   string
	staleAfter time.Duration
	history    int
	onClosed   func(Candle)
	log        *logrus.Entry
	now        func() time.Time

	mu         sync.RWMutex
	price      decimal.Decimal
	lastUpdate time.Time
	closed     []Candle
}

// NewKlineStream builds a stream for symbol ("BTC/USDT"). onClosed, if not
// nil, is called from the read loop for every closed candle.
func NewKlineStream(cfg Config, symbol string, onClosed func(Candle), log *logrus.Entry) *KlineStream {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.History <= 0 {
		cfg.History = 200
	}
	stream := strings.ToLower(strings.ReplaceAll(symbol, "/", "")) + "@kline_" + cfg.Interval
	return &KlineStream{
		symbol:     symbol,
		url:        strings.TrimRight(cfg.WSURL, "/") + "/" + stream,
		interval:   cfg.Interval,
		staleAfter: cfg.StaleAfter,
		history:    cfg.History,
		onClosed:   onClosed,
		log:        log.WithFields(logrus.Fields{"feed": "binance_kline", "symbol": symbol}),
		now:        time.Now,
	}
}

func (s *KlineStream) URL() string { return s.url }

// Run reads the stream until ctx is done, reconnecting after 2s on errors.
func (s *KlineStream) Run(ctx context.Context) error {
	for {
		if err := s.connect(ctx); err != nil && ctx.Err() == nil {
			s.log.WithError(err).Warn("kline stream disconnected")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
			s.log.Info("kline stream reconnecting")
		}
	}
}

func (s *KlineStream) connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if err := s.handle(msg); err != nil {
			s.log.WithError(err).Debug("skipping kline message")
		}
	}
}

func (s *KlineStream) handle(msg []byte) error {
	var ev klineEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		return err
	}
	if ev.Event != "kline" {
		return fmt.Errorf("unexpected event %q", ev.Event)
	}

	c, err := ev.candle(s.symbol)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.price = c.Close
	s.lastUpdate = s.now()
	if c.Closed {
		s.closed = append(s.closed, c)
		if len(s.closed) > s.history {
			s.closed = s.closed[len(s.closed)-s.history:]
		}
	}
	s.mu.Unlock()

	if c.Closed && s.onClosed != nil {
		s.onClosed(c)
	}
	return nil
}

func (ev klineEvent) candle(symbol string) (Candle, error) {
	k := ev.Kline
	c := Candle{
		Symbol:    symbol,
		Interval:  k.Interval,
		OpenTime:  utils.UnixMilli(k.StartTime),
		CloseTime: utils.UnixMilli(k.CloseTime),
		Closed:    k.IsClosed,
	}

	var err error
	parse := func(raw string) decimal.Decimal {
		if err != nil {
			return decimal.Zero
		}
		var v decimal.Decimal
		if v, err = decimal.NewFromString(raw); err != nil {
			err = fmt.Errorf("parse kline value %q: %w", raw, err)
		}
		return v
	}
	c.Open = parse(k.Open)
	c.High = parse(k.High)
	c.Low = parse(k.Low)
	c.Close = parse(k.Close)
	c.Volume = parse(k.Volume)
	if err != nil {
		return Candle{}, err
	}
	if !c.Close.IsPositive() {
		return Candle{}, fmt.Errorf("non-positive close %s", c.Close)
	}
	return c, nil
}

// LastPrice returns the latest close seen and whether it is still fresh.
func (s *KlineStream) LastPrice() (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastUpdate.IsZero() {
		return decimal.Zero, false
	}
	if s.staleAfter > 0 && s.now().Sub(s.lastUpdate) > s.staleAfter {
		return s.price, false
	}
	return s.price, true
}

// ClosedCandles returns up to n most recent closed candles, oldest first.
func (s *KlineStream) ClosedCandles(n int) []Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.closed) {
		n = len(s.closed)
	}
	out := make([]Candle, n)
	copy(out, s.closed[len(s.closed)-n:])
	return out
}

// Seed preloads closed candles, e.g. from stored price history.
func (s *KlineStream) Seed(candles []Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = append(append([]Candle(nil), candles...), s.closed...)
	if len(s.closed) > s.history {
		s.closed = s.closed[len(s.closed)-s.history:]
	}
}
