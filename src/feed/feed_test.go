package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func klineMsg(start int64, closePrice string, closed bool) string {
	return fmt.Sprintf(`{"e":"kline","E":%d,"s":"BTCUSDT","k":{"t":%d,"T":%d,"s":"BTCUSDT","i":"1m","o":"100","c":"%s","h":"110","l":"90","v":"3.5","x":%t}}`,
		start+1, start, start+59999, closePrice, closed)
}

func TestHandleKeepsPriceAndClosedHistory(t *testing.T) {
	s := NewKlineStream(Config{WSURL: "ws://x", Interval: "1m", History: 2, StaleAfter: time.Minute}, "BTC/USDT", nil, nil)

	_, ok := s.LastPrice()
	assert.False(t, ok)

	require.NoError(t, s.handle([]byte(klineMsg(0, "101", false))))
	price, ok := s.LastPrice()
	require.True(t, ok)
	assert.True(t, price.Equal(decimal.NewFromInt(101)))
	assert.Empty(t, s.ClosedCandles(0), "open candle is not history")

	for i, p := range []string{"102", "103", "104"} {
		require.NoError(t, s.handle([]byte(klineMsg(int64(i)*60000, p, true))))
	}
	closed := s.ClosedCandles(0)
	require.Len(t, closed, 2)
	assert.True(t, closed[0].Close.Equal(decimal.NewFromInt(103)))
	assert.True(t, closed[1].Close.Equal(decimal.NewFromInt(104)))
	assert.Equal(t, "1m", closed[1].Interval)
	assert.Equal(t, time.UnixMilli(120000).UTC(), closed[1].OpenTime)

	assert.Error(t, s.handle([]byte(`{"e":"trade"}`)))
	assert.Error(t, s.handle([]byte(klineMsg(0, "abc", true))))
}

func TestLastPriceGoesStale(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewKlineStream(Config{WSURL: "ws://x", Interval: "1m", StaleAfter: 30 * time.Second}, "BTC/USDT", nil, nil)
	s.now = func() time.Time { return now }

	require.NoError(t, s.handle([]byte(klineMsg(0, "100", false))))
	now = now.Add(31 * time.Second)
	_, ok := s.LastPrice()
	assert.False(t, ok)
}

func TestRunReadsFromWebsocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var mu sync.Mutex
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		path = r.URL.Path
		mu.Unlock()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(klineMsg(0, "100", false)))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(klineMsg(0, "105", true)))
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	var got []Candle
	done := make(chan struct{})
	cfg := Config{WSURL: "ws" + strings.TrimPrefix(srv.URL, "http"), Interval: "1m", StaleAfter: time.Minute}
	s := NewKlineStream(cfg, "BTC/USDT", func(c Candle) {
		mu.Lock()
		got = append(got, c)
		mu.Unlock()
		close(done)
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("no closed candle received")
	}
	cancel()
	assert.True(t, errors.Is(<-errCh, context.Canceled))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.True(t, got[0].Close.Equal(decimal.NewFromInt(105)))
	assert.Equal(t, "/btcusdt@kline_1m", path)
}

type fakeTicker struct {
	price decimal.Decimal
	err   error
	calls int
}

func (f *fakeTicker) TickerPrice(context.Context, string) (decimal.Decimal, error) {
	f.calls++
	return f.price, f.err
}

func TestPricesFallsBackToTicker(t *testing.T) {
	s := NewKlineStream(Config{WSURL: "ws://x", Interval: "1m", StaleAfter: time.Minute}, "BTC/USDT", nil, nil)
	ticker := &fakeTicker{price: decimal.NewFromInt(99)}
	p := NewPrices(ticker, nil, s)

	price, err := p.Price(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(99)))
	assert.Equal(t, 1, ticker.calls)

	require.NoError(t, s.handle([]byte(klineMsg(0, "100", false))))
	price, err = p.Price(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 1, ticker.calls)

	ticker.err = errors.New("down")
	_, err = p.Price(context.Background(), "ETH/USDT")
	require.ErrorIs(t, err, ErrNoPrice)

	_, err = NewPrices(nil, nil).Price(context.Background(), "BTC/USDT")
	require.ErrorIs(t, err, ErrNoPrice)
}
