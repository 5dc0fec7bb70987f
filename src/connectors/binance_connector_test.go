package connectors

// Test index:
//  1. TestIsRetryableResp verifies retry decisions for errors and HTTP statuses.
//  2. TestSignedRequest checks the API key header and the query signature.
//  3. TestLoadMarketMinQty reads the LOT_SIZE filter and caches it.
//  4. TestCreateLimitOrder sends the client order id and maps the reply.
//  5. TestFetchOrderStatuses maps venue statuses and average price.
//  6. TestFetchOrderMissing maps -2013 to fill.ErrVenueOrderNotFound.
//  7. TestCancelOrder covers success and unknown-order replies.
//  8. TestTickerPrice parses the last price.
//  9. TestStaticMarketInfo parses configured minimums.

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradelifecycle/src/fill"
)

func newTestClient(srv *httptest.Server) *BinanceClient {
	restyClient := resty.New()
	restyClient.SetBaseURL(srv.URL)
	restyClient.SetTransport(srv.Client().Transport)

	return &BinanceClient{
		apiKey:     "test-key",
		apiSecret:  "test-secret",
		baseURL:    srv.URL,
		recvWindow: 5000,
		http:       restyClient,
		now:        func() time.Time { return time.UnixMilli(1700000000000) },
		minQty:     map[string]decimal.Decimal{},
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func fakeResponse(code int) *resty.Response {
	return &resty.Response{RawResponse: &http.Response{StatusCode: code}}
}

func TestIsRetryableResp(t *testing.T) {
	cases := []struct {
		name string
		resp *resty.Response
		err  error
		want bool
	}{
		{name: "error present", err: assert.AnError, want: true},
		{name: "server error", resp: fakeResponse(502), want: true},
		{name: "too many requests", resp: fakeResponse(429), want: true},
		{name: "timeout", resp: fakeResponse(408), want: true},
		{name: "bad request", resp: fakeResponse(400), want: false},
		{name: "ok response", resp: fakeResponse(200), want: false},
		{name: "nil resp", want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isRetryableResp(tc.resp, tc.err))
		})
	}
}

func TestSignedRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-MBX-APIKEY"))

		raw := r.URL.RawQuery
		idx := strings.LastIndex(raw, "&signature=")
		if !assert.Greater(t, idx, 0) {
			return
		}
		assert.Equal(t, signQuery(raw[:idx], "test-secret"), raw[idx+len("&signature="):])
		assert.Equal(t, "1700000000000", r.URL.Query().Get("timestamp"))
		assert.Equal(t, "5000", r.URL.Query().Get("recvWindow"))

		writeJSON(w, http.StatusOK, map[string]interface{}{})
	}))
	defer srv.Close()

	c := newTestClient(srv)
	require.NoError(t, c.CancelOrder(context.Background(), "BTC/USDT", "cid-1"))
}

func TestLoadMarketMinQty(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/api/v3/exchangeInfo", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"symbols": []interface{}{map[string]interface{}{
				"symbol": "BTCUSDT",
				"filters": []interface{}{
					map[string]interface{}{"filterType": "PRICE_FILTER"},
					map[string]interface{}{"filterType": "LOT_SIZE", "minQty": "0.00001000", "stepSize": "0.00001000"},
				},
			}},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv)
	qty, err := c.LoadMarketMinQty(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.True(t, qty.Equal(decimal.RequireFromString("0.00001")))

	_, err = c.LoadMarketMinQty(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestCreateLimitOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v3/order", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "BTCUSDT", q.Get("symbol"))
		assert.Equal(t, "BUY", q.Get("side"))
		assert.Equal(t, "LIMIT", q.Get("type"))
		assert.Equal(t, "GTC", q.Get("timeInForce"))
		assert.Equal(t, "0.001", q.Get("quantity"))
		assert.Equal(t, "90090", q.Get("price"))
		assert.Equal(t, "cid-1", q.Get("newClientOrderId"))

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"symbol": "BTCUSDT", "orderId": 42, "clientOrderId": "cid-1",
			"price": "90090.00", "executedQty": "0", "cummulativeQuoteQty": "0",
			"status": "NEW", "transactTime": 1700000000000,
		})
	}))
	defer srv.Close()

	c := newTestClient(srv)
	order, err := c.CreateLimitOrder(context.Background(), "cid-1", "BTC/USDT", "buy",
		decimal.RequireFromString("0.001"), decimal.RequireFromString("90090"))
	require.NoError(t, err)
	assert.Equal(t, "42", order.ID)
	assert.Equal(t, fill.VenueStatusOpen, order.Status)
	assert.Equal(t, "BTC/USDT", order.Symbol)
	assert.False(t, order.UpdatedAt.IsZero())
}

func TestFetchOrderStatuses(t *testing.T) {
	status := "FILLED"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cid-1", r.URL.Query().Get("origClientOrderId"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"orderId": 7, "clientOrderId": "cid-1", "price": "100",
			"executedQty": "2", "cummulativeQuoteQty": "199", "status": status,
			"updateTime": 1700000000000,
		})
	}))
	defer srv.Close()
	c := newTestClient(srv)

	cases := map[string]string{
		"FILLED":           fill.VenueStatusFilled,
		"NEW":              fill.VenueStatusOpen,
		"PARTIALLY_FILLED": fill.VenueStatusPartiallyFilled,
		"CANCELED":         fill.VenueStatusCanceled,
		"REJECTED":         fill.VenueStatusRejected,
		"EXPIRED":          fill.VenueStatusExpired,
	}
	for venue, want := range cases {
		status = venue
		order, err := c.FetchOrder(context.Background(), "BTC/USDT", "cid-1")
		require.NoError(t, err, venue)
		assert.Equal(t, want, order.Status, venue)
		assert.True(t, order.AvgPrice.Equal(decimal.RequireFromString("99.5")), venue)
	}
}

func TestFetchOrderMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"code": -2013, "msg": "Order does not exist."})
	}))
	defer srv.Close()

	_, err := newTestClient(srv).FetchOrder(context.Background(), "BTC/USDT", "cid-x")
	require.ErrorIs(t, err, fill.ErrVenueOrderNotFound)
}

func TestCancelOrder(t *testing.T) {
	reply := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		if reply != http.StatusOK {
			writeJSON(w, reply, map[string]interface{}{"code": -2011, "msg": "Unknown order sent."})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "CANCELED"})
	}))
	defer srv.Close()
	c := newTestClient(srv)

	require.NoError(t, c.CancelOrder(context.Background(), "BTC/USDT", "cid-1"))

	reply = http.StatusBadRequest
	err := c.CancelOrder(context.Background(), "BTC/USDT", "cid-1")
	require.ErrorIs(t, err, fill.ErrVenueOrderNotFound)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Error(), "CANCEL_REJECTED")
}

func TestTickerPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]interface{}{"symbol": "BTCUSDT", "price": "90123.45000000"})
	}))
	defer srv.Close()

	price, err := newTestClient(srv).TickerPrice(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("90123.45")))
}

func TestStaticMarketInfo(t *testing.T) {
	info, err := NewStaticMarketInfo(map[string]string{"BTC/USDT": "0.00001"})
	require.NoError(t, err)

	qty, err := info.LoadMarketMinQty(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.True(t, qty.Equal(decimal.RequireFromString("0.00001")))

	_, err = info.LoadMarketMinQty(context.Background(), "ETH/USDT")
	require.Error(t, err)

	_, err = NewStaticMarketInfo(map[string]string{"BTC/USDT": "0"})
	require.Error(t, err)
	assert.Equal(t, "BTCUSDT", VenueSymbol("btc/usdt"))
}
