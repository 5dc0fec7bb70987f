// REST client for Binance spot: signed limit orders by client order id,
// exchange filters and ticker prices. Resty with internal retry.
package connectors

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradelifecycle/src/fill"
	"tradelifecycle/src/utils"
)

// -----------------------------
// CONFIG
// -----------------------------
const (
	defaultRetryAttempts   = 5
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second

	defaultBaseURL = "https://testnet.binance.vision"
)

// -----------------------------
// WIRE TYPES
// -----------------------------
type binanceOrder struct {
	Symbol              string `json:"symbol"`
	OrderID             int64  `json:"orderId"`
	ClientOrderID       string `json:"clientOrderId"`
	Price               string `json:"price"`
	OrigQty             string `json:"origQty"`
	ExecutedQty         string `json:"executedQty"`
	CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
	Status              string `json:"status"`
	Side                string `json:"side"`
	UpdateTime          int64  `json:"updateTime"`
	TransactTime        int64  `json:"transactTime"`
}

type exchangeInfo struct {
	Symbols []struct {
		Symbol  string `json:"symbol"`
		Filters []struct {
			FilterType string `json:"filterType"`
			MinQty     string `json:"minQty"`
			StepSize   string `json:"stepSize"`
		} `json:"filters"`
	} `json:"symbols"`
}

type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// -----------------------------
// AUTHENTICATED CLIENT
// -----------------------------

// BinanceClient implements fill.Venue against the Binance spot REST API.
type BinanceClient struct {
	apiKey     string
	apiSecret  string
	baseURL    string
	recvWindow int64
	http       *resty.Client
	now        func() time.Time

	mu     sync.Mutex
	minQty map[string]decimal.Decimal
}

var _ fill.Venue = (*BinanceClient)(nil)

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}

	code := r.StatusCode()
	if code >= 500 && code <= 599 {
		return true
	}
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}

func NewBinanceClient(apiKey, apiSecret, baseURL string, recvWindow int64) *BinanceClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
		logger.Warnf("No base URL provided, using default: %s", baseURL)
	}
	if recvWindow <= 0 {
		recvWindow = 5000
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(defaultRetryAttempts - 1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &BinanceClient{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		baseURL:    baseURL,
		recvWindow: recvWindow,
		http:       httpClient,
		now:        time.Now,
		minQty:     make(map[string]decimal.Decimal),
	}
}

// NewBinanceClientFromConfig builds a client from connector config. The
// secret is expected in plain text; decrypt it before calling if stored sealed.
func NewBinanceClientFromConfig(cfg Config) *BinanceClient {
	return NewBinanceClient(cfg.BinanceAPIKey, cfg.BinanceAPISecret, cfg.BinanceBaseURL, cfg.BinanceRecvWindow)
}

// VenueSymbol converts "BTC/USDT" into "BTCUSDT".
func VenueSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
}

func signQuery(query, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *BinanceClient) doPublic(ctx context.Context, path string, params url.Values, out interface{}) error {
	req := c.http.R().SetContext(ctx)
	if len(params) > 0 {
		req = req.SetQueryString(params.Encode())
	}
	resp, err := req.Get(path)
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func (c *BinanceClient) doSigned(ctx context.Context, method, path string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", fmt.Sprintf("%d", c.now().UnixMilli()))
	params.Set("recvWindow", fmt.Sprintf("%d", c.recvWindow))

	query := params.Encode()
	// sent verbatim so the venue sees the exact bytes that were signed
	query += "&signature=" + signQuery(query, c.apiSecret)

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-MBX-APIKEY", c.apiKey).
		Execute(method, path+"?"+query)
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func decodeResponse(resp *resty.Response, out interface{}) error {
	raw := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		apiErr := &APIError{HTTPStatus: resp.StatusCode()}
		if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Code == 0 {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode(), string(raw))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// -----------------------------
// MARKET DATA
// -----------------------------

// LoadMarketMinQty returns the LOT_SIZE minimum quantity for symbol, cached
// after the first lookup.
func (c *BinanceClient) LoadMarketMinQty(ctx context.Context, symbol string) (decimal.Decimal, error) {
	venueSymbol := VenueSymbol(symbol)

	c.mu.Lock()
	qty, ok := c.minQty[venueSymbol]
	c.mu.Unlock()
	if ok {
		return qty, nil
	}

	var info exchangeInfo
	if err := c.doPublic(ctx, "/api/v3/exchangeInfo", url.Values{"symbol": {venueSymbol}}, &info); err != nil {
		return decimal.Zero, fmt.Errorf("load market %s: %w", symbol, err)
	}

	for _, s := range info.Symbols {
		if s.Symbol != venueSymbol {
			continue
		}
		for _, f := range s.Filters {
			if f.FilterType != "LOT_SIZE" {
				continue
			}
			qty, err := decimal.NewFromString(f.MinQty)
			if err != nil {
				return decimal.Zero, fmt.Errorf("load market %s: bad minQty %q: %w", symbol, f.MinQty, err)
			}
			c.mu.Lock()
			c.minQty[venueSymbol] = qty
			c.mu.Unlock()
			return qty, nil
		}
	}

	return decimal.Zero, fmt.Errorf("load market %s: no LOT_SIZE filter", symbol)
}

// TickerPrice returns the last traded price for symbol.
func (c *BinanceClient) TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var t tickerPrice
	if err := c.doPublic(ctx, "/api/v3/ticker/price", url.Values{"symbol": {VenueSymbol(symbol)}}, &t); err != nil {
		return decimal.Zero, fmt.Errorf("ticker %s: %w", symbol, err)
	}
	price, err := decimal.NewFromString(t.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ticker %s: bad price %q: %w", symbol, t.Price, err)
	}
	return price, nil
}

// -----------------------------
// TRADING
// -----------------------------

// CreateLimitOrder submits a GTC limit order tagged with clientOrderID.
func (c *BinanceClient) CreateLimitOrder(ctx context.Context, clientOrderID, symbol, side string, qty, price decimal.Decimal) (*fill.VenueOrder, error) {
	params := url.Values{
		"symbol":           {VenueSymbol(symbol)},
		"side":             {strings.ToUpper(side)},
		"type":             {"LIMIT"},
		"timeInForce":      {"GTC"},
		"quantity":         {qty.String()},
		"price":            {price.String()},
		"newClientOrderId": {clientOrderID},
		"newOrderRespType": {"RESULT"},
	}

	var out binanceOrder
	if err := c.doSigned(ctx, http.MethodPost, "/api/v3/order", params, &out); err != nil {
		logger.WithFields(map[string]interface{}{
			"client_order_id": clientOrderID,
			"symbol":          symbol,
			"side":            side,
		}).WithError(err).Error("binance create order failed")
		return nil, fmt.Errorf("create order %s: %w", clientOrderID, err)
	}
	return toVenueOrder(symbol, out), nil
}

// FetchOrder looks an order up by client order id.
func (c *BinanceClient) FetchOrder(ctx context.Context, symbol, clientOrderID string) (*fill.VenueOrder, error) {
	params := url.Values{
		"symbol":            {VenueSymbol(symbol)},
		"origClientOrderId": {clientOrderID},
	}

	var out binanceOrder
	if err := c.doSigned(ctx, http.MethodGet, "/api/v3/order", params, &out); err != nil {
		return nil, mapOrderErr("fetch", clientOrderID, err)
	}
	return toVenueOrder(symbol, out), nil
}

// CancelOrder cancels an order by client order id.
func (c *BinanceClient) CancelOrder(ctx context.Context, symbol, clientOrderID string) error {
	params := url.Values{
		"symbol":            {VenueSymbol(symbol)},
		"origClientOrderId": {clientOrderID},
	}
	if err := c.doSigned(ctx, http.MethodDelete, "/api/v3/order", params, nil); err != nil {
		return mapOrderErr("cancel", clientOrderID, err)
	}
	return nil
}

func mapOrderErr(op, clientOrderID string, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.orderMissing() {
		return fmt.Errorf("%s order %s: %w", op, clientOrderID, fill.ErrVenueOrderNotFound)
	}
	return fmt.Errorf("%s order %s: %w", op, clientOrderID, err)
}

func toVenueOrder(symbol string, o binanceOrder) *fill.VenueOrder {
	executed, _ := decimal.NewFromString(o.ExecutedQty)
	quote, _ := decimal.NewFromString(o.CummulativeQuoteQty)
	limit, _ := decimal.NewFromString(o.Price)

	avg := limit
	if executed.IsPositive() && quote.IsPositive() {
		avg = quote.Div(executed)
	}

	ts := o.UpdateTime
	if ts == 0 {
		ts = o.TransactTime
	}
	var updated time.Time
	if ts > 0 {
		updated = utils.UnixMilli(ts)
	}

	return &fill.VenueOrder{
		ID:            fmt.Sprintf("%d", o.OrderID),
		ClientOrderID: o.ClientOrderID,
		Symbol:        symbol,
		Status:        venueStatus(o.Status),
		FilledQty:     executed,
		AvgPrice:      avg,
		UpdatedAt:     updated,
	}
}

func venueStatus(s string) string {
	switch s {
	case "NEW", "PENDING_NEW":
		return fill.VenueStatusOpen
	case "PARTIALLY_FILLED":
		return fill.VenueStatusPartiallyFilled
	case "FILLED":
		return fill.VenueStatusFilled
	case "CANCELED", "PENDING_CANCEL":
		return fill.VenueStatusCanceled
	case "REJECTED":
		return fill.VenueStatusRejected
	case "EXPIRED", "EXPIRED_IN_MATCH":
		return fill.VenueStatusExpired
	default:
		return fill.VenueStatusOpen
	}
}

// -----------------------------
// STATIC MARKET INFO
// -----------------------------

// StaticMarketInfo serves minimum quantities from configuration.
type StaticMarketInfo map[string]decimal.Decimal

// NewStaticMarketInfo parses "symbol -> qty" pairs.
func NewStaticMarketInfo(raw map[string]string) (StaticMarketInfo, error) {
	out := make(StaticMarketInfo, len(raw))
	for symbol, v := range raw {
		qty, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("min qty for %s: %w", symbol, err)
		}
		if !qty.IsPositive() {
			return nil, fmt.Errorf("min qty for %s must be positive", symbol)
		}
		out[strings.TrimSpace(symbol)] = qty
	}
	return out, nil
}

func (s StaticMarketInfo) LoadMarketMinQty(_ context.Context, symbol string) (decimal.Decimal, error) {
	qty, ok := s[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("no minimum quantity configured for %s", symbol)
	}
	return qty, nil
}
