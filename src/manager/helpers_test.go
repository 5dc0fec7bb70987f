package manager

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tradelifecycle/src/database"
	"tradelifecycle/src/fill"
	"tradelifecycle/src/ledger"
	"tradelifecycle/src/model"
	"tradelifecycle/src/repository"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type staticMarket map[string]decimal.Decimal

func (s staticMarket) LoadMarketMinQty(_ context.Context, symbol string) (decimal.Decimal, error) {
	qty, ok := s[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown market %s", symbol)
	}
	return qty, nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time            { return c.t }
func (c *clock) advance(by time.Duration) { c.t = c.t.Add(by) }

type captured struct {
	method   string
	level    string
	entityID string
	err      error
}

type recorder struct{ calls []captured }

func (r *recorder) Capture(_ context.Context, _, _, method, level, entityID string, err error, _ map[string]interface{}) {
	r.calls = append(r.calls, captured{method: method, level: level, entityID: entityID, err: err})
}

// failingEngine wraps an engine and fails Place for the given kind.
type failingEngine struct {
	fill.Engine
	failKind string
}

func (e *failingEngine) Place(ctx context.Context, req fill.PlaceRequest) (*model.Order, error) {
	if req.Kind == e.failKind {
		return nil, fmt.Errorf("venue unavailable")
	}
	return e.Engine.Place(ctx, req)
}

// stubVenue keeps orders by client id and answers cancels the way Binance
// does: only open orders can be canceled.
type stubVenue struct {
	orders  map[string]*fill.VenueOrder
	cancels int
}

func newStubVenue() *stubVenue { return &stubVenue{orders: map[string]*fill.VenueOrder{}} }

func (v *stubVenue) LoadMarketMinQty(context.Context, string) (decimal.Decimal, error) {
	return d("0.001"), nil
}

func (v *stubVenue) CreateLimitOrder(_ context.Context, clientID, symbol, _ string, _, _ decimal.Decimal) (*fill.VenueOrder, error) {
	o := &fill.VenueOrder{ID: "v-" + clientID, ClientOrderID: clientID, Symbol: symbol, Status: fill.VenueStatusOpen}
	v.orders[clientID] = o
	return o, nil
}

func (v *stubVenue) FetchOrder(_ context.Context, _, clientID string) (*fill.VenueOrder, error) {
	o, ok := v.orders[clientID]
	if !ok {
		return nil, fill.ErrVenueOrderNotFound
	}
	c := *o
	return &c, nil
}

func (v *stubVenue) CancelOrder(_ context.Context, _, clientID string) error {
	o, ok := v.orders[clientID]
	if !ok || (o.Status != fill.VenueStatusOpen && o.Status != fill.VenueStatusPartiallyFilled) {
		return fill.ErrVenueOrderNotFound
	}
	v.cancels++
	o.Status = fill.VenueStatusCanceled
	return nil
}

func (v *stubVenue) fillAt(clientID, price string) {
	o := v.orders[clientID]
	o.Status = fill.VenueStatusFilled
	o.AvgPrice = d(price)
}

type env struct {
	t         *testing.T
	db        *gorm.DB
	clock     *clock
	ledger    *ledger.Ledger
	engine    fill.Engine
	orders    *repository.OrderRepository
	positions *repository.PositionRepository
	balances  *repository.LedgerRepository
	recorder  *recorder
	hook      *logtest.Hook
	mgr       *Manager
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func newEnv(t *testing.T) *env {
	return newEnvOnDB(t, openDB(t), nil)
}

// newEnvOnDB builds a paper-mode manager on db. wrap may replace the engine.
func newEnvOnDB(t *testing.T, db *gorm.DB, wrap func(fill.Engine) fill.Engine) *env {
	t.Helper()

	c := &clock{t: time.Date(2025, 3, 3, 15, 0, 0, 0, time.UTC)}
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	entry := logrus.NewEntry(log)

	balances := repository.NewLedgerRepositoryWithDB(db)
	l := ledger.New(ledger.Config{AccountID: "paper", InitialBalance: d("10000")}, balances, entry)

	var engine fill.Engine = fill.NewSimulatedEngine(l, entry).WithClock(c.now)
	if wrap != nil {
		engine = wrap(engine)
	}

	e := &env{
		t:         t,
		db:        db,
		clock:     c,
		ledger:    l,
		engine:    engine,
		orders:    repository.NewOrderRepositoryWithDB(db, model.ModePaper),
		positions: repository.NewPositionRepositoryWithDB(db, model.ModePaper),
		balances:  balances,
		recorder:  &recorder{},
		hook:      hook,
	}
	e.mgr = New(Deps{
		Engine:     engine,
		Orders:     e.orders,
		Positions:  e.positions,
		Ledger:     l,
		Market:     staticMarket{"BTC/USDT": d("0.001")},
		Exceptions: e.recorder,
		Logger:     entry,
		Now:        c.now,
	}, DefaultConfig())
	return e
}

// newLiveEnvOnDB builds a live-mode manager trading against venue.
func newLiveEnvOnDB(t *testing.T, db *gorm.DB, venue fill.Venue) *env {
	t.Helper()

	c := &clock{t: time.Date(2025, 3, 3, 15, 0, 0, 0, time.UTC)}
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	entry := logrus.NewEntry(log)

	engine := fill.NewLiveEngine(venue, entry).WithClock(c.now)
	e := &env{
		t:         t,
		db:        db,
		clock:     c,
		engine:    engine,
		orders:    repository.NewOrderRepositoryWithDB(db, model.ModeLive),
		positions: repository.NewPositionRepositoryWithDB(db, model.ModeLive),
		recorder:  &recorder{},
		hook:      hook,
	}
	e.mgr = New(Deps{
		Engine:     engine,
		Orders:     e.orders,
		Positions:  e.positions,
		Market:     venue,
		Exceptions: e.recorder,
		Logger:     entry,
		Now:        c.now,
	}, DefaultConfig())
	return e
}

func (e *env) ctx() context.Context { return context.Background() }

// requestCancel does what the dashboard does to cancel a pending order.
func (e *env) requestCancel(orderID, reason string) {
	e.t.Helper()
	moved, err := e.orders.UpdateStatusIf(e.ctx(), orderID, model.OrderStatusRequestCancel, reason, model.OrderStatusPending)
	require.NoError(e.t, err)
	require.True(e.t, moved)
}

func (e *env) ordersWithStatus(status string) []model.Order {
	e.t.Helper()
	out, err := e.orders.ScanByStatus(e.ctx(), status)
	require.NoError(e.t, err)
	return out
}

func (e *env) positionsWithStatus(status string) []model.Position {
	e.t.Helper()
	out, err := e.positions.ScanByStatus(e.ctx(), status)
	require.NoError(e.t, err)
	return out
}

func (e *env) storedPosition(id string) *model.Position {
	e.t.Helper()
	p, err := e.positions.Get(e.ctx(), id)
	require.NoError(e.t, err)
	return p
}

// openLong places and fills a 0.001 BTC long at price.
func (e *env) openLong(price string) *model.Position {
	e.t.Helper()
	order, err := e.mgr.PlaceOrder(e.ctx(), "BTC/USDT", model.OrderSideBuy, d(price), d("0.001"), model.OrderKindEntry)
	require.NoError(e.t, err)
	filled, err := e.mgr.CheckOrderStatus(e.ctx(), order.OrderID, d(price))
	require.NoError(e.t, err)
	require.NotNil(e.t, filled)
	p := e.mgr.CurrentPosition()
	require.NotNil(e.t, p)
	return p
}

func (e *env) alerts() []*logrus.Entry {
	var out []*logrus.Entry
	for _, entry := range e.hook.AllEntries() {
		if entry.Data["alert"] == "data_integrity" {
			out = append(out, entry)
		}
	}
	return out
}
