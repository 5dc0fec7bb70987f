package fill

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradelifecycle/src/model"
)

type fakeVenue struct {
	orders   map[string]*VenueOrder
	creates  int
	cancels  int
	createEr error
}

func newFakeVenue() *fakeVenue { return &fakeVenue{orders: map[string]*VenueOrder{}} }

func (v *fakeVenue) LoadMarketMinQty(context.Context, string) (decimal.Decimal, error) {
	return decimal.RequireFromString("0.001"), nil
}

func (v *fakeVenue) CreateLimitOrder(_ context.Context, clientID, symbol, side string, qty, price decimal.Decimal) (*VenueOrder, error) {
	if v.createEr != nil {
		return nil, v.createEr
	}
	v.creates++
	o := &VenueOrder{ID: "v-" + clientID, ClientOrderID: clientID, Symbol: symbol, Status: VenueStatusOpen}
	v.orders[clientID] = o
	return o, nil
}

func (v *fakeVenue) FetchOrder(_ context.Context, _ string, clientID string) (*VenueOrder, error) {
	o, ok := v.orders[clientID]
	if !ok {
		return nil, ErrVenueOrderNotFound
	}
	c := *o
	return &c, nil
}

// CancelOrder answers like Binance: only open orders can be canceled, anything
// else is reported as an unknown order (-2011).
func (v *fakeVenue) CancelOrder(_ context.Context, _ string, clientID string) error {
	o, ok := v.orders[clientID]
	if !ok || (o.Status != VenueStatusOpen && o.Status != VenueStatusPartiallyFilled) {
		return ErrVenueOrderNotFound
	}
	v.cancels++
	o.Status = VenueStatusCanceled
	return nil
}

func placeLive(t *testing.T, eng *LiveEngine) *model.Order {
	t.Helper()
	order, err := eng.Place(context.Background(), PlaceRequest{Symbol: "BTC/USDT", Side: model.OrderSideBuy,
		Kind: model.OrderKindEntry, LimitPrice: d("100.1"), Quantity: d("0.001")})
	require.NoError(t, err)
	return order
}

func TestLive_FillDetectedByPolling(t *testing.T) {
	venue := newFakeVenue()
	eng := NewLiveEngine(venue, nil)
	ctx := context.Background()

	order := placeLive(t, eng)
	assert.Equal(t, 1, venue.creates)

	fill, err := eng.TryFill(ctx, order.OrderID, d("1"))
	require.NoError(t, err)
	assert.Nil(t, fill)

	filledAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	venue.orders[order.OrderID].Status = VenueStatusFilled
	venue.orders[order.OrderID].AvgPrice = d("100.05")
	venue.orders[order.OrderID].UpdatedAt = filledAt

	fill, err = eng.TryFill(ctx, order.OrderID, d("1"))
	require.NoError(t, err)
	require.NotNil(t, fill)
	assert.True(t, fill.Price.Equal(d("100.05")))
	assert.Equal(t, model.OrderStatusFilled, fill.Order.Status)
	assert.True(t, fill.At.Equal(filledAt))
	assert.False(t, fill.RealizedPnl.Valid)
}

func TestLive_VenueClosedOrder(t *testing.T) {
	venue := newFakeVenue()
	eng := NewLiveEngine(venue, nil)

	order := placeLive(t, eng)
	venue.orders[order.OrderID].Status = VenueStatusExpired

	fill, err := eng.TryFill(context.Background(), order.OrderID, d("1"))
	assert.Nil(t, fill)
	require.ErrorIs(t, err, ErrOrderClosedByVenue)

	var closed *ClosedError
	require.ErrorAs(t, err, &closed)
	assert.Equal(t, model.OrderStatusExpired, closed.Status)

	fill, err = eng.TryFill(context.Background(), order.OrderID, d("1"))
	require.NoError(t, err)
	assert.Nil(t, fill)
}

func TestLive_TrackSubmitsOnlyWhenVenueLacksOrder(t *testing.T) {
	venue := newFakeVenue()
	eng := NewLiveEngine(venue, nil)
	ctx := context.Background()

	eng.Track(&model.Order{OrderID: "ext-1", Symbol: "BTC/USDT", Side: model.OrderSideSell,
		Kind: model.OrderKindExit, LimitPrice: d("100"), Quantity: d("1"), Status: model.OrderStatusPending})

	fill, err := eng.TryFill(ctx, "ext-1", d("1"))
	require.NoError(t, err)
	assert.Nil(t, fill)
	assert.Equal(t, 1, venue.creates)

	// already on the venue now, so no second submission
	fill, err = eng.TryFill(ctx, "ext-1", d("1"))
	require.NoError(t, err)
	assert.Nil(t, fill)
	assert.Equal(t, 1, venue.creates)
}

func TestLive_Cancel(t *testing.T) {
	venue := newFakeVenue()
	eng := NewLiveEngine(venue, nil)
	ctx := context.Background()

	require.ErrorIs(t, eng.Cancel(ctx, "nope"), ErrUnknownOrder)

	order := placeLive(t, eng)
	require.NoError(t, eng.Cancel(ctx, order.OrderID))
	assert.Equal(t, 1, venue.cancels)
	assert.Equal(t, VenueStatusCanceled, venue.orders[order.OrderID].Status)
	require.ErrorIs(t, eng.Cancel(ctx, order.OrderID), ErrUnknownOrder)

	// adopted and never submitted: nothing on the venue to cancel
	eng.Track(&model.Order{OrderID: "ext-2", Symbol: "BTC/USDT", Side: model.OrderSideBuy,
		Kind: model.OrderKindEntry, LimitPrice: d("1"), Quantity: d("1")})
	require.NoError(t, eng.Cancel(ctx, "ext-2"))
	assert.Equal(t, 1, venue.cancels)
	assert.Empty(t, eng.orders)
}

func TestLive_CancelAfterVenueFillReturnsFill(t *testing.T) {
	venue := newFakeVenue()
	eng := NewLiveEngine(venue, nil)
	ctx := context.Background()

	order := placeLive(t, eng)
	filledAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	venue.orders[order.OrderID].Status = VenueStatusFilled
	venue.orders[order.OrderID].AvgPrice = d("100.02")
	venue.orders[order.OrderID].UpdatedAt = filledAt

	err := eng.Cancel(ctx, order.OrderID)
	require.ErrorIs(t, err, ErrFilledBeforeCancel)

	var filled *FilledError
	require.ErrorAs(t, err, &filled)
	assert.Equal(t, order.OrderID, filled.Fill.Order.OrderID)
	assert.Equal(t, model.OrderStatusFilled, filled.Fill.Order.Status)
	assert.True(t, filled.Fill.Price.Equal(d("100.02")))
	assert.True(t, filled.Fill.At.Equal(filledAt))
	assert.Zero(t, venue.cancels)

	// reported once; the engine has dropped it
	require.ErrorIs(t, eng.Cancel(ctx, order.OrderID), ErrUnknownOrder)
}

func TestLive_CancelAdoptedOrderHitsVenue(t *testing.T) {
	venue := newFakeVenue()
	ctx := context.Background()

	// placed by an earlier process
	first := NewLiveEngine(venue, nil)
	order := placeLive(t, first)

	restarted := NewLiveEngine(venue, nil)
	restarted.Track(order)
	require.NoError(t, restarted.Cancel(ctx, order.OrderID))

	assert.Equal(t, 1, venue.cancels)
	assert.Equal(t, VenueStatusCanceled, venue.orders[order.OrderID].Status)
}

func TestLive_CancelOfVenueClosedOrder(t *testing.T) {
	venue := newFakeVenue()
	eng := NewLiveEngine(venue, nil)

	order := placeLive(t, eng)
	venue.orders[order.OrderID].Status = VenueStatusExpired

	require.NoError(t, eng.Cancel(context.Background(), order.OrderID))
	assert.Zero(t, venue.cancels)
	assert.Empty(t, eng.orders)
}

func TestLive_PlaceFailureIsNotTracked(t *testing.T) {
	venue := newFakeVenue()
	venue.createEr = assert.AnError
	eng := NewLiveEngine(venue, nil)

	_, err := eng.Place(context.Background(), PlaceRequest{Symbol: "BTC/USDT", Side: model.OrderSideBuy,
		Kind: model.OrderKindEntry, LimitPrice: d("1"), Quantity: d("1")})
	require.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, eng.orders)
}
