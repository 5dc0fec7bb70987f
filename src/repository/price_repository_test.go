package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradelifecycle/src/model"
)

func bar1m(at time.Time, o, h, l, c int64) model.PriceBar {
	return model.PriceBar{
		Symbol:    "BTC/USDT",
		Interval:  model.PriceInterval1m,
		Datetime:  at,
		Open:      decimal.NewFromInt(o),
		High:      decimal.NewFromInt(h),
		Low:       decimal.NewFromInt(l),
		Close:     decimal.NewFromInt(c),
		Volume:    decimal.NewFromInt(1),
		ExpiresAt: at.Add(24 * time.Hour),
	}
}

func TestAggregateBars(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	bars := []model.PriceBar{
		bar1m(base, 10, 12, 9, 11),
		bar1m(base.Add(time.Minute), 11, 15, 10, 14),
		bar1m(base.Add(2*time.Minute), 14, 14, 8, 9),
		bar1m(base.Add(5*time.Minute), 9, 10, 7, 8),
	}

	out, err := AggregateBars(bars, 5*time.Minute)
	require.NoError(t, err)
	require.Len(t, out, 2)

	first := out[0]
	assert.True(t, first.Datetime.Equal(base))
	assert.True(t, first.Open.Equal(decimal.NewFromInt(10)))
	assert.True(t, first.High.Equal(decimal.NewFromInt(15)))
	assert.True(t, first.Low.Equal(decimal.NewFromInt(8)))
	assert.True(t, first.Close.Equal(decimal.NewFromInt(9)))
	assert.True(t, first.Volume.Equal(decimal.NewFromInt(3)))

	_, err = AggregateBars(bars, 90*time.Second)
	require.ErrorIs(t, err, ErrInvalidInterval)
	_, err = AggregateBars(bars, time.Minute)
	require.ErrorIs(t, err, ErrInvalidInterval)

	empty, err := AggregateBars(nil, 5*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPriceRepository_AppendLatestAndPrune(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewPriceRepositoryWithDB(db)
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	price, err := repo.LatestPrice(ctx, "BTC/USDT")
	require.NoError(t, err)
	assert.False(t, price.Valid)

	require.NoError(t, repo.Append(ctx, model.NewTickBar("BTC/USDT", decimal.NewFromInt(100), now.Add(-2*time.Hour), time.Hour)))
	require.NoError(t, repo.Append(ctx, model.NewTickBar("BTC/USDT", decimal.NewFromInt(101), now, time.Hour)))
	// same key replaces the row
	require.NoError(t, repo.Append(ctx, model.NewTickBar("BTC/USDT", decimal.NewFromInt(102), now, time.Hour)))

	price, err = repo.LatestPrice(ctx, "BTC/USDT")
	require.NoError(t, err)
	require.True(t, price.Valid)
	assert.True(t, price.Decimal.Equal(decimal.NewFromInt(102)))

	latest, err := repo.LatestDatetime(ctx, "BTC/USDT", model.PriceIntervalTick)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.Equal(now))

	pruned, err := repo.PruneExpired(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pruned)

	var count int64
	require.NoError(t, db.Model(&model.PriceBar{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestPriceRepository_RecentBarsAscending(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewPriceRepositoryWithDB(db)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	var bars []*model.PriceBar
	for i := 0; i < 5; i++ {
		b := bar1m(base.Add(time.Duration(i)*time.Minute), 10, 11, 9, 10+int64(i))
		bars = append(bars, &b)
	}
	require.NoError(t, repo.UpsertBars(ctx, bars))

	got, err := repo.RecentBars(ctx, "BTC/USDT", model.PriceInterval1m, base.Add(3*time.Minute), 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].Close.Equal(decimal.NewFromInt(11)))
	assert.True(t, got[2].Close.Equal(decimal.NewFromInt(13)))
}

func TestPriceRepository_NextStopLossTrailsLong(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewPriceRepositoryWithDB(db)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	var bars []*model.PriceBar
	for i := 0; i < 6; i++ {
		lo := 100 + int64(i)
		b := bar1m(base.Add(time.Duration(i)*time.Minute), lo+1, lo+3, lo, lo+2)
		bars = append(bars, &b)
	}
	require.NoError(t, repo.UpsertBars(ctx, bars))

	position := newPosition("p1", model.PositionStatusOpen, base)
	position.StopLoss = decimal.NewNullDecimal(decimal.NewFromInt(90))

	newSL, moved, err := repo.NextStopLoss(ctx, position, base.Add(10*time.Minute), time.Minute, 3)
	require.NoError(t, err)
	assert.True(t, moved)
	require.True(t, newSL.Valid)
	assert.True(t, newSL.Decimal.GreaterThan(decimal.NewFromInt(90)))
}
