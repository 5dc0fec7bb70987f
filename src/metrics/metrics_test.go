package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestIncPositionClosedBucketsByPnl(t *testing.T) {
	IncPositionClosed("paper", decimal.NewFromInt(5))
	IncPositionClosed("paper", decimal.NewFromInt(-1))
	IncPositionClosed("paper", decimal.Zero)

	assert.Equal(t, 1.0, testutil.ToFloat64(positionsClosed.WithLabelValues("paper", "win")))
	assert.Equal(t, 1.0, testutil.ToFloat64(positionsClosed.WithLabelValues("paper", "loss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(positionsClosed.WithLabelValues("paper", "flat")))
}

func TestGauges(t *testing.T) {
	SetOpenPosition(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(openPosition))
	SetOpenPosition(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(openPosition))

	SetPendingOrders(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(pendingOrders))

	SetEquity(decimal.RequireFromString("10001.5"))
	assert.Equal(t, 10001.5, testutil.ToFloat64(equity))
}
