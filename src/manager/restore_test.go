package manager

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradelifecycle/src/model"
	"tradelifecycle/src/repository"
)

func TestRestore_SurvivesRestart(t *testing.T) {
	db := openDB(t)
	first := newEnvOnDB(t, db, nil)
	ctx := first.ctx()
	require.NoError(t, first.mgr.Restore(ctx))

	position := first.openLong("90000")
	pendingExit, err := first.mgr.ClosePosition(ctx, d("90000"))
	require.NoError(t, err)
	require.NotNil(t, pendingExit)

	// new process on the same store
	second := newEnvOnDB(t, db, nil)
	require.NoError(t, second.mgr.Restore(ctx))

	assert.True(t, second.ledger.Balance().Equal(d("9910")), second.ledger.Balance().String())

	restored := second.mgr.CurrentPosition()
	require.NotNil(t, restored)
	assert.Equal(t, position.PositionID, restored.PositionID)
	assert.Equal(t, model.PositionStatusClosing, restored.Status)
	assert.Equal(t, []string{pendingExit.OrderID}, second.mgr.PendingOrderIDs())

	holding, ok := second.ledger.Holding("BTC/USDT")
	require.True(t, ok)
	assert.Equal(t, position.PositionID, holding.PositionID)

	// the imported exit still closes the restored position
	_, err = second.mgr.CheckOrderStatus(ctx, pendingExit.OrderID, d("91000"))
	require.NoError(t, err)
	assert.Nil(t, second.mgr.CurrentPosition())
	assert.True(t, second.ledger.Balance().Equal(d("10001")), second.ledger.Balance().String())
}

func TestRestore_MultipleActivePositionsFailsLoudly(t *testing.T) {
	e := newEnv(t)
	ctx := e.ctx()

	for _, id := range []string{"a", "b"} {
		require.NoError(t, e.positions.Put(ctx, &model.Position{
			PositionID: id,
			Symbol:     "BTC/USDT",
			Side:       model.PositionSideLong,
			EntryPrice: d("1"),
			Quantity:   d("1"),
			EntryTime:  time.Now(),
			Status:     model.PositionStatusOpen,
			Pnl:        decimal.Zero,
		}))
	}

	err := e.mgr.Restore(ctx)
	require.ErrorIs(t, err, repository.ErrMultipleActivePositions)
	assert.Nil(t, e.mgr.CurrentPosition())

	alerts := e.alerts()
	require.NotEmpty(t, alerts)
	require.Len(t, e.recorder.calls, 1)
	assert.Equal(t, "Restore", e.recorder.calls[0].method)
	assert.Equal(t, model.ExceptionLevelFatal, e.recorder.calls[0].level)
}

func TestRestore_EmptyStoreSeedsBalance(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.mgr.Restore(e.ctx()))

	row, err := e.balances.Get(e.ctx(), "paper")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.True(t, row.Balance.Equal(d("10000")))
	assert.Nil(t, e.mgr.CurrentPosition())
	assert.True(t, e.mgr.CanOpenPosition("BTC/USDT"))
}
