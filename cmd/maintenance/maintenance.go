// Package maintenance holds one-shot operator commands that touch the store
// directly. Neither command talks to the venue: cancel requests are carried
// out by the running trader on its next reconciliation.
package maintenance

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"tradelifecycle/src/model"
)

type pruner interface {
	PruneExpired(ctx context.Context, now time.Time) (int64, error)
}

type pendingOrders interface {
	ScanByStatus(ctx context.Context, status string) ([]model.Order, error)
	UpdateStatusIf(ctx context.Context, orderID, status, reason string, from ...string) (bool, error)
}

// Prune removes price history rows past their TTL.
func Prune(ctx context.Context, prices pruner, now time.Time) (int64, error) {
	n, err := prices.PruneExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	logrus.WithField("rows", n).Info("price history pruned")
	return n, nil
}

// CancelPending flags every pending order with request_cancel. Orders that
// fill or expire in the meantime are left alone by the conditional write.
func CancelPending(ctx context.Context, orders pendingOrders, reason string) (int, error) {
	pending, err := orders.ScanByStatus(ctx, model.OrderStatusPending)
	if err != nil {
		return 0, err
	}

	requested := 0
	for _, o := range pending {
		moved, err := orders.UpdateStatusIf(ctx, o.OrderID, model.OrderStatusRequestCancel, reason,
			model.OrderStatusPending)
		if err != nil {
			return requested, err
		}
		if moved {
			requested++
		}
	}

	logrus.WithFields(logrus.Fields{
		"pending":   len(pending),
		"requested": requested,
	}).Info("cancel requested for pending orders")
	return requested, nil
}
