package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"tradelifecycle/src/ledger"
	"tradelifecycle/src/model"
	"tradelifecycle/src/repository"
)

// Restore rehydrates the manager after a restart: ledger balance, the
// tracked position, simulated holdings and pending orders. More than one
// active position in the store is an integrity violation and fails startup.
func (m *Manager) Restore(ctx context.Context) error {
	if m.ledger != nil {
		if err := m.ledger.Load(ctx); err != nil {
			return err
		}
	}

	position, err := m.positions.ScanActivePosition(ctx)
	if err != nil {
		var conflict *repository.ActivePositionConflictError
		if errors.As(err, &conflict) {
			m.integrityAlert(ctx, "Restore", "", err, map[string]interface{}{
				"position_ids": conflict.PositionIDs,
			})
		}
		return fmt.Errorf("restore active position: %w", err)
	}

	if position == nil {
		closing, err := m.positions.ScanByStatus(ctx, model.PositionStatusClosing)
		if err != nil {
			return fmt.Errorf("restore closing position: %w", err)
		}
		switch len(closing) {
		case 0:
		case 1:
			position = &closing[0]
		default:
			ids := make([]string, 0, len(closing))
			for _, p := range closing {
				ids = append(ids, p.PositionID)
			}
			err := &repository.ActivePositionConflictError{PositionIDs: ids}
			m.integrityAlert(ctx, "Restore", "", err, map[string]interface{}{"position_ids": ids})
			return fmt.Errorf("restore closing position: %w", err)
		}
	}

	m.current = position
	if position != nil {
		if m.ledger != nil {
			m.ledger.Restore([]ledger.Holding{ledger.HoldingFromPosition(position)})
		}
		m.log.WithFields(logrus.Fields{
			"position_id": position.PositionID,
			"symbol":      position.Symbol,
			"status":      position.Status,
		}).Info("Restored active position from store")
	}

	if err := m.importPendingOrders(ctx); err != nil {
		return fmt.Errorf("restore pending orders: %w", err)
	}

	fields := logrus.Fields{"pending": len(m.pending)}
	if m.ledger != nil {
		fields["balance"] = m.ledger.Balance().String()
	}
	m.log.WithFields(fields).Info("Manager state restored")
	return nil
}
