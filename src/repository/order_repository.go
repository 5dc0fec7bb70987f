package repository

import (
	"context"
	"errors"
	"slices"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradelifecycle/src/database"
	"tradelifecycle/src/model"
)

// OrderRepository reads and writes orders for one mode's table and keeps the
// order_logs audit trail in step with every status change.
type OrderRepository struct {
	db   *gorm.DB
	mode model.Mode
}

// NewOrderRepository creates a repository on the main read/write database.
func NewOrderRepository(mode model.Mode) *OrderRepository {
	logger.WithFields(map[string]interface{}{
		"component": "OrderRepository",
		"table":     mode.OrdersTable(),
	}).Info("Creating new OrderRepository with MainDB")

	return &OrderRepository{db: database.MainDB, mode: mode}
}

// NewOrderRepositoryWithDB creates a repository on the given connection.
func NewOrderRepositoryWithDB(db *gorm.DB, mode model.Mode) *OrderRepository {
	return &OrderRepository{db: db, mode: mode}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *OrderRepository) WithDB(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db, mode: r.mode}
}

func (r *OrderRepository) Mode() model.Mode { return r.mode }

func (r *OrderRepository) orders(tx *gorm.DB) *gorm.DB {
	return tx.Model(&model.Order{}).Table(r.mode.OrdersTable())
}

// Put inserts or fully replaces the order. When the status differs from the
// stored one, an audit row is written in the same transaction.
func (r *OrderRepository) Put(ctx context.Context, order *model.Order) error {
	fields := map[string]interface{}{
		"repo":     "OrderRepository",
		"op":       "Put",
		"order_id": order.OrderID,
		"kind":     order.Kind,
		"status":   order.Status,
	}
	logger.WithFields(fields).Debug("Putting order")

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prev model.Order
		found := true
		if err := r.orders(tx).Select("order_id", "status").
			Where("order_id = ?", order.OrderID).
			Take(&prev).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			found = false
		}

		if err := tx.Table(r.mode.OrdersTable()).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			UpdateAll: true,
		}).Create(order).Error; err != nil {
			return err
		}

		if found && prev.Status == order.Status {
			return nil
		}
		return tx.Create(model.NewOrderLog(r.mode, order, prev.Status, "put")).Error
	})
	if err != nil {
		logger.WithFields(fields).WithError(err).Error("Failed to put order")
		return err
	}

	return nil
}

// Get fetches an order by id. Returns (nil, nil) if the order is not found.
func (r *OrderRepository) Get(ctx context.Context, orderID string) (*model.Order, error) {
	var order model.Order

	err := r.orders(r.db.WithContext(ctx)).
		Where("order_id = ?", orderID).
		Take(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo":     "OrderRepository",
				"op":       "Get",
				"order_id": orderID,
			}).Debug("Order not found")
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":     "OrderRepository",
			"op":       "Get",
			"order_id": orderID,
		}).WithError(err).Error("Failed to fetch order")
		return nil, err
	}

	return &order, nil
}

// UpdateStatusIf moves the order to status only while its current status is
// one of from. It reports whether this call performed the transition; false
// means another writer got there first or the order does not exist.
func (r *OrderRepository) UpdateStatusIf(ctx context.Context, orderID, status, reason string, from ...string) (bool, error) {
	if len(from) == 0 {
		return false, errors.New("UpdateStatusIf requires at least one precondition status")
	}
	return r.transition(ctx, orderID, status, reason, from)
}

func (r *OrderRepository) transition(ctx context.Context, orderID, status, reason string, from []string) (bool, error) {
	fields := map[string]interface{}{
		"repo":     "OrderRepository",
		"op":       "transition",
		"order_id": orderID,
		"status":   status,
		"from":     from,
		"reason":   reason,
	}

	moved := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order model.Order
		if err := r.orders(tx).Where("order_id = ?", orderID).Take(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		if !slices.Contains(from, order.Status) {
			return nil
		}

		res := r.orders(tx).
			Where("order_id = ? AND status = ?", orderID, order.Status).
			Update("status", status)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return nil
		}

		prevStatus := order.Status
		order.Status = status
		moved = true
		return tx.Create(model.NewOrderLog(r.mode, &order, prevStatus, reason)).Error
	})
	if err != nil {
		logger.WithFields(fields).WithError(err).Error("Failed to update order status")
		return false, err
	}

	logger.WithFields(fields).WithField("moved", moved).Debug("Order status transition")
	return moved, nil
}

// ScanByStatus returns every order with the given status, oldest first.
func (r *OrderRepository) ScanByStatus(ctx context.Context, status string) ([]model.Order, error) {
	var orders []model.Order

	err := r.orders(r.db.WithContext(ctx)).
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "OrderRepository",
			"op":     "ScanByStatus",
			"status": status,
		}).WithError(err).Error("Failed to scan orders")
		return nil, err
	}

	return orders, nil
}

// Latest returns the newest orders, optionally filtered by status.
func (r *OrderRepository) Latest(ctx context.Context, status string, limit int) ([]model.Order, error) {
	if limit <= 0 {
		limit = 20
	}

	q := r.orders(r.db.WithContext(ctx))
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var orders []model.Order
	if err := q.Order("created_at DESC").Limit(limit).Find(&orders).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "OrderRepository",
			"op":    "Latest",
			"limit": limit,
		}).WithError(err).Error("Failed to fetch latest orders")
		return nil, err
	}

	return orders, nil
}

// Logs returns the audit trail for one order, oldest first.
func (r *OrderRepository) Logs(ctx context.Context, orderID string) ([]model.OrderLog, error) {
	var logs []model.OrderLog
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND mode = ?", orderID, string(r.mode)).
		Order("id ASC").
		Find(&logs).Error
	return logs, err
}
