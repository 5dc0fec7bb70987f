package repository

import (
	"context"
	"errors"
	"slices"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradelifecycle/src/database"
	"tradelifecycle/src/model"
)

// PositionRepository reads and writes positions for one mode's table.
type PositionRepository struct {
	db   *gorm.DB
	mode model.Mode
}

// NewPositionRepository creates a repository on the main read/write database.
func NewPositionRepository(mode model.Mode) *PositionRepository {
	logger.WithFields(map[string]interface{}{
		"component": "PositionRepository",
		"table":     mode.PositionsTable(),
	}).Info("Creating new PositionRepository with MainDB")

	return &PositionRepository{db: database.MainDB, mode: mode}
}

func NewPositionRepositoryWithDB(db *gorm.DB, mode model.Mode) *PositionRepository {
	return &PositionRepository{db: db, mode: mode}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *PositionRepository) WithDB(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db, mode: r.mode}
}

func (r *PositionRepository) positions(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.Position{}).Table(r.mode.PositionsTable())
}

// Put inserts or fully replaces the position.
func (r *PositionRepository) Put(ctx context.Context, position *model.Position) error {
	err := r.db.WithContext(ctx).
		Table(r.mode.PositionsTable()).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "position_id"}},
			UpdateAll: true,
		}).
		Create(position).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":        "PositionRepository",
			"op":          "Put",
			"position_id": position.PositionID,
			"status":      position.Status,
		}).WithError(err).Error("Failed to put position")
		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "PositionRepository",
		"op":          "Put",
		"position_id": position.PositionID,
		"status":      position.Status,
	}).Debug("Position stored")

	return nil
}

// Get fetches a position by id. Returns (nil, nil) if not found.
func (r *PositionRepository) Get(ctx context.Context, positionID string) (*model.Position, error) {
	var position model.Position

	err := r.positions(ctx).Where("position_id = ?", positionID).Take(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithFields(map[string]interface{}{
			"repo":        "PositionRepository",
			"op":          "Get",
			"position_id": positionID,
		}).WithError(err).Error("Failed to fetch position")
		return nil, err
	}

	return &position, nil
}

// UpdateStatusIf moves the position to status only while its current status
// is one of from, in a single conditional UPDATE. It reports whether this
// call performed the transition.
func (r *PositionRepository) UpdateStatusIf(ctx context.Context, positionID, status string, from ...string) (bool, error) {
	if len(from) == 0 {
		return false, errors.New("UpdateStatusIf requires at least one precondition status")
	}

	res := r.positions(ctx).
		Where("position_id = ? AND status IN ?", positionID, from).
		Update("status", status)
	if res.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":        "PositionRepository",
			"op":          "UpdateStatusIf",
			"position_id": positionID,
			"status":      status,
			"from":        from,
		}).WithError(res.Error).Error("Failed to update position status")
		return false, res.Error
	}

	return res.RowsAffected == 1, nil
}

// UpdateRiskParams overwrites stop loss and take profit. Invalid values clear the column.
func (r *PositionRepository) UpdateRiskParams(ctx context.Context, positionID string, stopLoss, takeProfit decimal.NullDecimal) error {
	res := r.positions(ctx).
		Where("position_id = ?", positionID).
		Updates(map[string]interface{}{
			"stop_loss":   stopLoss,
			"take_profit": takeProfit,
		})
	if res.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":        "PositionRepository",
			"op":          "UpdateRiskParams",
			"position_id": positionID,
		}).WithError(res.Error).Error("Failed to update risk params")
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePnl stores the mark-to-market pnl and the price it was computed at.
func (r *PositionRepository) UpdatePnl(ctx context.Context, positionID string, pnl, markPrice decimal.Decimal) error {
	res := r.positions(ctx).
		Where("position_id = ?", positionID).
		Updates(map[string]interface{}{
			"pnl":           pnl,
			"current_price": decimal.NewNullDecimal(markPrice),
		})
	if res.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":        "PositionRepository",
			"op":          "UpdatePnl",
			"position_id": positionID,
		}).WithError(res.Error).Error("Failed to update pnl")
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ScanByStatus returns positions in any of the given statuses, oldest first.
func (r *PositionRepository) ScanByStatus(ctx context.Context, statuses ...string) ([]model.Position, error) {
	var positions []model.Position

	err := r.positions(ctx).
		Where("status IN ?", statuses).
		Order("entry_time ASC").
		Find(&positions).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "PositionRepository",
			"op":       "ScanByStatus",
			"statuses": statuses,
		}).WithError(err).Error("Failed to scan positions")
		return nil, err
	}

	return positions, nil
}

// ScanActivePosition returns the single open or request_close position, or
// nil when there is none. More than one is an *ActivePositionConflictError.
func (r *PositionRepository) ScanActivePosition(ctx context.Context) (*model.Position, error) {
	positions, err := r.ScanByStatus(ctx, model.ActivePositionStatuses...)
	if err != nil {
		return nil, err
	}

	switch len(positions) {
	case 0:
		return nil, nil
	case 1:
		return &positions[0], nil
	}

	ids := make([]string, 0, len(positions))
	for _, p := range positions {
		ids = append(ids, p.PositionID)
	}
	return nil, &ActivePositionConflictError{PositionIDs: ids}
}

// Latest returns the newest positions, optionally filtered by status.
func (r *PositionRepository) Latest(ctx context.Context, status string, limit int) ([]model.Position, error) {
	if limit <= 0 {
		limit = 20
	}

	q := r.positions(ctx)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var positions []model.Position
	if err := q.Order("entry_time DESC").Limit(limit).Find(&positions).Error; err != nil {
		return nil, err
	}
	return positions, nil
}

// Stats computes realized and unrealized pnl totals and the win rate over closed positions.
func (r *PositionRepository) Stats(ctx context.Context) (*model.PnlStats, error) {
	var positions []model.Position
	if err := r.positions(ctx).Find(&positions).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "PositionRepository",
			"op":   "Stats",
		}).WithError(err).Error("Failed to load positions for stats")
		return nil, err
	}

	return ComputePnlStats(positions), nil
}

// ComputePnlStats folds positions into totals. Positions that are still
// active contribute their unrealized pnl to OpenPnl.
func ComputePnlStats(positions []model.Position) *model.PnlStats {
	stats := &model.PnlStats{
		TotalPnl:  decimal.Zero,
		OpenPnl:   decimal.Zero,
		ClosedPnl: decimal.Zero,
		WinRate:   decimal.Zero,
	}

	for _, p := range positions {
		switch {
		case p.Status == model.PositionStatusClosed:
			stats.ClosedPnl = stats.ClosedPnl.Add(p.Pnl)
			stats.Closed++
			if p.Pnl.IsPositive() {
				stats.Wins++
			} else if p.Pnl.IsNegative() {
				stats.Losses++
			}
		case slices.Contains([]string{model.PositionStatusOpen, model.PositionStatusRequestClose, model.PositionStatusClosing}, p.Status):
			stats.OpenPnl = stats.OpenPnl.Add(p.Pnl)
		}
	}

	stats.TotalPnl = stats.ClosedPnl.Add(stats.OpenPnl)
	if stats.Closed > 0 {
		stats.WinRate = decimal.NewFromInt(int64(stats.Wins)).
			Div(decimal.NewFromInt(int64(stats.Closed))).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}

	return stats
}
