package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradelifecycle/src/database"
	"tradelifecycle/src/model"
	"tradelifecycle/src/tp_sl"
	"tradelifecycle/src/utils"
)

var ErrInvalidInterval = errors.New("invalid interval: must be a whole number of minutes between 2m and 4h")

// PriceRepository stores the append-only, TTL-expiring price history.
type PriceRepository struct {
	db *gorm.DB
}

func NewPriceRepository() *PriceRepository {
	logger.WithField("component", "PriceRepository").
		Info("Creating new PriceRepository with MainDB")

	return &PriceRepository{db: database.MainDB}
}

func NewPriceRepositoryWithDB(db *gorm.DB) *PriceRepository {
	return &PriceRepository{db: db}
}

func upsertBarClause() clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "interval"}, {Name: "datetime"}},
		DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume", "expires_at"}),
	}
}

// Append stores one bar, replacing a bar with the same symbol, interval and datetime.
func (s *PriceRepository) Append(ctx context.Context, bar *model.PriceBar) error {
	if err := s.db.WithContext(ctx).Clauses(upsertBarClause()).Create(bar).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "PriceRepository",
			"op":       "Append",
			"symbol":   bar.Symbol,
			"interval": bar.Interval,
		}).WithError(err).Error("Failed to append price bar")
		return err
	}
	return nil
}

// UpsertBars stores a batch of bars in one statement.
func (s *PriceRepository) UpsertBars(ctx context.Context, bars []*model.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(upsertBarClause()).Create(&bars).Error
}

// LatestDatetime returns the newest stored datetime for symbol/interval, or nil.
func (s *PriceRepository) LatestDatetime(ctx context.Context, symbol, interval string) (*time.Time, error) {
	var bar model.PriceBar
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND interval = ?", symbol, interval).
		Order("datetime DESC").
		Take(&bar).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &bar.Datetime, nil
}

// LatestPrice returns the close of the newest tick or bar for the symbol.
func (s *PriceRepository) LatestPrice(ctx context.Context, symbol string) (decimal.NullDecimal, error) {
	var bar model.PriceBar
	err := s.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("datetime DESC").
		Take(&bar).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.NullDecimal{}, nil
		}
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(bar.Close), nil
}

// RecentBars returns up to limit bars at or before to, in ascending order.
func (s *PriceRepository) RecentBars(
	ctx context.Context,
	symbol string,
	interval string,
	to time.Time,
	limit int,
) ([]model.PriceBar, error) {
	if limit <= 0 {
		limit = 200
	}

	var rows []model.PriceBar
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND interval = ? AND datetime <= ?", symbol, interval, to).
		Order("datetime DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	// reverse to ascending chronological order for easier logic
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// PruneExpired deletes rows whose TTL has passed and returns how many went.
func (s *PriceRepository) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at < ?", now.UTC()).Delete(&model.PriceBar{})
	if res.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "PriceRepository",
			"op":   "PruneExpired",
		}).WithError(res.Error).Error("Failed to prune price history")
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// NextStopLoss trails the stop of position over 1m bars aggregated to interval.
func (s *PriceRepository) NextStopLoss(
	ctx context.Context,
	position *model.Position,
	now time.Time,
	interval time.Duration,
	lookback int,
) (decimal.NullDecimal, bool, error) {
	if lookback <= 0 {
		lookback = 20
	}

	mult := int(interval.Minutes())
	if mult <= 0 {
		mult = 1
	}

	// stop logic reads the previous bar, so fetch two extra aggregated bars
	needAgg := lookback + 2
	limit1m := needAgg*mult + (2 * mult)

	bars1m, err := s.RecentBars(ctx, position.Symbol, model.PriceInterval1m, now, limit1m)
	if err != nil {
		return position.StopLoss, false, err
	}

	bars := bars1m
	if interval > time.Minute {
		bars, err = AggregateBars(bars1m, interval)
		if err != nil {
			return position.StopLoss, false, err
		}
	}

	if len(bars) < 2 {
		return position.StopLoss, false, nil
	}
	if len(bars) > needAgg {
		bars = bars[len(bars)-needAgg:]
	}

	newSL, moved := tp_sl.ComputeNextStopLossDirectional(tp_sl.SideOf(position), position.StopLoss, bars, lookback)
	return newSL, moved, nil
}

// AggregateBars folds ascending 1m bars into interval buckets aligned to the wall clock.
func AggregateBars(bars []model.PriceBar, interval time.Duration) ([]model.PriceBar, error) {
	if interval%time.Minute != 0 || interval < 2*time.Minute || interval > 4*time.Hour {
		return nil, ErrInvalidInterval
	}

	if len(bars) == 0 {
		return []model.PriceBar{}, nil
	}

	out := make([]model.PriceBar, 0, len(bars)/int(interval.Minutes())+2)

	var cur model.PriceBar
	var curBucket time.Time
	hasCur := false

	for _, b := range bars {
		bucket := utils.BucketStart(b.Datetime, interval)

		if !hasCur || !bucket.Equal(curBucket) {
			if hasCur {
				out = append(out, cur)
			}
			curBucket = bucket
			hasCur = true
			cur = model.PriceBar{
				Symbol:    b.Symbol,
				Interval:  interval.String(),
				Datetime:  curBucket,
				Open:      b.Open,
				High:      b.High,
				Low:       b.Low,
				Close:     b.Close,
				Volume:    b.Volume,
				ExpiresAt: b.ExpiresAt,
			}
			continue
		}

		if b.High.GreaterThan(cur.High) {
			cur.High = b.High
		}
		if b.Low.LessThan(cur.Low) {
			cur.Low = b.Low
		}
		cur.Close = b.Close
		cur.Volume = cur.Volume.Add(b.Volume)
		cur.ExpiresAt = b.ExpiresAt
	}

	if hasCur {
		out = append(out, cur)
	}

	return out, nil
}
