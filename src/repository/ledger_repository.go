package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradelifecycle/src/database"
	"tradelifecycle/src/model"
)

// LedgerRepository persists the paper account balance.
type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{db: database.MainDB}
}

func NewLedgerRepositoryWithDB(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Get returns the stored balance for the account, or (nil, nil) when none was saved yet.
func (r *LedgerRepository) Get(ctx context.Context, accountID string) (*model.AccountBalance, error) {
	var balance model.AccountBalance

	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Take(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithFields(map[string]interface{}{
			"repo":       "LedgerRepository",
			"op":         "Get",
			"account_id": accountID,
		}).WithError(err).Error("Failed to fetch account balance")
		return nil, err
	}

	return &balance, nil
}

// Save upserts the balance row.
func (r *LedgerRepository) Save(ctx context.Context, balance *model.AccountBalance) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"balance", "initial_balance", "updated_at"}),
	}).Create(balance).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":       "LedgerRepository",
			"op":         "Save",
			"account_id": balance.AccountID,
		}).WithError(err).Error("Failed to save account balance")
		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":       "LedgerRepository",
		"op":         "Save",
		"account_id": balance.AccountID,
		"balance":    balance.Balance.String(),
	}).Debug("Account balance saved")

	return nil
}
