package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountBalance persists the paper ledger cash so capital survives restarts.
type AccountBalance struct {
	AccountID      string          `gorm:"primaryKey;size:64;column:account_id" json:"account_id"`
	Balance        decimal.Decimal `gorm:"type:numeric;not null" json:"balance"`
	InitialBalance decimal.Decimal `gorm:"type:numeric;not null" json:"initial_balance"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (AccountBalance) TableName() string {
	return "account_balances"
}
