package model

import "time"

const (
	ExceptionLevelWarn  = "warn"
	ExceptionLevelError = "error"
	ExceptionLevelFatal = "fatal"
)

// Exception is a persisted system error. Data-integrity alerts land here with
// level fatal so they can be found apart from ordinary log noise.
type Exception struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Service string `gorm:"size:100;index" json:"service"` // e.g. "trader"
	Module  string `gorm:"size:100;index" json:"module"`  // e.g. "manager"
	Method  string `gorm:"size:100" json:"method"`        // e.g. "SyncState"

	// Order or position id the error relates to, when there is one
	EntityID string `gorm:"size:64;index" json:"entity_id,omitempty"`

	Message string `gorm:"type:text" json:"message"`
	Stack   string `gorm:"type:text" json:"stack"`
	Level   string `gorm:"size:20;index" json:"level"`
	Context string `gorm:"type:text" json:"context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
