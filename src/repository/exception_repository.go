package repository

import (
	"context"
	"encoding/json"
	"runtime/debug"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradelifecycle/src/database"
	"tradelifecycle/src/model"
)

// ExceptionRepository handles persistence of system exceptions.
type ExceptionRepository struct {
	db *gorm.DB
}

// NewExceptionRepository creates a new repository instance.
func NewExceptionRepository() *ExceptionRepository {
	return &ExceptionRepository{db: database.MainDB}
}

func NewExceptionRepositoryWithDB(db *gorm.DB) *ExceptionRepository {
	return &ExceptionRepository{db: db}
}

// Create persists a new exception in the database.
func (r *ExceptionRepository) Create(ctx context.Context, exc *model.Exception) error {
	return r.db.WithContext(ctx).Create(exc).Error
}

// Capture logs err with its location and persists it with a stack trace.
// A nil receiver only logs.
func (r *ExceptionRepository) Capture(
	ctx context.Context,
	service string,
	module string,
	method string,
	level string,
	entityID string,
	err error,
	contextData map[string]interface{},
) {
	if err == nil {
		return
	}

	var ctxJSON string
	if contextData != nil {
		if b, e := json.Marshal(contextData); e == nil {
			ctxJSON = string(b)
		}
	}

	exc := &model.Exception{
		Service:   service,
		Module:    module,
		Method:    method,
		EntityID:  entityID,
		Message:   err.Error(),
		Stack:     string(debug.Stack()),
		Level:     level,
		Context:   ctxJSON,
		CreatedAt: time.Now().UTC(),
	}

	logger.WithFields(map[string]interface{}{
		"service":   service,
		"module":    module,
		"method":    method,
		"level":     level,
		"entity_id": entityID,
	}).WithError(err).Error("System exception captured")

	if r == nil || r.db == nil {
		return
	}
	if e := r.Create(ctx, exc); e != nil {
		logger.WithError(e).Error("Failed to persist exception")
	}
}

// Recent returns the newest exceptions, optionally filtered by level.
func (r *ExceptionRepository) Recent(ctx context.Context, level string, limit int) ([]model.Exception, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.WithContext(ctx)
	if level != "" {
		q = q.Where("level = ?", level)
	}
	var out []model.Exception
	err := q.Order("id DESC").Limit(limit).Find(&out).Error
	return out, err
}
