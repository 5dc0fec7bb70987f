package handler

import (
	"context"
	"net/http"

	logger "github.com/sirupsen/logrus"

	"tradelifecycle/src/model"
)

type exceptionReader interface {
	Recent(ctx context.Context, level string, limit int) ([]model.Exception, error)
}

// ListExceptionsHandler returns the newest persisted exceptions.
// Supports ?level=warn|error|fatal and ?limit=.
func ListExceptionsHandler(repo exceptionReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := limitParam(r, 50)
		if !ok {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}

		level := r.URL.Query().Get("level")
		switch level {
		case "", model.ExceptionLevelWarn, model.ExceptionLevelError, model.ExceptionLevelFatal:
		default:
			http.Error(w, "level must be warn, error or fatal", http.StatusBadRequest)
			return
		}

		exceptions, err := repo.Recent(r.Context(), level, limit)
		if err != nil {
			logger.WithError(err).Error("failed to list exceptions")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, exceptions)
	}
}
