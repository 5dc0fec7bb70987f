package apiserver

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"tradelifecycle/src/database"
	"tradelifecycle/src/ledger"
	"tradelifecycle/src/manager"
	"tradelifecycle/src/model"
	"tradelifecycle/src/repository"
	"tradelifecycle/src/server"
)

var ErrMissingTokenHash = errors.New("API_TOKEN_HASH is required")

type APIServer struct{}

// Start serves the operator API until SIGINT or SIGTERM. It runs beside the
// trader and only writes requests the trader picks up on its next sync.
func (a *APIServer) Start() error {
	config := server.GetConfig()
	if config.APITokenHash == "" {
		return ErrMissingTokenHash
	}

	mode, err := model.ParseMode(config.TradingMode)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Error("Failed to connect to main database")
		return err
	}
	if err := database.InitReadOnlyDB(); err != nil {
		logrus.WithError(err).Error("Failed to connect to read-only database")
		return err
	}

	deps := server.Deps{
		Mode:              mode,
		AccountID:         ledger.GetConfig().AccountID,
		OrderTTL:          manager.GetConfig().OrderTTL,
		Orders:            repository.NewOrderRepository(mode),
		Positions:         repository.NewPositionRepository(mode),
		OrdersReadOnly:    repository.NewOrderRepositoryWithDB(database.ReadOnlyDB, mode),
		PositionsReadOnly: repository.NewPositionRepositoryWithDB(database.ReadOnlyDB, mode),
		Ledger:            repository.NewLedgerRepositoryWithDB(database.ReadOnlyDB),
		Exceptions:        repository.NewExceptionRepositoryWithDB(database.ReadOnlyDB),
		TokenHash:         config.APITokenHash,
		Operator:          config.APIOperator,
	}

	logrus.WithField("mode", mode).Info("Starting operator API")
	return server.StartServer(ctx, config.Port, server.NewRouter(deps))
}
