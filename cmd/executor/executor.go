package executor

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"tradelifecycle/src/database"
	"tradelifecycle/src/executors"
)

type Executor struct{}

// Start runs the trading loop until SIGINT or SIGTERM.
func (t *Executor) Start() error {
	config := executors.GetConfig()
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Error("Failed to connect to main database")
		return err
	}

	logrus.WithFields(logrus.Fields{
		"mode":   config.Mode,
		"symbol": config.Symbol,
	}).Info("Starting trader")

	if err := executors.StartLoop(ctx); err != nil {
		logrus.WithError(err).Error("Trader loop stopped with error")
		return err
	}

	return nil
}
