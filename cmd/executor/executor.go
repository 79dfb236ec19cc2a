package executor

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"quantsystem/src/app"
	"quantsystem/src/executors"
)

// Executor runs the market-hours scheduler until SIGINT or SIGTERM.
type Executor struct {
	Log *logrus.Entry
}

func (t *Executor) Start() error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	ac, err := app.Open(app.LoadConfig(), t.Log)
	if err != nil {
		t.Log.WithError(err).Error("Failed to build application context")
		return err
	}
	defer ac.Close()

	t.Log.WithFields(logrus.Fields{
		"mode":    ac.Config.Paper.Mode,
		"symbols": ac.Symbols(),
	}).Info("Starting scheduler")

	if err := executors.StartScheduler(ctx, ac); err != nil {
		t.Log.WithError(err).Error("Scheduler stopped with error")
		return err
	}
	return nil
}
