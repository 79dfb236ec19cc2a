package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	logger "github.com/sirupsen/logrus"

	"quantsystem/src/app"
	"quantsystem/src/logging"
	"quantsystem/src/server"
)

var APP_NAME = os.Getenv("APP_NAME")

func main() {
	defer handlePanic()

	log, err := logging.Setup(logging.GetConfig(), APP_NAME)
	if err != nil {
		logger.WithError(err).Fatal("Failed to set up logging")
	}

	ac, err := app.Open(app.LoadConfig(), log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer ac.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ac.StartStream(ctx)
	if err := server.StartServer(ctx, ac, server.GetConfig()); err != nil {
		log.WithError(err).Error("Server stopped with error")
	}
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error(fmt.Sprintf("Application %s panic", APP_NAME))
		//nolint
		time.Sleep(time.Second * 5)
	}
}
