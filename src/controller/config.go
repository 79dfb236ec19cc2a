package controller

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// SignalBatch caps how many due signals one tick executes.
	SignalBatch int `envconfig:"SIGNAL_BATCH" default:"50"`
	// MonitorLookback is the number of daily bars fed to the technical exit checks.
	MonitorLookback int `envconfig:"MONITOR_LOOKBACK" default:"120"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

func DefaultConfig() Config {
	return Config{SignalBatch: 50, MonitorLookback: 120}
}
