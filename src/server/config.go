package server

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port string `envconfig:"PORT" default:"9898"`

	DashboardUser         string `envconfig:"DASHBOARD_USER" default:"admin"`
	DashboardPasswordHash string `envconfig:"DASHBOARD_PASSWORD_HASH"` // bcrypt, empty disables auth

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
