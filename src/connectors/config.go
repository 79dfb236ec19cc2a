package connectors

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

const defaultBrokerBaseURL = "https://paper-api.broker.local"

type Config struct {
	BrokerBaseURL   string `envconfig:"BROKER_BASE_URL" default:"https://paper-api.broker.local"`
	BrokerAPIKey    string `envconfig:"BROKER_API_KEY"`
	BrokerAPISecret string `envconfig:"BROKER_API_SECRET"`

	QuoteStreamURL string `envconfig:"QUOTE_STREAM_URL"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
