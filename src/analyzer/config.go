package analyzer

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// MinBuySignal is the weakest buy label that still produces a BUY signal.
	MinBuySignal string `envconfig:"ANALYZE_MIN_BUY_SIGNAL" default:"WEAK_BUY"`
	Lookback     int    `envconfig:"ANALYZE_LOOKBACK" default:"250"`
	TopN         int    `envconfig:"ANALYZE_TOP_N" default:"20"`
	Market       string `envconfig:"MARKET" default:"HK"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

func DefaultConfig() Config {
	return Config{MinBuySignal: "WEAK_BUY", Lookback: 250, TopN: 20, Market: "HK"}
}
