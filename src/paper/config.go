package paper

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"quantsystem/src/risk"
)

const (
	ModeLocal  = "local"
	ModeBroker = "broker"
)

type Config struct {
	Mode           string  `envconfig:"PAPER_MODE" default:"local"` // "local" or "broker"
	InitialCash    float64 `envconfig:"PAPER_INITIAL_CASH" default:"1000000"`
	Slippage       float64 `envconfig:"PAPER_SLIPPAGE" default:"0.003"`
	MaxPerPosition float64 `envconfig:"PAPER_MAX_PER_POSITION" default:"0.05"`
	MaxGross       float64 `envconfig:"PAPER_MAX_GROSS" default:"0.80"`
	Market         string  `envconfig:"PAPER_MARKET" default:"HK"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

func DefaultConfig() Config {
	return Config{
		Mode:           ModeLocal,
		InitialCash:    1_000_000,
		Slippage:       0.003,
		MaxPerPosition: 0.05,
		MaxGross:       0.80,
		Market:         "HK",
	}
}

func (c Config) limits() risk.Limits {
	return risk.Limits{
		MaxPerPosition: decimal.NewFromFloat(c.MaxPerPosition),
		MaxGross:       decimal.NewFromFloat(c.MaxGross),
	}
}
