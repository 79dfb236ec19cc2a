package sellstrategy

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config switches each exit policy independently. Any enabled policy that fires forces an exit.
type Config struct {
	StopLossEnabled bool    `envconfig:"SELL_STOP_LOSS_ENABLED" default:"true"`
	StopLossPct     float64 `envconfig:"SELL_STOP_LOSS_PCT" default:"-0.05"` // negative

	TakeProfitEnabled bool    `envconfig:"SELL_TAKE_PROFIT_ENABLED" default:"true"`
	TakeProfitPct     float64 `envconfig:"SELL_TAKE_PROFIT_PCT" default:"0.10"`

	FixedHoldEnabled bool `envconfig:"SELL_FIXED_HOLD_ENABLED" default:"false"`
	HoldDays         int  `envconfig:"SELL_HOLD_DAYS" default:"20"`

	TrailingStopEnabled bool    `envconfig:"SELL_TRAILING_STOP_ENABLED" default:"true"`
	TrailingStopPct     float64 `envconfig:"SELL_TRAILING_STOP_PCT" default:"0.05"`

	TechnicalEnabled bool    `envconfig:"SELL_TECHNICAL_ENABLED" default:"true"`
	RSIOverbought    float64 `envconfig:"SELL_RSI_OVERBOUGHT" default:"80"`
	MACDDeathCross   bool    `envconfig:"SELL_MACD_DEATH_CROSS" default:"true"`

	StructuralStopEnabled bool `envconfig:"SELL_STRUCTURAL_STOP_ENABLED" default:"false"`
	StructuralLookback    int  `envconfig:"SELL_STRUCTURAL_LOOKBACK" default:"20"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// DefaultConfig mirrors the env defaults without reading the environment.
func DefaultConfig() Config {
	return Config{
		StopLossEnabled:     true,
		StopLossPct:         -0.05,
		TakeProfitEnabled:   true,
		TakeProfitPct:       0.10,
		HoldDays:            20,
		TrailingStopEnabled: true,
		TrailingStopPct:     0.05,
		TechnicalEnabled:    true,
		RSIOverbought:       80,
		MACDDeathCross:      true,
		StructuralLookback:  20,
	}
}
