package marketdata

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	VendorURL    string        `envconfig:"MARKETDATA_VENDOR_URL" default:"https://data.vendor.local"`
	VendorAPIKey string        `envconfig:"MARKETDATA_API_KEY"`
	Symbols      []string      `envconfig:"SYMBOLS" default:"0700.HK,9988.HK,3690.HK"`
	Market       string        `envconfig:"MARKET" default:"HK"`
	HistoryDays  int           `envconfig:"HISTORY_DAYS" default:"180"`
	Limit        int           `envconfig:"MARKETDATA_LIMIT" default:"1000"`
	QuoteMaxAge  time.Duration `envconfig:"QUOTE_MAX_AGE" default:"2m"`
	CryptoURL    string        `envconfig:"CRYPTO_API_URL"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
