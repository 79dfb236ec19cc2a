package executors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Schedule drives the intraday tick: snapshot, monitor, execute.
	Schedule string `envconfig:"SCHEDULE" default:"* 9-15 * * MON-FRI"`
	// AnalyzeSchedule drives the after-close fetch and analysis. Empty disables it.
	AnalyzeSchedule string        `envconfig:"ANALYZE_SCHEDULE" default:"30 16 * * MON-FRI"`
	TimeZone        string        `envconfig:"CRON_TZ" default:"Asia/Hong_Kong"`
	Market          string        `envconfig:"MARKET" default:"HK"`
	JobTimeout      time.Duration `envconfig:"JOB_TIMEOUT" default:"5m"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
