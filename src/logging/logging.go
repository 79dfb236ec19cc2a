package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	logger "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"text"` // "text" or "json"
	File   string `envconfig:"LOG_FILE"`

	MaxSizeMB  int `envconfig:"LOG_MAX_SIZE_MB" default:"10"`
	MaxBackups int `envconfig:"LOG_MAX_BACKUPS" default:"5"`
	MaxAgeDays int `envconfig:"LOG_MAX_AGE_DAYS" default:"7"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// Setup configures the standard logrus logger and returns the root entry
// handed to every component. An unknown level falls back to debug.
func Setup(cfg Config, app string) (*logger.Entry, error) {
	return configure(logger.StandardLogger(), cfg, app)
}

func configure(l *logger.Logger, cfg Config, app string) (*logger.Entry, error) {
	level, err := logger.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logger.DebugLevel
	}
	l.SetLevel(level)

	if cfg.Format == "json" {
		l.SetFormatter(&logger.JSONFormatter{})
	} else {
		l.SetFormatter(&logger.TextFormatter{FullTimestamp: true})
	}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}
	l.SetOutput(out)

	entry := logger.NewEntry(l)
	if app != "" {
		entry = entry.WithField("app", app)
	}
	return entry, nil
}
