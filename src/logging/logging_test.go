package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureFallsBackToDebug(t *testing.T) {
	l := logrus.New()
	entry, err := configure(l, Config{Level: "loud"}, "quantsystem")
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
	assert.Equal(t, "quantsystem", entry.Data["app"])
	assert.IsType(t, &logrus.TextFormatter{}, l.Formatter)
}

func TestConfigureWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "quant.log")
	l := logrus.New()
	entry, err := configure(l, Config{Level: "info", Format: "json", File: path, MaxSizeMB: 1}, "")
	require.NoError(t, err)
	assert.IsType(t, &logrus.JSONFormatter{}, l.Formatter)

	entry.WithField("symbol", "0700.HK").Info("written")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"symbol":"0700.HK"`)
}
