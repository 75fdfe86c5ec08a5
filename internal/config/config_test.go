package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, []string{"stdout"}, cfg.Logger.OutputPaths)

	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "moodlescan", cfg.Telemetry.ServiceName)
	assert.Equal(t, 1.0, cfg.Telemetry.SampleRate)

	assert.Equal(t, 30*time.Second, cfg.Scanner.Timeout)
	assert.True(t, cfg.Scanner.VerifySSL)
	assert.Zero(t, cfg.Scanner.Delay)
	assert.Empty(t, cfg.Scanner.Username)
}
