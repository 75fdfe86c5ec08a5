package config

import (
	"time"
)

type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Scanner   ScannerConfig   `mapstructure:"scanner"`
}

type LoggerConfig struct {
	Level       string   `mapstructure:"level"`
	Format      string   `mapstructure:"format"`
	OutputPaths []string `mapstructure:"output_paths"`
}

type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	ServiceName  string  `mapstructure:"service_name"`
	ExporterType string  `mapstructure:"exporter_type"`
	Endpoint     string  `mapstructure:"endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

// ScannerConfig configures a single probe run against one target.
type ScannerConfig struct {
	Timeout     time.Duration     `mapstructure:"timeout"`
	Proxy       string            `mapstructure:"proxy"`
	Delay       time.Duration     `mapstructure:"delay"`
	UserAgent   string            `mapstructure:"user_agent"`
	VerifySSL   bool              `mapstructure:"verify_ssl"`
	Username    string            `mapstructure:"username"`
	Password    string            `mapstructure:"password"`
	Cookies     map[string]string `mapstructure:"cookies"`
	VersionHint string            `mapstructure:"version_hint"`
}

// DefaultConfig returns the defaults applied before flag/env binding.
func DefaultConfig() *Config {
	return &Config{
		Logger: LoggerConfig{
			Level:       "info",
			Format:      "console",
			OutputPaths: []string{"stdout"},
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			ServiceName:  "moodlescan",
			ExporterType: "otlp",
			Endpoint:     "localhost:4317",
			SampleRate:   1.0,
		},
		Scanner: ScannerConfig{
			Timeout:   30 * time.Second,
			Delay:     0,
			VerifySSL: true,
		},
	}
}
