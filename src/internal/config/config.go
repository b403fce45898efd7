package config

import (
	"uxtrace/src/internal/core"
)

// Config is the full uxtrace configuration: the capture pipeline, the
// dual delivery paths, the collector server, and the dashboard client.
type Config struct {
	Capture   CaptureConfig   `toml:"capture"`
	Delivery  DeliveryConfig  `toml:"delivery"`
	CSV       CSVConfig       `toml:"csv"`
	Server    ServerConfig    `toml:"server"`
	Dashboard DashboardConfig `toml:"dashboard"`
	Logging   *LogConfig      `toml:"logging"`
}

// CaptureConfig controls the capture layer and classifier.
type CaptureConfig struct {
	// Master switch; disabled means every log call is a no-op
	Enabled bool `toml:"enabled"`

	// Drop noise-flagged records before enqueue instead of storing
	// them tagged
	DropNoise bool `toml:"drop_noise"`

	// Flag http_request events outside the business prefixes as noise
	StrictBusinessFilter bool     `toml:"strict_business_filter"`
	BusinessPrefixes     []string `toml:"business_prefixes"`

	BatchSize       int64 `toml:"batch_size"`
	FlushIntervalMS int64 `toml:"flush_interval_ms"`
	SettleDelayMS   int64 `toml:"settle_delay_ms"`
	ThrottleMS      int64 `toml:"throttle_ms"`
}

// DeliveryConfig controls the JSON delivery sink.
type DeliveryConfig struct {
	URL            string  `toml:"url"`
	TimeoutSeconds int64   `toml:"timeout_seconds"`
	MaxRetries     int64   `toml:"max_retries"`
	RetryDelayMS   int64   `toml:"retry_delay_ms"`
	RetryBackoff   float64 `toml:"retry_backoff"`
}

// CSVConfig controls the flat CSV delivery sink.
type CSVConfig struct {
	Enabled        bool   `toml:"enabled"`
	URL            string `toml:"url"`
	BatchSize      int64  `toml:"batch_size"`
	TimeoutSeconds int64  `toml:"timeout_seconds"`
}

// ServerConfig controls the collector.
type ServerConfig struct {
	Host         string `toml:"host"`
	Port         int64  `toml:"port"`
	DatabasePath string `toml:"database_path"`
	CSVDirectory string `toml:"csv_directory"`
	ExportDir    string `toml:"export_dir"`

	// Live feed
	BackfillSize             int64 `toml:"backfill_size"`
	StreamBufferSize         int64 `toml:"stream_buffer_size"`
	HeartbeatIntervalSeconds int64 `toml:"heartbeat_interval_seconds"`

	NetLimit NetLimitConfig `toml:"net_limit"`
}

// NetLimitConfig is the per-IP ingest rate limit.
type NetLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	BurstSize         int64   `toml:"burst_size"`
}

// DashboardConfig controls the viewer client.
type DashboardConfig struct {
	BaseURL        string `toml:"base_url"`
	FetchLimit     int64  `toml:"fetch_limit"`
	TimeoutSeconds int64  `toml:"timeout_seconds"`
}

// LogConfig is the application logging configuration.
type LogConfig struct {
	// Output mode: "file", "stdout", "stderr", "both", "none"
	Output string `toml:"output"`

	// Log level: "debug", "info", "warn", "error"
	Level string `toml:"level"`

	File    *LogFileConfig    `toml:"file"`
	Console *LogConsoleConfig `toml:"console"`
}

type LogFileConfig struct {
	Directory      string  `toml:"directory"`
	Name           string  `toml:"name"`
	MaxSizeMB      int64   `toml:"max_size_mb"`
	MaxTotalSizeMB int64   `toml:"max_total_size_mb"`
	RetentionHours float64 `toml:"retention_hours"`
}

type LogConsoleConfig struct {
	// Target for console output: "stdout", "stderr", "split"
	Target string `toml:"target"`

	// Format: "txt" or "json"
	Format string `toml:"format"`
}

func defaults() *Config {
	return &Config{
		Capture: CaptureConfig{
			Enabled:              true,
			DropNoise:            false,
			StrictBusinessFilter: true,
			BatchSize:            core.DefaultBatchSize,
			FlushIntervalMS:      core.DefaultFlushIntervalMS,
			SettleDelayMS:        core.DefaultSettleDelayMS,
			ThrottleMS:           core.DefaultThrottleMS,
		},
		Delivery: DeliveryConfig{
			URL:            "http://localhost:5001/api/logs",
			TimeoutSeconds: 5,
			MaxRetries:     3,
			RetryDelayMS:   500,
			RetryBackoff:   2.0,
		},
		CSV: CSVConfig{
			Enabled:        true,
			URL:            "http://localhost:5001/api/logs/csv",
			BatchSize:      core.DefaultCSVBatchSize,
			TimeoutSeconds: 5,
		},
		Server: ServerConfig{
			Host:                     "0.0.0.0",
			Port:                     5001,
			DatabasePath:             "user_logs.db",
			CSVDirectory:             "./",
			ExportDir:                "./exports",
			BackfillSize:             core.DefaultBackfillSize,
			StreamBufferSize:         100,
			HeartbeatIntervalSeconds: 30,
			NetLimit: NetLimitConfig{
				Enabled:           false,
				RequestsPerSecond: 50,
				BurstSize:         100,
			},
		},
		Dashboard: DashboardConfig{
			BaseURL:        "http://localhost:5001",
			FetchLimit:     100,
			TimeoutSeconds: 10,
		},
		Logging: &LogConfig{
			Output: "stderr",
			Level:  "info",
			File: &LogFileConfig{
				Directory:      "./log",
				Name:           "uxtrace",
				MaxSizeMB:      100,
				MaxTotalSizeMB: 1000,
				RetentionHours: 168,
			},
			Console: &LogConsoleConfig{
				Target: "stderr",
				Format: "txt",
			},
		},
	}
}
