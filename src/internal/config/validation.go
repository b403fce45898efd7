package config

import (
	"fmt"
	"net/url"
)

func (c *Config) validate() error {
	if c.Capture.BatchSize < 1 {
		return fmt.Errorf("capture batch_size must be at least 1, got %d", c.Capture.BatchSize)
	}
	if c.Capture.FlushIntervalMS < 1 {
		return fmt.Errorf("capture flush_interval_ms must be positive, got %d", c.Capture.FlushIntervalMS)
	}
	if c.Capture.SettleDelayMS < 1 {
		return fmt.Errorf("capture settle_delay_ms must be positive, got %d", c.Capture.SettleDelayMS)
	}
	if c.Capture.ThrottleMS < 1 {
		return fmt.Errorf("capture throttle_ms must be positive, got %d", c.Capture.ThrottleMS)
	}

	if err := validateURL("delivery.url", c.Delivery.URL); err != nil {
		return err
	}
	if c.Delivery.MaxRetries < 0 {
		return fmt.Errorf("delivery max_retries cannot be negative")
	}
	if c.Delivery.RetryBackoff < 1.0 {
		return fmt.Errorf("delivery retry_backoff must be at least 1.0, got %g", c.Delivery.RetryBackoff)
	}

	if c.CSV.Enabled {
		if err := validateURL("csv.url", c.CSV.URL); err != nil {
			return err
		}
		if c.CSV.BatchSize < 1 {
			return fmt.Errorf("csv batch_size must be at least 1, got %d", c.CSV.BatchSize)
		}
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.DatabasePath == "" {
		return fmt.Errorf("server database_path cannot be empty")
	}
	if c.Server.BackfillSize < 0 {
		return fmt.Errorf("server backfill_size cannot be negative")
	}
	if c.Server.NetLimit.Enabled {
		if c.Server.NetLimit.RequestsPerSecond <= 0 {
			return fmt.Errorf("server net_limit requests_per_second must be positive")
		}
		if c.Server.NetLimit.BurstSize < 1 {
			return fmt.Errorf("server net_limit burst_size must be at least 1")
		}
	}

	if err := validateURL("dashboard.base_url", c.Dashboard.BaseURL); err != nil {
		return err
	}

	if c.Logging != nil {
		if err := validateLogConfig(c.Logging); err != nil {
			return fmt.Errorf("logging config: %w", err)
		}
	}

	return nil
}

func validateURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", field, u.Scheme)
	}
	return nil
}

func validateLogConfig(cfg *LogConfig) error {
	validOutputs := map[string]bool{
		"file": true, "stdout": true, "stderr": true,
		"both": true, "none": true,
	}
	if !validOutputs[cfg.Output] {
		return fmt.Errorf("invalid log output mode: %s", cfg.Output)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[cfg.Level] {
		return fmt.Errorf("invalid log level: %s", cfg.Level)
	}

	if cfg.Console != nil {
		validTargets := map[string]bool{
			"stdout": true, "stderr": true, "split": true, "": true,
		}
		if !validTargets[cfg.Console.Target] {
			return fmt.Errorf("invalid console target: %s", cfg.Console.Target)
		}

		validFormats := map[string]bool{
			"txt": true, "json": true, "": true,
		}
		if !validFormats[cfg.Console.Format] {
			return fmt.Errorf("invalid console format: %s", cfg.Console.Format)
		}
	}

	return nil
}
