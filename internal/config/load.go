package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
)

// parseFile reads, decodes, and applies environment overrides. The decoder is
// strict: unknown keys and trailing tokens are errors, so a typo in the config
// file fails loudly instead of silently using a default.
func parseFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	jb, err := coerceToJSONBytes(path, b)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Monitor.Schedule == "" {
		c.Monitor.Schedule = "12h"
	}
	if c.Monitor.AlertDays <= 0 {
		c.Monitor.AlertDays = 7
	}
	if c.Monitor.SuppressWindow == "" {
		c.Monitor.SuppressWindow = "24h"
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = "cache"
	}
	if c.Cache.ResetDays <= 0 {
		c.Cache.ResetDays = 30
	}
	if c.Notifier.MessageLimit <= 0 {
		c.Notifier.MessageLimit = 4096
	}
	if c.Notifier.RatePerSec <= 0 {
		c.Notifier.RatePerSec = 1
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the fields whose failure would only surface deep inside a
// running component. It is also the Watch validator, so a bad edit never
// reaches subscribers.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if c.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram.chat_id is required")
	}
	if strings.TrimSpace(c.Moysklad.Token) == "" {
		return fmt.Errorf("moysklad.token is required")
	}
	if err := validateSchedule(c.Monitor.Schedule); err != nil {
		return fmt.Errorf("monitor.schedule: %w", err)
	}
	for _, f := range []struct{ path, raw string }{
		{"telegram.poll_timeout", c.Telegram.PollTimeout},
		{"moysklad.request_delay", c.Moysklad.RequestDelay},
		{"moysklad.timeout", c.Moysklad.Timeout},
		{"moysklad.retry_delay", c.Moysklad.RetryDelay},
		{"monitor.cycle_timeout", c.Monitor.CycleTimeout},
		{"monitor.suppress_window", c.Monitor.SuppressWindow},
		{"cache.busy_timeout", c.Cache.BusyTimeout},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	if c.Cache.ResetDays <= 0 {
		return fmt.Errorf("cache.reset_days must be > 0")
	}
	if d := c.Cache.Driver; d != "" && d != "file" && d != "sqlite" {
		return fmt.Errorf("cache.driver: unknown driver %q", d)
	}
	if c.Monitor.AlertDays < 0 {
		return fmt.Errorf("monitor.alert_days must be >= 0")
	}
	if c.Notifier.MessageLimit <= 0 || c.Notifier.MessageLimit > 4096 {
		return fmt.Errorf("notifier.message_limit must be in 1..4096")
	}
	return nil
}

// validateSchedule mirrors the schedule grammar: a positive Go duration or a
// standard 5-field cron spec (descriptors like @daily included).
func validateSchedule(raw string) error {
	s := strings.TrimSpace(raw)
	if s == "" {
		return fmt.Errorf("empty schedule")
	}
	if strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@") {
		_, err := cron.ParseStandard(s)
		return err
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	return nil
}
