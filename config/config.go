// Package config loads the server and CLI configuration.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/warp/subsidy-engine/subsidy"
	"gopkg.in/yaml.v3"
)

// BreachCheck is one limit the scheduled scan evaluates.
type BreachCheck struct {
	Kind      string `yaml:"kind"`
	LimitDays int    `yaml:"limit_days"`
}

// Config holds all application configuration.
type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Allocation struct {
		ThresholdDays      int    `yaml:"threshold_days"`
		PrivilegedCategory string `yaml:"privileged_category"`
		FilingWindowDays   int    `yaml:"filing_window_days"`
	} `yaml:"allocation"`
	Claims struct {
		DailyRate string `yaml:"daily_rate"`
	} `yaml:"claims"`
	Report struct {
		Cron   string        `yaml:"cron"`
		Checks []BreachCheck `yaml:"checks"`
	} `yaml:"report"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	// Environment variable overrides
	if v := os.Getenv("SUBSIDY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SUBSIDY_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("SUBSIDY_THRESHOLD_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil {
			cfg.Allocation.ThresholdDays = days
		}
	}
	if v := os.Getenv("SUBSIDY_DAILY_RATE"); v != "" {
		cfg.Claims.DailyRate = v
	}
	if v := os.Getenv("SUBSIDY_REPORT_CRON"); v != "" {
		cfg.Report.Cron = v
	}

	cfg.applyDefaults()
	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Path == "" {
		c.Database.Path = "subsidy.db"
	}
	if c.Allocation.ThresholdDays == 0 {
		c.Allocation.ThresholdDays = 20
	}
	if c.Allocation.PrivilegedCategory == "" {
		c.Allocation.PrivilegedCategory = string(subsidy.DefaultPrivilegedCategory)
	}
	if c.Allocation.FilingWindowDays == 0 {
		c.Allocation.FilingWindowDays = subsidy.DefaultFilingWindowDays
	}
	if c.Claims.DailyRate == "" {
		c.Claims.DailyRate = "0"
	}
	if c.Report.Cron == "" {
		c.Report.Cron = "0 0 6 * * *"
	}
	if len(c.Report.Checks) == 0 {
		c.Report.Checks = []BreachCheck{
			{Kind: string(subsidy.BreachContinuous), LimitDays: 365},
			{Kind: string(subsidy.BreachGlobal), LimitDays: 545},
		}
	}
}

// Validate checks that all values are usable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Allocation.ThresholdDays <= 0 {
		return fmt.Errorf("allocation.threshold_days must be positive")
	}
	if c.Allocation.FilingWindowDays <= 0 {
		return fmt.Errorf("allocation.filing_window_days must be positive")
	}
	rate, err := decimal.NewFromString(c.Claims.DailyRate)
	if err != nil {
		return fmt.Errorf("claims.daily_rate: %w", err)
	}
	if rate.IsNegative() {
		return fmt.Errorf("claims.daily_rate must not be negative")
	}
	for i, check := range c.Report.Checks {
		if _, err := subsidy.ParseBreachKind(check.Kind); err != nil {
			return fmt.Errorf("report.checks[%d]: %w", i, err)
		}
		if check.LimitDays < 0 {
			return fmt.Errorf("report.checks[%d].limit_days must not be negative", i)
		}
	}
	return nil
}

// DailyRate returns the claim rate per reimbursable day. Call after Validate.
func (c *Config) DailyRate() decimal.Decimal {
	rate, err := decimal.NewFromString(c.Claims.DailyRate)
	if err != nil {
		return decimal.Zero
	}
	return rate
}

// NewAllocator builds the allocator the configuration describes.
func (c *Config) NewAllocator() *subsidy.Allocator {
	return subsidy.NewAllocator(subsidy.Category(c.Allocation.PrivilegedCategory), c.Allocation.FilingWindowDays)
}
