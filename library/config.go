package library

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the runtime settings of the library system. Store
// location and loan policy live here so deployments (and tests) can
// vary them without touching code.
type Config struct {
	DBPath      string `yaml:"dbPath"`
	LoanDays    int    `yaml:"loanDays"`
	MaxRenewals int    `yaml:"maxRenewals"`
}

// DefaultConfig returns the stock policy: a local database file, a
// 30-day loan period and at most 2 renewals per loan.
func DefaultConfig() Config {
	return Config{
		DBPath:      "library.db",
		LoanDays:    30,
		MaxRenewals: 2,
	}
}

// LoadConfig reads a YAML config file and applies environment-variable
// overrides (LIBRARYDESK_DB, LIBRARYDESK_LOAN_DAYS,
// LIBRARYDESK_MAX_RENEWALS). An empty path skips the file and uses
// defaults plus overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if v := os.Getenv("LIBRARYDESK_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("LIBRARYDESK_LOAN_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("LIBRARYDESK_LOAN_DAYS: %w", err)
		}
		cfg.LoanDays = n
	}
	if v := os.Getenv("LIBRARYDESK_MAX_RENEWALS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("LIBRARYDESK_MAX_RENEWALS: %w", err)
		}
		cfg.MaxRenewals = n
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("%w: dbPath must not be empty", ErrValidation)
	}
	if c.LoanDays <= 0 {
		return fmt.Errorf("%w: loanDays must be positive", ErrValidation)
	}
	if c.MaxRenewals < 0 {
		return fmt.Errorf("%w: maxRenewals must not be negative", ErrValidation)
	}
	return nil
}
