package config

import (
	"errors"
	"fmt"
	"time"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks all configuration values and returns all errors found.
func Validate(cfg *Config) error {
	var errs []error

	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", cfg.LogLevel))
	}

	if d, err := time.ParseDuration(cfg.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("timeout: %w", err))
	} else if d <= 0 {
		errs = append(errs, fmt.Errorf("timeout: must be positive, got %q", cfg.Timeout))
	}

	if cfg.AgaveDB == "" {
		errs = append(errs, errors.New("agavedb: must not be empty"))
	}

	if cfg.HostURL == "" {
		errs = append(errs, errors.New("host_url: must not be empty"))
	}

	errs = append(errs, validateEndpoints(&cfg.Endpoints)...)

	return errors.Join(errs...)
}

func validateEndpoints(e *Endpoints) []error {
	var errs []error

	for _, ep := range []struct{ key, value string }{
		{"token", e.Token},
		{"clients", e.Clients},
		{"systems", e.Systems},
		{"listings", e.Listings},
		{"media", e.Media},
	} {
		if ep.value == "" {
			errs = append(errs, fmt.Errorf("endpoints.%s: must not be empty", ep.key))
		}
	}

	return errs
}
