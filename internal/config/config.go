// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for agavecli. It supports a four-layer
// override chain (defaults -> config file -> environment -> CLI flags).
package config

import "time"

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	AgaveDB   string    `toml:"agavedb"`
	HostURL   string    `toml:"host_url"`
	LogLevel  string    `toml:"log_level"`
	Timeout   string    `toml:"timeout"`
	Endpoints Endpoints `toml:"endpoints"`
}

// Endpoints are the service paths appended to a tenant's base URL.
type Endpoints struct {
	Token    string `toml:"token"`
	Clients  string `toml:"clients"`
	Systems  string `toml:"systems"`
	Listings string `toml:"listings"`
	Media    string `toml:"media"`
}

// Resolved is the effective configuration after every override layer.
type Resolved struct {
	ConfigPath string        `json:"config_path"`
	AgaveDB    string        `json:"agavedb"`
	HostURL    string        `json:"host_url"`
	LogLevel   string        `json:"log_level"`
	Timeout    time.Duration `json:"timeout"`
	Endpoints  Endpoints     `json:"endpoints"`
}

// CLIOverrides holds values from command-line flags. Nil pointers mean the
// flag was not given.
type CLIOverrides struct {
	ConfigPath string
	AgaveDB    *string
}
