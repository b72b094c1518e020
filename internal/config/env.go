package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig  = "AGAVE_CLI_CONFIG"
	EnvAgaveDB = "AGAVE_CLI_DB"
	EnvHostURL = "AGAVE_CLI_HOST_URL"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // AGAVE_CLI_CONFIG: override config file path
	AgaveDB    string // AGAVE_CLI_DB: context store directory
	HostURL    string // AGAVE_CLI_HOST_URL: tenant registry URL
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		AgaveDB:    os.Getenv(EnvAgaveDB),
		HostURL:    os.Getenv(EnvHostURL),
	}
}
