package config

import "github.com/agave-cli/agavecli/internal/tenants"

// Default values for configuration options. These are "layer 0" of the
// override chain and work without any config file.
const (
	defaultAgaveDB  = "~"
	defaultLogLevel = "warn"
	defaultTimeout  = "30s"

	defaultTokenEndpoint    = "token"
	defaultClientsEndpoint  = "clients/v2"
	defaultSystemsEndpoint  = "systems/v2"
	defaultListingsEndpoint = "files/v2/listings/system"
	defaultMediaEndpoint    = "files/v2/media/system"
)

// DefaultConfig returns a Config populated with all default values. It is
// the starting point for TOML decoding, so unset keys keep their defaults.
func DefaultConfig() *Config {
	return &Config{
		AgaveDB:   defaultAgaveDB,
		HostURL:   tenants.DefaultHostURL,
		LogLevel:  defaultLogLevel,
		Timeout:   defaultTimeout,
		Endpoints: DefaultEndpoints(),
	}
}

// DefaultEndpoints returns the standard Agave v2 service paths.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Token:    defaultTokenEndpoint,
		Clients:  defaultClientsEndpoint,
		Systems:  defaultSystemsEndpoint,
		Listings: defaultListingsEndpoint,
		Media:    defaultMediaEndpoint,
	}
}
