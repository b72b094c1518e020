// Package tenants resolves Agave tenant codes to base URLs through the public
// tenant registry. It holds no state.
package tenants

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/agave-cli/agavecli/internal/agave"
)

// DefaultHostURL lists every tenant of the TACC Agave deployment.
const DefaultHostURL = "https://api.tacc.utexas.edu/tenants"

// Tenant is one registry entry.
type Tenant struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	BaseURL string `json:"baseUrl"`
}

// Registry queries tenant registries over HTTP.
type Registry struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewRegistry creates a registry client. Both arguments may be nil.
func NewRegistry(httpClient *http.Client, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{httpClient: httpClient, logger: logger}
}

// List returns every tenant listed at hostURL. A malformed hostURL fails with
// agave.ErrTransport; an HTTP error status with *agave.ResponseError.
func (r *Registry) List(ctx context.Context, hostURL string) ([]Tenant, error) {
	client := agave.NewClient(hostURL, r.httpClient, nil, r.logger)

	var list []Tenant
	if err := client.GetJSON(ctx, "", &list); err != nil {
		return nil, err
	}

	r.logger.Debug("listed tenants", slog.String("host_url", hostURL), slog.Int("count", len(list)))

	return list, nil
}

// Find returns the tenant with the given code.
func Find(list []Tenant, code string) (Tenant, bool) {
	for _, t := range list {
		if t.Code == code {
			return t, true
		}
	}

	return Tenant{}, false
}
