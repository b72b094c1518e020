package agave

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// System types reported by the systems service, lower-cased.
const (
	SystemTypeExecution = "execution"
	SystemTypeStorage   = "storage"
)

// System is a compute or storage resource registered with the tenant.
type System struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Default bool   `json:"default"`
	Public  bool   `json:"public"`
	Status  string `json:"status"`
}

// Kind returns the lower-cased system type.
func (s System) Kind() string {
	return strings.ToLower(s.Type)
}

// ListSystems returns every system visible to the authenticated user.
func (c *Client) ListSystems(ctx context.Context, endpoint string) ([]System, error) {
	resp, err := c.Do(ctx, http.MethodGet, endpoint, nil, "")
	if err != nil {
		return nil, err
	}

	systems, err := decodeResult[[]System](resp)
	if err != nil {
		return nil, fmt.Errorf("decoding system list: %w", err)
	}

	return systems, nil
}
