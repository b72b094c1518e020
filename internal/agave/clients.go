package agave

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const formContentType = "application/x-www-form-urlencoded"

// OAuthClient is an API client application registered with the tenant.
type OAuthClient struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	ConsumerKey    string `json:"consumerKey"`
	ConsumerSecret string `json:"consumerSecret"`
	CallbackURL    string `json:"callbackUrl"`
	Tier           string `json:"tier"`
}

// CreateClient registers a new client application. The caller must have
// built c with BasicAuth for the user's account.
func (c *Client) CreateClient(ctx context.Context, endpoint, name, description string) (*OAuthClient, error) {
	c.logger.Info("creating client", slog.String("name", name))

	form := url.Values{
		"clientName":  {name},
		"description": {description},
		"tier":        {"Unlimited"},
		"callbackUrl": {""},
	}

	resp, err := c.Do(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()), formContentType)
	if err != nil {
		return nil, err
	}

	created, err := decodeResult[OAuthClient](resp)
	if err != nil {
		return nil, fmt.Errorf("decoding created client: %w", err)
	}

	if created.ConsumerKey == "" || created.ConsumerSecret == "" {
		return nil, fmt.Errorf("agave: client %q created without consumer key or secret", name)
	}

	return &created, nil
}

// ListClients returns every client application registered to the user.
func (c *Client) ListClients(ctx context.Context, endpoint string) ([]OAuthClient, error) {
	resp, err := c.Do(ctx, http.MethodGet, endpoint, nil, "")
	if err != nil {
		return nil, err
	}

	clients, err := decodeResult[[]OAuthClient](resp)
	if err != nil {
		return nil, fmt.Errorf("decoding client list: %w", err)
	}

	return clients, nil
}

// DeleteClient removes a client application and its API keys.
func (c *Client) DeleteClient(ctx context.Context, endpoint, name string) error {
	c.logger.Info("deleting client", slog.String("name", name))

	resp, err := c.Do(ctx, http.MethodDelete, endpoint+"/"+url.PathEscape(name), nil, "")
	if err != nil {
		return err
	}

	drain(resp)

	return nil
}
