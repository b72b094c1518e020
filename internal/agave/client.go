package agave

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

const (
	userAgent = "agavecli/0.1"

	// maxErrorBody caps how much of a failed response is kept for the error
	// message. Agave error pages are small JSON documents.
	maxErrorBody = 64 * 1024
)

// Authorizer attaches credentials to an outbound request.
type Authorizer interface {
	Authorize(req *http.Request)
}

// BearerToken authorizes requests with an OAuth2 access token.
type BearerToken string

// Authorize sets the Authorization: Bearer header.
func (t BearerToken) Authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+string(t))
}

// BasicAuth authorizes requests with a username and password. The clients
// service uses it because API keys do not exist yet when it is called.
type BasicAuth struct {
	Username string
	Password string
}

// Authorize sets the Authorization: Basic header.
func (b BasicAuth) Authorize(req *http.Request) {
	req.SetBasicAuth(b.Username, b.Password)
}

// Client is an HTTP client for one Agave tenant. Paths passed to its methods
// are appended verbatim to baseURL, so "https://api.example.org/" plus
// "files/v2/media/system" yields the expected URL without slash fixing.
type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       Authorizer
	logger     *slog.Logger
	pretty     bool
}

// NewClient creates a client for the given base URL. auth may be nil for
// unauthenticated endpoints such as tenant discovery.
func NewClient(baseURL string, httpClient *http.Client, auth Authorizer, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		auth:       auth,
		logger:     logger,
	}
}

// WithPrettyJSON returns a copy of the client that adds pretty=true to every
// request, matching what the Agave web tooling sends on authenticated calls.
func (c *Client) WithPrettyJSON() *Client {
	cp := *c
	cp.pretty = true

	return &cp
}

// BaseURL returns the URL prefix the client resolves paths against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ValidateURL reports whether raw is an absolute URL with scheme and host.
// The returned error wraps ErrTransport.
func ValidateURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid URL %q: %w", ErrTransport, raw, err)
	}

	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid URL %q: no scheme or host supplied", ErrTransport, raw)
	}

	return u, nil
}

// Do sends a request to baseURL+path. contentType is set when body is
// non-nil. Responses with status >= 400 are drained, closed, and returned as
// *ResponseError. On success the caller must close the response body.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	u, err := ValidateURL(c.baseURL + path)
	if err != nil {
		return nil, err
	}

	if c.pretty {
		q := u.Query()
		q.Set("pretty", "true")
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", ErrTransport, err)
	}

	req.Header.Set("User-Agent", userAgent)

	if body != nil && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if c.auth != nil {
		c.auth.Authorize(req)
	}

	c.logger.Debug("sending request",
		slog.String("method", method),
		slog.String("path", u.Path),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("agave: request canceled: %w", ctx.Err())
		}

		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, u.Redacted(), err)
	}

	if resp.StatusCode < http.StatusBadRequest {
		c.logger.Debug("request succeeded",
			slog.String("method", method),
			slog.String("path", u.Path),
			slog.Int("status", resp.StatusCode),
		)

		return resp, nil
	}

	errBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()

	if readErr != nil {
		errBody = []byte("(failed to read response body)")
	}

	c.logger.Debug("request failed",
		slog.String("method", method),
		slog.String("path", u.Path),
		slog.Int("status", resp.StatusCode),
	)

	return nil, &ResponseError{
		StatusCode: resp.StatusCode,
		Method:     method,
		URL:        c.baseURL + path,
		Body:       string(errBody),
	}
}

// errEmptyBody is returned by decodeResult when the server sent no payload.
var errEmptyBody = errors.New("agave: empty response body")

// envelope is the wrapper every Agave service puts around its payload.
type envelope[T any] struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

// decodeResult reads the envelope from resp, closes the body, and returns
// the result payload.
func decodeResult[T any](resp *http.Response) (T, error) {
	defer resp.Body.Close()

	var env envelope[T]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		var zero T
		if errors.Is(err, io.EOF) {
			return zero, errEmptyBody
		}

		return zero, fmt.Errorf("agave: decoding response: %w", err)
	}

	return env.Result, nil
}

// GetJSON sends a GET to path and decodes the envelope's result into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	resp, err := c.Do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	env := envelope[any]{Result: out}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("agave: decoding response: %w", err)
	}

	return nil
}

// drain discards and closes a response body for calls whose payload is not
// needed.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
