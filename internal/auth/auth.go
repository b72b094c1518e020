// Package auth manages the lifecycle of the current tenant's OAuth2 token:
// password-grant creation, refresh-grant renewal, and the staleness check
// that runs before every authenticated call.
package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/agave-cli/agavecli/internal/agave"
	"github.com/agave-cli/agavecli/internal/session"
)

// Scope requested on every grant.
const Scope = "PRODUCTION"

// RefreshWindow is how close to expiry a token is treated as stale.
const RefreshWindow = 60 * time.Second

var (
	// ErrNoTokenIssued is returned when the current profile has never had a
	// token issued (created_at + expires_in == 0).
	ErrNoTokenIssued = errors.New(`auth: no access token issued (try "auth create")`)

	// ErrNoAccessToken is returned when the store holds no access token.
	ErrNoAccessToken = errors.New("auth: no access token (create one; you may need to create a client as well)")

	// ErrNoRefreshToken is returned by Refresh when the store holds no
	// refresh token.
	ErrNoRefreshToken = errors.New(`auth: no refresh token (try "auth create")`)
)

// PasswordPrompter supplies the user's password for the password grant.
type PasswordPrompter interface {
	Password(prompt string) (string, error)
}

// PasswordFunc adapts a function to PasswordPrompter.
type PasswordFunc func(prompt string) (string, error)

// Password calls f.
func (f PasswordFunc) Password(prompt string) (string, error) {
	return f(prompt)
}

// Manager creates and refreshes tokens for the current tenant of the store
// in dir. Endpoint is the token service path appended to the tenant's base
// URL, normally "token".
type Manager struct {
	dir        string
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time

	// OnRefresh, when set, is called before an automatic refresh starts.
	OnRefresh func()
}

// NewManager creates a token manager. httpClient and logger may be nil.
func NewManager(dir, endpoint string, httpClient *http.Client, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Manager{
		dir:        dir,
		endpoint:   endpoint,
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
	}
}

// NeedsRefresh reports whether p's token must be refreshed at now: true when
// it has expired or expires within RefreshWindow. Returns ErrNoTokenIssued
// if no token was ever issued.
func NeedsRefresh(p *session.Profile, now time.Time) (bool, error) {
	expiry := p.Expiry()
	if expiry == 0 {
		return false, ErrNoTokenIssued
	}

	delta := now.Unix() - expiry

	return delta > -int64(RefreshWindow/time.Second), nil
}

// EnsureFresh refreshes the current token if it is stale. At most one
// refresh is attempted; a failed refresh is returned as is.
func (m *Manager) EnsureFresh(ctx context.Context) error {
	s, err := session.Load(m.dir)
	if err != nil {
		return err
	}

	stale, err := NeedsRefresh(&s.Current, m.now())
	if err != nil {
		return err
	}

	if !stale {
		return nil
	}

	m.logger.Info("access token stale, refreshing",
		slog.String("tenant", s.Current.TenantID),
		slog.Int64("expiry", s.Current.Expiry()),
	)

	if m.OnRefresh != nil {
		m.OnRefresh()
	}

	_, err = m.Refresh(ctx)

	return err
}

// AccessToken returns a valid access token for the current tenant,
// refreshing it first when stale.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	if err := m.EnsureFresh(ctx); err != nil {
		return "", err
	}

	s, err := session.Load(m.dir)
	if err != nil {
		return "", err
	}

	if s.Current.AccessToken == "" {
		return "", ErrNoAccessToken
	}

	return s.Current.AccessToken, nil
}

// Create runs the password grant for the current profile's username and API
// keys and stores the issued token.
func (m *Manager) Create(ctx context.Context, prompter PasswordPrompter) (*session.Profile, error) {
	s, err := session.Load(m.dir)
	if err != nil {
		return nil, err
	}

	cfg, err := m.oauthConfig(&s.Current)
	if err != nil {
		return nil, err
	}

	password, err := prompter.Password("API password: ")
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}

	m.logger.Info("requesting token",
		slog.String("grant", "password"),
		slog.String("tenant", s.Current.TenantID),
		slog.String("username", s.Current.Username),
	)

	tok, err := cfg.PasswordCredentialsToken(m.clientContext(ctx), s.Current.Username, password)
	if err != nil {
		return nil, m.classify(ctx, err, cfg.Endpoint.TokenURL)
	}

	return m.store(s, tok)
}

// Refresh runs the refresh grant with the stored refresh token and stores the
// issued token.
func (m *Manager) Refresh(ctx context.Context) (*session.Profile, error) {
	s, err := session.Load(m.dir)
	if err != nil {
		return nil, err
	}

	cfg, err := m.oauthConfig(&s.Current)
	if err != nil {
		return nil, err
	}

	if s.Current.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	m.logger.Info("requesting token",
		slog.String("grant", "refresh_token"),
		slog.String("tenant", s.Current.TenantID),
	)

	// Without an access token the source always hits the endpoint.
	src := cfg.TokenSource(m.clientContext(ctx), &oauth2.Token{RefreshToken: s.Current.RefreshToken})

	tok, err := src.Token()
	if err != nil {
		return nil, m.classify(ctx, err, cfg.Endpoint.TokenURL)
	}

	return m.store(s, tok)
}

func (m *Manager) oauthConfig(p *session.Profile) (*oauth2.Config, error) {
	tokenURL := p.BaseURL + m.endpoint
	if _, err := agave.ValidateURL(tokenURL); err != nil {
		return nil, err
	}

	return &oauth2.Config{
		ClientID:     p.APIKey,
		ClientSecret: p.APISecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
		Scopes: []string{Scope},
	}, nil
}

// clientContext carries the HTTP client oauth2 uses for token requests. Its
// transport adds the scope to refresh grants, which oauth2 sends without one.
func (m *Manager) clientContext(ctx context.Context) context.Context {
	client := *m.httpClient
	client.Transport = &refreshScopeTransport{base: m.httpClient.Transport, scope: Scope}

	return context.WithValue(ctx, oauth2.HTTPClient, &client)
}

// refreshScopeTransport sets scope on form-encoded refresh_token grants that
// lack one. Other requests pass through untouched.
type refreshScopeTransport struct {
	base  http.RoundTripper
	scope string
}

func (t *refreshScopeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	if req.Method != http.MethodPost || req.Body == nil ||
		!strings.HasPrefix(req.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		return base.RoundTrip(req)
	}

	raw, err := io.ReadAll(req.Body)
	req.Body.Close()

	if err != nil {
		return nil, fmt.Errorf("reading token request body: %w", err)
	}

	if form, err := url.ParseQuery(string(raw)); err == nil &&
		form.Get("grant_type") == "refresh_token" && form.Get("scope") == "" {
		form.Set("scope", t.scope)
		raw = []byte(form.Encode())
	}

	out := req.Clone(req.Context())
	out.Body = io.NopCloser(bytes.NewReader(raw))
	out.ContentLength = int64(len(raw))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(raw)), nil
	}

	return base.RoundTrip(out)
}

// classify maps token endpoint failures onto the agave error kinds.
func (m *Manager) classify(ctx context.Context, err error, tokenURL string) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return &agave.ResponseError{
			StatusCode: re.Response.StatusCode,
			Method:     http.MethodPost,
			URL:        tokenURL,
			Body:       string(re.Body),
		}
	}

	if ctx.Err() != nil {
		return fmt.Errorf("auth: token request canceled: %w", ctx.Err())
	}

	return fmt.Errorf("%w: token request to %s: %w", agave.ErrTransport, tokenURL, err)
}

// store writes tok into the current profile and saves the store.
func (m *Manager) store(s *session.Store, tok *oauth2.Token) (*session.Profile, error) {
	now := m.now()

	s.Current.SetToken(tok.AccessToken, tok.RefreshToken, expiresIn(tok, now), now)

	if err := s.Save(m.dir); err != nil {
		return nil, err
	}

	m.logger.Info("token stored",
		slog.String("tenant", s.Current.TenantID),
		slog.String("expires_at", s.Current.ExpiresAt),
	)

	return &s.Current, nil
}

// expiresIn returns the server-reported token lifetime in seconds.
func expiresIn(tok *oauth2.Token, now time.Time) int64 {
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return int64(math.Round(v))
	case int64:
		return v
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}

	if tok.ExpiresIn > 0 {
		return tok.ExpiresIn
	}

	if !tok.Expiry.IsZero() {
		return int64(math.Round(tok.Expiry.Sub(now).Seconds()))
	}

	return 0
}
