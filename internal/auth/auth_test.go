package auth

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/agave-cli/agavecli/internal/agave"
	"github.com/agave-cli/agavecli/internal/session"
)

const tokenResponse = `{"access_token":"tok2","refresh_token":"tok1","expires_in":14400,"token_type":"bearer","scope":"default"}`

// mockTokenServer answers the token endpoint and records what it received.
type mockTokenServer struct {
	*httptest.Server
	calls    atomic.Int32
	lastForm map[string]string
	status   int
	body     string
}

func newMockTokenServer(t *testing.T) *mockTokenServer {
	t.Helper()

	m := &mockTokenServer{status: http.StatusOK, body: tokenResponse}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.calls.Add(1)

		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/token", r.URL.Path)

		key, secret, ok := r.BasicAuth()
		assert.True(t, ok, "token request must use basic auth")
		assert.Equal(t, "key", key)
		assert.Equal(t, "secret", secret)

		require.NoError(t, r.ParseForm())
		m.lastForm = map[string]string{}
		for k := range r.PostForm {
			m.lastForm[k] = r.PostForm.Get(k)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(m.status)
		_, _ = w.Write([]byte(m.body))
	}))
	t.Cleanup(m.Close)

	return m
}

// writeStore seeds dir with a store whose current profile is p.
func writeStore(t *testing.T, dir string, p session.Profile) {
	t.Helper()

	s := &session.Store{Current: p, Tenants: map[string]session.Profile{p.TenantID: p}}
	require.NoError(t, s.Save(dir))
}

func testProfile(baseURL string) session.Profile {
	return session.Profile{
		TenantID:     "sd2e",
		BaseURL:      baseURL + "/",
		APIKey:       "key",
		APISecret:    "secret",
		Username:     "alice",
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
	}
}

func newTestManager(dir string, now time.Time) *Manager {
	m := NewManager(dir, "token", nil, nil)
	m.now = func() time.Time { return now }

	return m
}

func staticPassword(pw string) PasswordFunc {
	return func(string) (string, error) { return pw, nil }
}

func TestNeedsRefresh(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name      string
		createdAt int64
		expiresIn int64
		want      bool
	}{
		{"fresh token", now.Unix(), 14400, false},
		{"expired exactly", now.Unix() - 14400, 14400, true},
		{"long expired", now.Unix() - 100000, 14400, true},
		{"inside window", now.Unix() - 14400 + 30, 14400, true},
		{"window boundary", now.Unix() - 14400 + 60, 14400, false},
		{"one second inside boundary", now.Unix() - 14400 + 59, 14400, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &session.Profile{
				CreatedAt: session.Seconds(tt.createdAt),
				ExpiresIn: session.Seconds(tt.expiresIn),
			}

			got, err := NeedsRefresh(p, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNeedsRefresh_NoTokenIssued(t *testing.T) {
	_, err := NeedsRefresh(&session.Profile{}, time.Now())
	assert.ErrorIs(t, err, ErrNoTokenIssued)
}

func TestCreate_StoresToken(t *testing.T) {
	srv := newMockTokenServer(t)
	dir := t.TempDir()
	writeStore(t, dir, testProfile(srv.URL))

	m := NewManager(dir, "token", nil, nil)
	p, err := m.Create(context.Background(), staticPassword("hunter2"))
	require.NoError(t, err)

	assert.Equal(t, "password", srv.lastForm["grant_type"])
	assert.Equal(t, "alice", srv.lastForm["username"])
	assert.Equal(t, "hunter2", srv.lastForm["password"])
	assert.Equal(t, Scope, srv.lastForm["scope"])

	assert.Equal(t, "tok2", p.AccessToken)

	s, err := session.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "tok2", s.Current.AccessToken)
	assert.Equal(t, "tok1", s.Current.RefreshToken)
	assert.Equal(t, session.Seconds(14400), s.Current.ExpiresIn)
	assert.InDelta(t, time.Now().Unix(), int64(s.Current.CreatedAt), 2)
	assert.NotEmpty(t, s.Current.ExpiresAt)
}

func TestCreate_BadResponse(t *testing.T) {
	srv := newMockTokenServer(t)
	srv.status = http.StatusUnauthorized
	srv.body = `{"error":"invalid_client","error_description":"bad key"}`

	dir := t.TempDir()
	writeStore(t, dir, testProfile(srv.URL))

	m := NewManager(dir, "token", nil, nil)
	_, err := m.Create(context.Background(), staticPassword("pw"))
	require.Error(t, err)
	assert.ErrorIs(t, err, agave.ErrBadResponse)

	var respErr *agave.ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, http.StatusUnauthorized, respErr.StatusCode)
	assert.Contains(t, respErr.Body, "invalid_client")

	s, err := session.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "old-access", s.Current.AccessToken, "store must be untouched")
}

func TestCreate_MalformedURLBeforePrompt(t *testing.T) {
	dir := t.TempDir()
	p := testProfile("")
	p.BaseURL = "api.sd2e.org/"
	writeStore(t, dir, p)

	prompted := false
	m := NewManager(dir, "token", nil, nil)
	_, err := m.Create(context.Background(), PasswordFunc(func(string) (string, error) {
		prompted = true
		return "pw", nil
	}))

	require.Error(t, err)
	assert.ErrorIs(t, err, agave.ErrTransport)
	assert.False(t, prompted)
}

func TestCreate_PromptError(t *testing.T) {
	srv := newMockTokenServer(t)
	dir := t.TempDir()
	writeStore(t, dir, testProfile(srv.URL))

	m := NewManager(dir, "token", nil, nil)
	_, err := m.Create(context.Background(), PasswordFunc(func(string) (string, error) {
		return "", errors.New("no tty")
	}))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no tty")
	assert.Zero(t, srv.calls.Load())
}

func TestCreate_ConfigMissing(t *testing.T) {
	m := NewManager(t.TempDir(), "token", nil, nil)
	_, err := m.Create(context.Background(), staticPassword("pw"))
	assert.ErrorIs(t, err, session.ErrConfigMissing)
}

func TestRefresh_StoresToken(t *testing.T) {
	srv := newMockTokenServer(t)
	dir := t.TempDir()
	writeStore(t, dir, testProfile(srv.URL))

	now := time.Unix(1_700_000_000, 0)
	p, err := newTestManager(dir, now).Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "refresh_token", srv.lastForm["grant_type"])
	assert.Equal(t, "old-refresh", srv.lastForm["refresh_token"])
	assert.Equal(t, Scope, srv.lastForm["scope"])
	assert.Equal(t, "tok2", p.AccessToken)
	assert.Equal(t, "tok1", p.RefreshToken)
	assert.Equal(t, session.Seconds(now.Unix()), p.CreatedAt)
	assert.Equal(t, now.Unix()+14400, p.Expiry())
}

func TestRefresh_NoRefreshToken(t *testing.T) {
	srv := newMockTokenServer(t)
	dir := t.TempDir()
	p := testProfile(srv.URL)
	p.RefreshToken = ""
	writeStore(t, dir, p)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := NewManager(dir, "token", nil, logger).Refresh(context.Background())
	assert.ErrorIs(t, err, ErrNoRefreshToken)
	assert.Zero(t, srv.calls.Load())
	assert.NotContains(t, logs.String(), "requesting token")
}

func TestRefresh_BadResponseNoFallback(t *testing.T) {
	srv := newMockTokenServer(t)
	srv.status = http.StatusBadRequest
	srv.body = `{"error":"invalid_grant"}`

	dir := t.TempDir()
	writeStore(t, dir, testProfile(srv.URL))

	_, err := NewManager(dir, "token", nil, nil).Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, agave.ErrBadResponse)
	assert.Equal(t, int32(1), srv.calls.Load())
}

func TestAccessToken_FreshTokenNoRefresh(t *testing.T) {
	srv := newMockTokenServer(t)
	dir := t.TempDir()
	now := time.Unix(1_700_000_000, 0)

	p := testProfile(srv.URL)
	p.CreatedAt = session.Seconds(now.Unix())
	p.ExpiresIn = 14400
	writeStore(t, dir, p)

	tok, err := newTestManager(dir, now).AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "old-access", tok)
	assert.Zero(t, srv.calls.Load())
}

func TestAccessToken_ExpiredTokenRefreshes(t *testing.T) {
	srv := newMockTokenServer(t)
	dir := t.TempDir()
	now := time.Unix(1_700_000_000, 0)

	p := testProfile(srv.URL)
	p.CreatedAt = session.Seconds(now.Unix() - 14400)
	p.ExpiresIn = 14400
	writeStore(t, dir, p)

	m := newTestManager(dir, now)
	notified := false
	m.OnRefresh = func() { notified = true }

	tok, err := m.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok2", tok)
	assert.Equal(t, int32(1), srv.calls.Load())
	assert.True(t, notified)
	assert.Equal(t, "refresh_token", srv.lastForm["grant_type"])
	assert.Equal(t, Scope, srv.lastForm["scope"])
}

func TestAccessToken_NoTokenIssued(t *testing.T) {
	dir := t.TempDir()
	writeStore(t, dir, session.NewProfile("sd2e", "https://api.sd2e.org/"))

	_, err := NewManager(dir, "token", nil, nil).AccessToken(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoTokenIssued)
}

func TestAccessToken_NoAccessToken(t *testing.T) {
	dir := t.TempDir()
	now := time.Unix(1_700_000_000, 0)

	p := session.NewProfile("sd2e", "https://api.sd2e.org/")
	p.CreatedAt = session.Seconds(now.Unix())
	p.ExpiresIn = 14400
	writeStore(t, dir, p)

	_, err := newTestManager(dir, now).AccessToken(context.Background())
	assert.ErrorIs(t, err, ErrNoAccessToken)
}

func TestExpiresIn(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name  string
		extra map[string]any
		want  int64
	}{
		{"number", map[string]any{"expires_in": float64(14400)}, 14400},
		{"string", map[string]any{"expires_in": "3600"}, 3600},
		{"missing", map[string]any{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := (&oauth2.Token{AccessToken: "a"}).WithExtra(tt.extra)
			assert.Equal(t, tt.want, expiresIn(tok, now))
		})
	}
}

func TestExpiresIn_FallsBackToExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tok := &oauth2.Token{AccessToken: "a", Expiry: now.Add(2 * time.Hour)}

	assert.Equal(t, int64(7200), expiresIn(tok, now))
}

// recordingTransport remembers the requests it forwards.
type recordingTransport struct {
	base  http.RoundTripper
	calls int
}

func (r *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r.calls++

	return r.base.RoundTrip(req)
}

func TestRefresh_UsesConfiguredTransport(t *testing.T) {
	srv := newMockTokenServer(t)
	dir := t.TempDir()
	writeStore(t, dir, testProfile(srv.URL))

	rt := &recordingTransport{base: http.DefaultTransport}
	m := NewManager(dir, "token", &http.Client{Transport: rt}, nil)

	_, err := m.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rt.calls)
	assert.Equal(t, Scope, srv.lastForm["scope"])
}

func TestRefreshScopeTransport(t *testing.T) {
	var got url.Values

	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got = r.PostForm
	}))
	defer srv.Close()

	client := &http.Client{Transport: &refreshScopeTransport{scope: Scope}}

	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{"refresh without scope", url.Values{"grant_type": {"refresh_token"}, "refresh_token": {"r"}}, Scope},
		{"refresh keeps explicit scope", url.Values{"grant_type": {"refresh_token"}, "scope": {"other"}}, "other"},
		{"password grant untouched", url.Values{"grant_type": {"password"}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := client.PostForm(srv.URL, tt.form)
			require.NoError(t, err)
			resp.Body.Close()

			assert.Equal(t, tt.want, got.Get("scope"))
			assert.Equal(t, tt.form.Get("grant_type"), got.Get("grant_type"))
		})
	}
}
