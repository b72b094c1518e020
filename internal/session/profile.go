package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// ExpiresAtLayout renders expires_at, e.g. "Tue Jul 10 16:28:01 CDT 2018".
const ExpiresAtLayout = "Mon Jan 2 15:04:05 MST 2006"

// Seconds is an integer field that older stores hold as "" before a token has
// ever been issued. It decodes "", null, numbers and numeric strings, and
// encodes zero back as "" so files stay readable by tools that expect it.
type Seconds int64

// MarshalJSON encodes zero as "" and anything else as a JSON number.
func (s Seconds) MarshalJSON() ([]byte, error) {
	if s == 0 {
		return []byte(`""`), nil
	}

	return strconv.AppendInt(nil, int64(s), 10), nil
}

// UnmarshalJSON accepts "", null, a JSON number, or a quoted number.
func (s *Seconds) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	if bytes.Equal(data, []byte("null")) {
		*s = 0
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return fmt.Errorf("session: decoding seconds: %w", err)
		}

		if str == "" {
			*s = 0
			return nil
		}

		data = []byte(str)
	}

	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("session: decoding seconds %q: %w", data, err)
	}

	*s = Seconds(math.Round(f))

	return nil
}

// Profile is the cached state of one tenant: where it lives, the API client
// registered with it, and the most recent token pair. Fields are declared in
// key order so the encoded document is sorted.
type Profile struct {
	AccessToken  string  `json:"access_token"`
	APIKey       string  `json:"apikey"`
	APISecret    string  `json:"apisecret"`
	BaseURL      string  `json:"baseurl"`
	CreatedAt    Seconds `json:"created_at"`
	DevURL       string  `json:"devurl"`
	ExpiresAt    string  `json:"expires_at"`
	ExpiresIn    Seconds `json:"expires_in"`
	RefreshToken string  `json:"refresh_token"`
	TenantID     string  `json:"tenantid"`
	Username     string  `json:"username"`
}

// NewProfile returns a credential-empty profile for a tenant.
func NewProfile(tenantID, baseURL string) Profile {
	return Profile{TenantID: tenantID, BaseURL: baseURL}
}

// Expiry returns created_at + expires_in as a Unix timestamp. Zero means no
// token was ever issued.
func (p Profile) Expiry() int64 {
	return int64(p.CreatedAt) + int64(p.ExpiresIn)
}

// SetToken records a newly issued token pair. created_at becomes now and
// expires_at is recomputed in local time.
func (p *Profile) SetToken(access, refresh string, expiresIn int64, now time.Time) {
	p.AccessToken = access
	p.RefreshToken = refresh
	p.ExpiresIn = Seconds(expiresIn)
	p.CreatedAt = Seconds(now.Unix())
	p.ExpiresAt = time.Unix(p.Expiry(), 0).Local().Format(ExpiresAtLayout)
}

// ClearTokens forgets the token pair and its timestamps. Used when the API
// keys change and the old tokens can no longer be refreshed.
func (p *Profile) ClearTokens() {
	p.AccessToken = ""
	p.RefreshToken = ""
	p.CreatedAt = 0
	p.ExpiresIn = 0
	p.ExpiresAt = ""
}

// ClearKeys forgets the API key and secret.
func (p *Profile) ClearKeys() {
	p.APIKey = ""
	p.APISecret = ""
}
