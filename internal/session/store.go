// Package session manages the local context store: a single agave.json file
// holding every tenant profile the user has initialized and the one that is
// currently active. The file is read-modify-written as a whole by each
// command and is not locked, so concurrent invocations against the same
// directory may lose updates.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/agave-cli/agavecli/internal/tenants"
)

// FileName is the store's name inside the agavedb directory.
const FileName = "agave.json"

// FilePerms restricts the store to owner-only read/write. It holds API
// secrets and refresh tokens.
const FilePerms = 0o600

// DirPerms is used when creating the agavedb directory.
const DirPerms = 0o700

var (
	// ErrConfigMissing is returned when no store exists yet.
	ErrConfigMissing = errors.New("session: no agave context store (run \"tenant init\" first)")

	// ErrUnknownTenant is returned when init names a tenant the registry
	// does not list.
	ErrUnknownTenant = errors.New("session: unknown tenant")
)

// Store is the full persisted document.
type Store struct {
	Current Profile            `json:"current"`
	Tenants map[string]Profile `json:"tenants"`
}

// Path returns the store location inside dir.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Load reads the store from dir. Returns ErrConfigMissing if it does not exist.
func Load(dir string) (*Store, error) {
	path := Path(dir)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s not found", ErrConfigMissing, path)
	}

	if err != nil {
		return nil, fmt.Errorf("session: reading %s: %w", path, err)
	}

	var s Store
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("session: decoding %s: %w", path, err)
	}

	return &s, nil
}

// Save writes agave.json into dir, creating dir when needed. Fields are
// emitted in declaration order, which is alphabetical, with four-space
// indentation so the file diffs cleanly against one written by other Agave
// tools. The document replaces the old file by rename; readers never see a
// half-written store.
func (s *Store) Save(dir string) error {
	data, err := json.MarshalIndent(s, "", "    ")
	if err != nil {
		return fmt.Errorf("session: encoding: %w", err)
	}

	if err := os.MkdirAll(dir, DirPerms); err != nil {
		return fmt.Errorf("session: creating directory %s: %w", dir, err)
	}

	return replaceFile(dir, Path(dir), data)
}

// replaceFile stages data in a hidden file inside dir, restricted to the
// owner because it holds API secrets and tokens, then moves it over target.
// The staging file is removed if any step fails.
func replaceFile(dir, target string, data []byte) (err error) {
	tmp, err := os.CreateTemp(dir, ".agave-*.tmp")
	if err != nil {
		return fmt.Errorf("session: staging %s: %w", target, err)
	}

	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = tmp.Chmod(FilePerms); err != nil {
		return fmt.Errorf("session: restricting %s: %w", tmp.Name(), err)
	}

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("session: writing %s: %w", tmp.Name(), err)
	}

	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("session: flushing %s: %w", tmp.Name(), err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("session: closing %s: %w", tmp.Name(), err)
	}

	if err = os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("session: replacing %s: %w", target, err)
	}

	return nil
}

// Switch makes fresh.TenantID the current tenant. The outgoing profile is
// written back into Tenants first so its credentials survive; a tenant seen
// before gets its stored profile back, an unseen one is seeded with fresh.
// Afterwards Tenants[Current.TenantID] equals Current.
func (s *Store) Switch(fresh Profile) {
	if s.Tenants == nil {
		s.Current = fresh
		s.Tenants = map[string]Profile{fresh.TenantID: fresh}

		return
	}

	s.Tenants[s.Current.TenantID] = s.Current

	if stored, ok := s.Tenants[fresh.TenantID]; ok {
		s.Current = stored
		return
	}

	s.Tenants[fresh.TenantID] = fresh
	s.Current = fresh
}

// TenantLister resolves the tenants visible at a registry URL.
type TenantLister interface {
	List(ctx context.Context, hostURL string) ([]tenants.Tenant, error)
}

// Init switches the store in dir to the tenant with the given code, creating
// the store on first use. The tenant must be listed by the registry at
// hostURL.
func Init(ctx context.Context, registry TenantLister, hostURL, code, dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	list, err := registry.List(ctx, hostURL)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}

	tenant, ok := tenants.Find(list, code)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a tenant in %s", ErrUnknownTenant, code, hostURL)
	}

	s, err := Load(dir)
	if errors.Is(err, ErrConfigMissing) {
		s = &Store{}
	} else if err != nil {
		return nil, err
	}

	if stored, seen := s.Tenants[code]; seen && stored.BaseURL != tenant.BaseURL {
		// Stored credentials are kept; the new URL is not applied.
		logger.Warn("registry reports a different base URL for a stored tenant",
			slog.String("tenant", code),
			slog.String("stored", stored.BaseURL),
			slog.String("registry", tenant.BaseURL),
		)
	}

	s.Switch(NewProfile(tenant.Code, tenant.BaseURL))

	if err := s.Save(dir); err != nil {
		return nil, err
	}

	logger.Info("switched tenant",
		slog.String("tenant", s.Current.TenantID),
		slog.String("base_url", s.Current.BaseURL),
	)

	return s, nil
}

// Update loads the store, applies fn to the current profile, and saves. fn's
// error aborts without writing.
func Update(dir string, fn func(p *Profile) error) (*Store, error) {
	s, err := Load(dir)
	if err != nil {
		return nil, err
	}

	if err := fn(&s.Current); err != nil {
		return nil, err
	}

	if err := s.Save(dir); err != nil {
		return nil, err
	}

	return s, nil
}
