package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"friendgeo/pkg/config"
)

// Provider names the external service a key belongs to
type Provider string

const (
	ProviderGraph    Provider = "graph"
	ProviderGeocoder Provider = "geocoder"
)

// Providers lists every provider that takes a key
var Providers = []Provider{ProviderGraph, ProviderGeocoder}

// ParseProvider validates an operator-supplied provider name
func ParseProvider(s string) (Provider, error) {
	for _, p := range Providers {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q (want graph or geocoder)", s)
}

// Credential is one provider API key
type Credential struct {
	Provider     Provider  `json:"provider"`
	Key          string    `json:"key"`
	LastModified time.Time `json:"last_modified"`
}

// Store is a backend that can hold credentials
type Store interface {
	Name() string
	Store(cred *Credential) error
	Retrieve(p Provider) (*Credential, error)
	List() ([]*Credential, error)
	Delete(p Provider) error
}

// Manager tries its stores in order: the system keyring, an encrypted file,
// then the environment.
type Manager struct {
	stores []Store
}

// NewManager builds the default store chain rooted at the user config directory
func NewManager() (*Manager, error) {
	var stores []Store

	if ks, err := NewKeyringStore(); err == nil {
		stores = append(stores, ks)
	}

	dir, err := configDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	fs, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"), dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, fs, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores uses exactly the given stores, in order
func NewManagerWithStores(stores ...Store) *Manager {
	return &Manager{stores: stores}
}

// Store saves cred in the first store that accepts it and reports which one
func (m *Manager) Store(cred *Credential) (string, error) {
	if cred == nil || cred.Key == "" {
		return "", ErrInvalidCredential
	}
	if _, err := ParseProvider(string(cred.Provider)); err != nil {
		return "", err
	}
	cred.LastModified = time.Now().UTC()

	var lastErr error
	for _, s := range m.stores {
		if err := s.Store(cred); err != nil {
			lastErr = err
			continue
		}
		return s.Name(), nil
	}
	if lastErr != nil {
		return "", fmt.Errorf("failed to store credential: %w", lastErr)
	}
	return "", ErrStoreUnavailable
}

// Retrieve returns the key for p from the first store that has one
func (m *Manager) Retrieve(p Provider) (*Credential, error) {
	for _, s := range m.stores {
		if cred, err := s.Retrieve(p); err == nil && cred != nil {
			return cred, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCredentialNotFound, p)
}

// Listed pairs a credential with the store that holds it
type Listed struct {
	Credential *Credential
	Store      string
}

// List returns the effective credential per provider, sorted by provider
func (m *Manager) List() []Listed {
	seen := make(map[Provider]Listed)
	for _, s := range m.stores {
		creds, err := s.List()
		if err != nil {
			continue
		}
		for _, c := range creds {
			if _, ok := seen[c.Provider]; !ok {
				seen[c.Provider] = Listed{Credential: c, Store: s.Name()}
			}
		}
	}
	out := make([]Listed, 0, len(seen))
	for _, l := range seen {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Credential.Provider < out[j].Credential.Provider })
	return out
}

// Delete removes p from every writable store
func (m *Manager) Delete(p Provider) error {
	var deleted bool
	var lastErr error
	for _, s := range m.stores {
		if err := s.Delete(p); err == nil {
			deleted = true
		} else if !errors.Is(err, ErrCredentialNotFound) && !errors.Is(err, ErrStoreUnavailable) {
			lastErr = err
		}
	}
	if deleted {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to delete credential: %w", lastErr)
	}
	return fmt.Errorf("%w: %s", ErrCredentialNotFound, p)
}

// Apply fills empty provider keys in cfg. Keys already set from the
// environment or flags win.
func (m *Manager) Apply(cfg *config.Config) {
	if cfg.GraphAPI.APIKey == "" {
		if c, err := m.Retrieve(ProviderGraph); err == nil {
			cfg.GraphAPI.APIKey = c.Key
		}
	}
	if cfg.Geocoder.APIKey == "" {
		if c, err := m.Retrieve(ProviderGeocoder); err == nil {
			cfg.Geocoder.APIKey = c.Key
		}
	}
}

// Mask hides all but the ends of a key
func Mask(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

func configDir() (string, error) {
	var dir string
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, "Library", "Application Support", "friendgeo")
	case "windows":
		dir = filepath.Join(os.Getenv("APPDATA"), "friendgeo")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			dir = filepath.Join(xdg, "friendgeo")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dir = filepath.Join(home, ".config", "friendgeo")
		}
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

var (
	ErrCredentialNotFound = errors.New("credential not found")
	ErrInvalidCredential  = errors.New("invalid credential")
	ErrStoreUnavailable   = errors.New("credential store unavailable")
)
