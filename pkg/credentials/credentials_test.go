package credentials

import (
	"os"
	"path/filepath"
	"testing"

	"friendgeo/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func newFileStore(t *testing.T) *EncryptedFileStore {
	t.Helper()
	t.Setenv(passphraseEnv, "test-passphrase")
	dir := t.TempDir()
	s, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"), dir)
	require.NoError(t, err)
	return s
}

func TestEncryptedFileStoreRoundTrip(t *testing.T) {
	s := newFileStore(t)

	require.NoError(t, s.Store(&Credential{Provider: ProviderGraph, Key: "graph-key-123456"}))
	require.NoError(t, s.Store(&Credential{Provider: ProviderGeocoder, Key: "geo-key-abcdef"}))

	c, err := s.Retrieve(ProviderGraph)
	require.NoError(t, err)
	assert.Equal(t, "graph-key-123456", c.Key)

	raw, err := os.ReadFile(s.path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "graph-key-123456")

	list, err := s.List()
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, s.Delete(ProviderGraph))
	_, err = s.Retrieve(ProviderGraph)
	assert.ErrorIs(t, err, ErrCredentialNotFound)

	require.NoError(t, s.Delete(ProviderGeocoder))
	_, err = os.Stat(s.path)
	assert.True(t, os.IsNotExist(err), "last delete removes the file")
}

func TestWrongPassphraseFails(t *testing.T) {
	s := newFileStore(t)
	require.NoError(t, s.Store(&Credential{Provider: ProviderGraph, Key: "k"}))

	other := &EncryptedFileStore{path: s.path, passphrase: "something else"}
	_, err := other.Retrieve(ProviderGraph)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCredentialNotFound)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	ks, err := NewKeyringStore()
	require.NoError(t, err)
	require.NoError(t, ks.Store(&Credential{Provider: ProviderGeocoder, Key: "geo"}))

	c, err := ks.Retrieve(ProviderGeocoder)
	require.NoError(t, err)
	assert.Equal(t, "geo", c.Key)

	list, err := ks.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, ks.Delete(ProviderGeocoder))
	assert.ErrorIs(t, ks.Delete(ProviderGeocoder), ErrCredentialNotFound)
}

func TestManagerChain(t *testing.T) {
	keyring.MockInit()
	ks, err := NewKeyringStore()
	require.NoError(t, err)
	fs := newFileStore(t)
	t.Setenv("FRIENDGEO_GEOCODER_KEY", "from-env")
	t.Setenv("FRIENDGEO_GRAPH_API_KEY", "")

	m := NewManagerWithStores(ks, fs, NewEnvironmentStore())

	where, err := m.Store(&Credential{Provider: ProviderGraph, Key: "graph-key"})
	require.NoError(t, err)
	assert.Equal(t, "keyring", where)

	c, err := m.Retrieve(ProviderGeocoder)
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.Key)

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, ProviderGeocoder, list[0].Credential.Provider)
	assert.Equal(t, "environment", list[0].Store)
	assert.Equal(t, "keyring", list[1].Store)

	cfg := config.DefaultConfig()
	cfg.Geocoder.APIKey = "explicit"
	m.Apply(cfg)
	assert.Equal(t, "graph-key", cfg.GraphAPI.APIKey)
	assert.Equal(t, "explicit", cfg.Geocoder.APIKey)

	require.NoError(t, m.Delete(ProviderGraph))
	_, err = m.Retrieve(ProviderGraph)
	assert.ErrorIs(t, err, ErrCredentialNotFound)
	assert.ErrorIs(t, m.Delete(ProviderGraph), ErrCredentialNotFound)
}

func TestStoreRejectsBadInput(t *testing.T) {
	m := NewManagerWithStores(newFileStore(t))
	_, err := m.Store(&Credential{Provider: ProviderGraph})
	assert.ErrorIs(t, err, ErrInvalidCredential)
	_, err = m.Store(&Credential{Provider: "maps", Key: "k"})
	assert.Error(t, err)

	_, err = ParseProvider("geocoder")
	assert.NoError(t, err)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "********", Mask("short"))
	assert.Equal(t, "abcd...6789", Mask("abcdef0123456789"))
}
