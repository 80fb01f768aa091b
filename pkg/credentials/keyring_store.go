package credentials

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "friendgeo"

// KeyringStore keeps keys in the system keychain
type KeyringStore struct{}

// NewKeyringStore probes the keychain and fails when none is reachable
func NewKeyringStore() (*KeyringStore, error) {
	probe := "availability_probe"
	if err := keyring.Set(keyringService, probe, "ok"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, probe)
	return &KeyringStore{}, nil
}

func (k *KeyringStore) Name() string { return "keyring" }

func (k *KeyringStore) Store(cred *Credential) error {
	if cred == nil || cred.Key == "" {
		return ErrInvalidCredential
	}
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}
	if err := keyring.Set(keyringService, string(cred.Provider), string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

func (k *KeyringStore) Retrieve(p Provider) (*Credential, error) {
	data, err := keyring.Get(keyringService, string(p))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}
	var cred Credential
	if err := json.Unmarshal([]byte(data), &cred); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
	}
	return &cred, nil
}

// List probes each known provider; keychains cannot enumerate a service
func (k *KeyringStore) List() ([]*Credential, error) {
	var out []*Credential
	for _, p := range Providers {
		if c, err := k.Retrieve(p); err == nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func (k *KeyringStore) Delete(p Provider) error {
	if err := keyring.Delete(keyringService, string(p)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrCredentialNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}
