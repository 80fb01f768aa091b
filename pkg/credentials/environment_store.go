package credentials

import (
	"os"
	"time"
)

// Environment variables read by EnvironmentStore
var envVars = map[Provider]string{
	ProviderGraph:    "FRIENDGEO_GRAPH_API_KEY",
	ProviderGeocoder: "FRIENDGEO_GEOCODER_KEY",
}

// EnvironmentStore reads keys from the environment. It is read only.
type EnvironmentStore struct{}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) Name() string { return "environment" }

func (e *EnvironmentStore) Store(*Credential) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Retrieve(p Provider) (*Credential, error) {
	v := os.Getenv(envVars[p])
	if v == "" {
		return nil, ErrCredentialNotFound
	}
	return &Credential{Provider: p, Key: v, LastModified: time.Now().UTC()}, nil
}

func (e *EnvironmentStore) List() ([]*Credential, error) {
	var out []*Credential
	for _, p := range Providers {
		if c, err := e.Retrieve(p); err == nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func (e *EnvironmentStore) Delete(Provider) error {
	return ErrStoreUnavailable
}

// EnvVar returns the variable EnvironmentStore reads for p
func EnvVar(p Provider) string {
	return envVars[p]
}
