package unbxd

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingCredentials is returned when no API key or site key is configured for a store
var ErrMissingCredentials = errors.New("missing Unbxd credentials")

// Credentials authenticate calls for one store scope
type Credentials struct {
	APIKey  string
	SiteKey string
}

// Complete reports whether both keys are set
func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.SiteKey) != ""
}

// CredentialResolver returns the credentials to use for a store
type CredentialResolver interface {
	Resolve(storeID string) (Credentials, error)
}

// StaticCredentials resolves credentials from a fixed default with per-store overrides.
// An override only replaces the keys it sets.
type StaticCredentials struct {
	Default Credentials
	Stores  map[string]Credentials
}

// Resolve implements CredentialResolver
func (s StaticCredentials) Resolve(storeID string) (Credentials, error) {
	creds := s.Default
	if override, ok := s.Stores[storeID]; ok {
		if override.APIKey != "" {
			creds.APIKey = override.APIKey
		}
		if override.SiteKey != "" {
			creds.SiteKey = override.SiteKey
		}
	}
	if !creds.Complete() {
		return Credentials{}, fmt.Errorf("%w for store %s", ErrMissingCredentials, storeID)
	}
	return creds, nil
}
