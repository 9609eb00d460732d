package app

import (
	"errors"
	"fmt"

	"github.com/unbxd/feedsync/internal/config"
)

// CheckCredentials verifies that every store of a run resolves to a complete
// API key and site key pair. Feed commands refuse to start otherwise.
func CheckCredentials(cfg *config.Config, stores []string) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	creds, err := cfg.Unbxd.Credentials()
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	var errs []error
	for _, storeID := range stores {
		if _, err := creds.Resolve(storeID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
