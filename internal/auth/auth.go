// Package auth resolves the Rebrickable API key.
// It implements a simple interface with multiple providers following the
// "deep modules" principle - simple interface, provider chain hidden.
package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// EnvVar is the environment variable holding the Rebrickable API key.
const EnvVar = "REBRICKABLE_API_KEY"

// ErrNoKey indicates that no provider could supply an API key.
var ErrNoKey = errors.New("no Rebrickable API key configured")

// KeyProvider defines the interface for obtaining a Rebrickable API key.
// Implementations may use different sources (config files, environment variables, etc).
type KeyProvider interface {
	GetAPIKey() (string, error)
}

// StaticProvider returns a key that was already resolved, typically from the
// config file or a command-line flag.
type StaticProvider struct {
	Key string
}

// GetAPIKey returns the configured key.
// Returns an error if the key is empty.
func (s *StaticProvider) GetAPIKey() (string, error) {
	key := strings.TrimSpace(s.Key)
	if key == "" {
		return "", errors.New("api key not set in config")
	}
	return key, nil
}

// EnvProvider obtains keys from the REBRICKABLE_API_KEY environment variable.
// This is the fallback when no key is configured.
type EnvProvider struct{}

// GetAPIKey reads the REBRICKABLE_API_KEY environment variable.
// Returns an error if the variable is not set or is empty.
func (e *EnvProvider) GetAPIKey() (string, error) {
	key := strings.TrimSpace(os.Getenv(EnvVar))
	if key == "" {
		return "", fmt.Errorf("%s environment variable not set or empty", EnvVar)
	}
	return key, nil
}

// GetAPIKey tries each provider in order and returns the first key found.
// With no providers it uses the configured key, then the environment.
//
// This is the main entry point for key retrieval in the application.
func GetAPIKey(configured string, providers ...KeyProvider) (string, error) {
	if len(providers) == 0 {
		providers = []KeyProvider{&StaticProvider{Key: configured}, &EnvProvider{}}
	}

	var errs []error
	for _, p := range providers {
		key, err := p.GetAPIKey()
		if err == nil {
			return key, nil
		}
		errs = append(errs, err)
	}

	return "", fmt.Errorf(
		"%w (%v).\n"+
			"Please either:\n"+
			"  1. Set api_key in the brickhunt config file, or\n"+
			"  2. Set the %s environment variable (see https://rebrickable.com/api/)",
		ErrNoKey, errors.Join(errs...), EnvVar,
	)
}
