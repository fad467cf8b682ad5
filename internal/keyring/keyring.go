// Package keyring keeps client secrets in the system keychain.
package keyring

import (
	"fmt"

	"github.com/zalando/go-keyring"
)

const serviceName = "alkime-consults"

// Secret names a keychain entry.
type Secret string

const (
	// BackendToken authenticates the client against the portal backend.
	BackendToken Secret = "backend-token"
	// StorageSecretKey is the object storage secret access key.
	StorageSecretKey Secret = "storage-secret-key"
)

// AllSecrets returns every known secret for iteration.
func AllSecrets() []Secret {
	return []Secret{BackendToken, StorageSecretKey}
}

// DisplayName is the short name used on the command line.
func (s Secret) DisplayName() string {
	switch s {
	case BackendToken:
		return "backend"
	case StorageSecretKey:
		return "storage"
	default:
		return string(s)
	}
}

func Get(s Secret) (string, error) {
	value, err := keyring.Get(serviceName, string(s))
	if err != nil {
		return "", fmt.Errorf("failed to get %s from keychain: %w", s.DisplayName(), err)
	}

	return value, nil
}

func Set(s Secret, value string) error {
	if err := keyring.Set(serviceName, string(s), value); err != nil {
		return fmt.Errorf("failed to set %s in keychain: %w", s.DisplayName(), err)
	}

	return nil
}

// IsSet checks if a secret exists in the keychain.
func IsSet(s Secret) bool {
	_, err := keyring.Get(serviceName, string(s))

	return err == nil
}

// Lookup returns the secret or "" when it is missing or the keychain is unavailable.
func Lookup(s Secret) string {
	value, err := keyring.Get(serviceName, string(s))
	if err != nil {
		return ""
	}

	return value
}

// SecretFromName maps a display name ("backend", "storage") to its Secret.
func SecretFromName(name string) (Secret, error) {
	for _, s := range AllSecrets() {
		if s.DisplayName() == name {
			return s, nil
		}
	}

	return "", fmt.Errorf("unknown secret: %s", name)
}
