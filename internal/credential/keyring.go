// Package credential stores small secrets in the OS keyring.
package credential

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "mailtrace"

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/mailtrace/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("mailtrace-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// GetOrCreate returns the stored value for key, generating and storing
// a random one on first use. Sessions signed with the secret survive
// restarts this way.
func GetOrCreate(key string) (string, error) {
	value, err := Get(key)
	if err == nil && value != "" {
		return value, nil
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating secret for %q: %w", key, err)
	}
	value = base64.RawURLEncoding.EncodeToString(buf)

	if err := Set(key, value); err != nil {
		return "", err
	}
	return value, nil
}
