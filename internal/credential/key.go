package credential

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/crypto/hkdf"

	"github.com/ttsblind/pregen/internal/keyring"
)

const hkdfInfo = "pregen credential encryption v1"

// ErrNoMasterKey means neither a configured key nor a usable keychain exists.
var ErrNoMasterKey = errors.New("no credential encryption key configured")

// DeriveKey turns the configured master secret into a 32-byte key.
// A 64-character hex string is used as the raw key; anything else is
// stretched with HKDF-SHA256.
func DeriveKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, ErrNoMasterKey
	}
	if len(secret) == 2*KeySize {
		if raw, err := hex.DecodeString(secret); err == nil {
			return raw, nil
		}
	}
	key := make([]byte, KeySize)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// LoadKey resolves the master key. The configured secret wins; otherwise the
// OS keychain is used when allowed, generating and storing a key on first use.
func LoadKey(configured string, useKeyring bool) ([]byte, error) {
	if configured != "" {
		return DeriveKey(configured)
	}
	if !useKeyring {
		return nil, ErrNoMasterKey
	}
	if !keyring.Available() {
		return nil, fmt.Errorf("%w: OS keychain unavailable", ErrNoMasterKey)
	}

	key, created, err := keyring.MasterKey(KeySize)
	if err != nil {
		return nil, err
	}
	if created {
		slog.Info("Generated credential master key in OS keychain")
	}
	return key, nil
}
