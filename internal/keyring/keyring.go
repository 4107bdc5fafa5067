// Package keyring keeps the credential master key in the OS keychain, for
// hosts that do not receive it through the environment.
package keyring

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	zkr "github.com/zalando/go-keyring"
)

const (
	serviceName = "pregen"
	accountName = "credential-master-key"

	// DisableEnv turns the keychain off on headless hosts (CI, containers).
	DisableEnv = "PREGEN_KEYRING_DISABLED"
)

// ErrNotFound is returned (wrapped) by Get when no key has been stored yet.
var ErrNotFound = zkr.ErrNotFound

// Get retrieves the master key.
func Get() ([]byte, error) {
	hexKey, err := zkr.Get(serviceName, accountName)
	if err != nil {
		return nil, fmt.Errorf("keychain get: %w", err)
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("keychain master key is not hex: %w", err)
	}
	return key, nil
}

// Set stores the master key, replacing any previous one.
func Set(key []byte) error {
	if err := zkr.Set(serviceName, accountName, hex.EncodeToString(key)); err != nil {
		return fmt.Errorf("keychain set: %w", err)
	}
	return nil
}

// Delete removes the master key.
func Delete() error {
	return zkr.Delete(serviceName, accountName)
}

// MasterKey returns the stored master key of size bytes, generating and
// storing a random one on first use. created reports whether that happened.
// A stored key of another size is an error; it is never replaced.
func MasterKey(size int) (key []byte, created bool, err error) {
	key, err = Get()
	switch {
	case err == nil:
		if len(key) != size {
			return nil, false, fmt.Errorf("keychain master key has %d bytes, want %d", len(key), size)
		}
		return key, false, nil
	case !errors.Is(err, ErrNotFound):
		return nil, false, err
	}

	key = make([]byte, size)
	if _, err := rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("generate master key: %w", err)
	}
	if err := Set(key); err != nil {
		return nil, false, err
	}
	return key, true, nil
}

// Available reports whether the OS keychain can be used. It is false when
// DisableEnv is "1"; otherwise the keychain is checked with a write, read
// and delete.
func Available() bool {
	if os.Getenv(DisableEnv) == "1" {
		return false
	}
	const checkService, checkAccount = "pregen-keyring-check", "check"
	if err := zkr.Set(checkService, checkAccount, "ok"); err != nil {
		return false
	}
	if _, err := zkr.Get(checkService, checkAccount); err != nil {
		return false
	}
	_ = zkr.Delete(checkService, checkAccount)
	return true
}
