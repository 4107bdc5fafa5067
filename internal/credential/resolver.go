package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ttsblind/pregen/internal/db"
)

// KindUnavailable is the reported kind for UnavailableError.
const KindUnavailable = "credential_unavailable"

// ErrNoActiveCredential means the provider has no credential with status active.
var ErrNoActiveCredential = errors.New("no active credential")

// UnavailableError reports that no usable credential exists for a provider.
// It is never retried within a run.
type UnavailableError struct {
	ProviderID string
	Err        error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("credential unavailable for provider %s: %v", e.ProviderID, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Credential is a resolved, decrypted credential. It lives only as long as
// the call that needed it.
type Credential struct {
	ID         string
	ProviderID string
	Secret     Secret
}

// Store is the read side of api_credentials the resolver needs.
type Store interface {
	GetLatestActiveCredential(ctx context.Context, providerID string) (db.ApiCredential, error)
}

// Resolver looks up and decrypts the current credential for a provider.
// Nothing is cached between calls.
type Resolver struct {
	store  Store
	cipher *Cipher
}

func NewResolver(store Store, cipher *Cipher) *Resolver {
	return &Resolver{store: store, cipher: cipher}
}

// Resolve returns the most recently created active credential for providerID.
func (r *Resolver) Resolve(ctx context.Context, providerID string) (*Credential, error) {
	row, err := r.store.GetLatestActiveCredential(ctx, providerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &UnavailableError{ProviderID: providerID, Err: ErrNoActiveCredential}
	}
	if err != nil {
		return nil, &UnavailableError{ProviderID: providerID, Err: fmt.Errorf("lookup: %w", err)}
	}

	plain, err := r.cipher.Decrypt(row.EncryptedSecret)
	if err != nil {
		return nil, &UnavailableError{ProviderID: providerID, Err: fmt.Errorf("credential %s: %w", row.ID, err)}
	}
	if plain == "" {
		return nil, &UnavailableError{ProviderID: providerID, Err: fmt.Errorf("credential %s: empty secret", row.ID)}
	}
	return &Credential{ID: row.ID, ProviderID: providerID, Secret: Secret(plain)}, nil
}
