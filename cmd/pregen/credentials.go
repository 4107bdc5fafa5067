package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ttsblind/pregen/internal/credential"
	"github.com/ttsblind/pregen/internal/db"
)

func CredentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage provider API credentials",
	}
	cmd.AddCommand(credentialsAddCmd())
	cmd.AddCommand(credentialsEncryptCmd())
	return cmd
}

func credentialsAddCmd() *cobra.Command {
	var providerID, secretEnv string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Store a new active credential for a provider",
		Long: `Encrypts the secret found in the named environment variable and stores it
as the newest active credential of the provider. The secret is never read
from the command line so it stays out of shell history.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv(secretEnv)
			if secret == "" {
				return fmt.Errorf("environment variable %s is empty", secretEnv)
			}
			store, cipher, err := openCredentialStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			if _, err := store.GetProvider(ctx, providerID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return fmt.Errorf("unknown provider %q", providerID)
				}
				return err
			}
			id, err := addCredential(ctx, store, cipher, providerID, secret)
			if err != nil {
				return err
			}
			fmt.Printf("Added credential %s for provider %s\n", id, providerID)
			return nil
		},
	}
	cmd.Flags().StringVar(&providerID, "provider", "", "provider id")
	cmd.Flags().StringVar(&secretEnv, "secret-env", "", "environment variable holding the API key")
	cmd.MarkFlagRequired("provider")
	cmd.MarkFlagRequired("secret-env")
	return cmd
}

func credentialsEncryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt-plaintext",
		Short: "Encrypt any credential still stored in plaintext",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cipher, err := openCredentialStore()
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := credential.Migrate(cmd.Context(), store.GetDB(), cipher)
			if err != nil {
				return err
			}
			fmt.Printf("Encrypted %d credential(s)\n", n)
			return nil
		},
	}
}

// addCredential encrypts secret and inserts it as the provider's newest
// active credential. Version 7 UUIDs keep same-second inserts ordered.
func addCredential(ctx context.Context, store *db.Store, cipher *credential.Cipher, providerID, secret string) (string, error) {
	enc, err := cipher.Encrypt(secret)
	if err != nil {
		return "", err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	err = store.CreateApiCredential(ctx, db.CreateApiCredentialParams{
		ID:              id.String(),
		ProviderID:      providerID,
		EncryptedSecret: enc,
		CreatedAt:       time.Now().Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("insert credential: %w", err)
	}
	return id.String(), nil
}

func openCredentialStore() (*db.Store, *credential.Cipher, error) {
	c := ServerConfig
	key, err := credential.LoadKey(c.Security.EncryptionKey, c.IsKeyringEnabled())
	if err != nil {
		return nil, nil, err
	}
	cipher, err := credential.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}
	store, err := db.NewSQLite(c.Database.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	return store, cipher, nil
}
