package credential

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// Migrate encrypts all plaintext credentials in the database.
// Runs in a single transaction and rolls back entirely on failure.
// Idempotent: skips values that already have the "enc:" prefix.
func Migrate(ctx context.Context, rawDB *sql.DB, c *Cipher) (int, error) {
	tx, err := rawDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("credential migration: begin tx: %w", err)
	}
	defer tx.Rollback()

	n, err := migrateAPICredentials(ctx, tx, c)
	if err != nil {
		return 0, fmt.Errorf("credential migration: api_credentials: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("credential migration: commit: %w", err)
	}

	if n > 0 {
		slog.Info("Credential migration complete", "encrypted", n)
	}
	return n, nil
}

// migrateAPICredentials encrypts plaintext encrypted_secret values in api_credentials.
func migrateAPICredentials(ctx context.Context, tx *sql.Tx, c *Cipher) (int, error) {
	rows, err := tx.QueryContext(ctx, "SELECT id, encrypted_secret FROM api_credentials WHERE encrypted_secret != ''")
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	type row struct {
		id, secret string
	}
	var toUpdate []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.secret); err != nil {
			return 0, err
		}
		if IsEncrypted(r.secret) {
			continue
		}
		toUpdate = append(toUpdate, r)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	rows.Close()

	for _, r := range toUpdate {
		enc, err := c.Encrypt(r.secret)
		if err != nil {
			return 0, fmt.Errorf("encrypt secret for %s: %w", r.id, err)
		}
		if _, err := tx.ExecContext(ctx, "UPDATE api_credentials SET encrypted_secret = ? WHERE id = ?", enc, r.id); err != nil {
			return 0, fmt.Errorf("update api_credential %s: %w", r.id, err)
		}
	}
	return len(toUpdate), nil
}
