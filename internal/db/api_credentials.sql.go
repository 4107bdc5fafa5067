// source: api_credentials.sql

package db

import "context"

const createApiCredential = `-- name: CreateApiCredential :exec
INSERT INTO api_credentials (id, provider_id, encrypted_secret, status, created_at)
VALUES (?, ?, ?, 'active', ?)
`

type CreateApiCredentialParams struct {
	ID              string
	ProviderID      string
	EncryptedSecret string
	CreatedAt       int64
}

func (q *Queries) CreateApiCredential(ctx context.Context, arg CreateApiCredentialParams) error {
	_, err := q.db.ExecContext(ctx, createApiCredential,
		arg.ID,
		arg.ProviderID,
		arg.EncryptedSecret,
		arg.CreatedAt,
	)
	return err
}

const getLatestActiveCredential = `-- name: GetLatestActiveCredential :one
SELECT id, provider_id, encrypted_secret, status, created_at FROM api_credentials
WHERE provider_id = ? AND status = 'active'
ORDER BY created_at DESC, id DESC
LIMIT 1
`

func (q *Queries) GetLatestActiveCredential(ctx context.Context, providerID string) (ApiCredential, error) {
	row := q.db.QueryRowContext(ctx, getLatestActiveCredential, providerID)
	var i ApiCredential
	err := row.Scan(
		&i.ID,
		&i.ProviderID,
		&i.EncryptedSecret,
		&i.Status,
		&i.CreatedAt,
	)
	return i, err
}

const listApiCredentials = `-- name: ListApiCredentials :many
SELECT id, provider_id, encrypted_secret, status, created_at FROM api_credentials ORDER BY provider_id, created_at
`

func (q *Queries) ListApiCredentials(ctx context.Context) ([]ApiCredential, error) {
	rows, err := q.db.QueryContext(ctx, listApiCredentials)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ApiCredential
	for rows.Next() {
		var i ApiCredential
		if err := rows.Scan(
			&i.ID,
			&i.ProviderID,
			&i.EncryptedSecret,
			&i.Status,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateApiCredentialSecret = `-- name: UpdateApiCredentialSecret :exec
UPDATE api_credentials SET encrypted_secret = ? WHERE id = ?
`

type UpdateApiCredentialSecretParams struct {
	EncryptedSecret string
	ID              string
}

func (q *Queries) UpdateApiCredentialSecret(ctx context.Context, arg UpdateApiCredentialSecretParams) error {
	_, err := q.db.ExecContext(ctx, updateApiCredentialSecret, arg.EncryptedSecret, arg.ID)
	return err
}

const setApiCredentialStatus = `-- name: SetApiCredentialStatus :exec
UPDATE api_credentials SET status = ? WHERE id = ?
`

type SetApiCredentialStatusParams struct {
	Status string
	ID     string
}

func (q *Queries) SetApiCredentialStatus(ctx context.Context, arg SetApiCredentialStatusParams) error {
	_, err := q.db.ExecContext(ctx, setApiCredentialStatus, arg.Status, arg.ID)
	return err
}
