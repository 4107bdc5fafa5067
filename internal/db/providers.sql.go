// source: providers.sql

package db

import "context"

const upsertProvider = `-- name: UpsertProvider :exec
INSERT INTO providers (id, kind, display_name, is_active, base_url, model, max_text_length, requests_per_second, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, unixepoch(), unixepoch())
ON CONFLICT(id) DO UPDATE SET
    kind = excluded.kind,
    display_name = excluded.display_name,
    is_active = excluded.is_active,
    base_url = excluded.base_url,
    model = excluded.model,
    max_text_length = excluded.max_text_length,
    requests_per_second = excluded.requests_per_second,
    updated_at = unixepoch()
`

type UpsertProviderParams struct {
	ID                string
	Kind              string
	DisplayName       string
	IsActive          int64
	BaseUrl           string
	Model             string
	MaxTextLength     int64
	RequestsPerSecond float64
}

func (q *Queries) UpsertProvider(ctx context.Context, arg UpsertProviderParams) error {
	_, err := q.db.ExecContext(ctx, upsertProvider,
		arg.ID,
		arg.Kind,
		arg.DisplayName,
		arg.IsActive,
		arg.BaseUrl,
		arg.Model,
		arg.MaxTextLength,
		arg.RequestsPerSecond,
	)
	return err
}

const getProvider = `-- name: GetProvider :one
SELECT id, kind, display_name, is_active, base_url, model, max_text_length, requests_per_second, created_at, updated_at FROM providers WHERE id = ?
`

func (q *Queries) GetProvider(ctx context.Context, id string) (Provider, error) {
	row := q.db.QueryRowContext(ctx, getProvider, id)
	var i Provider
	err := row.Scan(
		&i.ID,
		&i.Kind,
		&i.DisplayName,
		&i.IsActive,
		&i.BaseUrl,
		&i.Model,
		&i.MaxTextLength,
		&i.RequestsPerSecond,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listActiveProviders = `-- name: ListActiveProviders :many
SELECT id, kind, display_name, is_active, base_url, model, max_text_length, requests_per_second, created_at, updated_at FROM providers WHERE is_active = 1 ORDER BY id
`

func (q *Queries) ListActiveProviders(ctx context.Context) ([]Provider, error) {
	rows, err := q.db.QueryContext(ctx, listActiveProviders)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Provider
	for rows.Next() {
		var i Provider
		if err := rows.Scan(
			&i.ID,
			&i.Kind,
			&i.DisplayName,
			&i.IsActive,
			&i.BaseUrl,
			&i.Model,
			&i.MaxTextLength,
			&i.RequestsPerSecond,
			&i.CreatedAt,
			&i.UpdatedAt,
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
