// source: voices.sql

package db

import "context"

const createVoice = `-- name: CreateVoice :exec
INSERT INTO voices (id, provider_id, voice, language, is_active, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`

type CreateVoiceParams struct {
	ID         string
	ProviderID string
	Voice      string
	Language   string
	IsActive   int64
	CreatedAt  int64
}

func (q *Queries) CreateVoice(ctx context.Context, arg CreateVoiceParams) error {
	_, err := q.db.ExecContext(ctx, createVoice,
		arg.ID,
		arg.ProviderID,
		arg.Voice,
		arg.Language,
		arg.IsActive,
		arg.CreatedAt,
	)
	return err
}

const listVoicesByProvider = `-- name: ListVoicesByProvider :many
SELECT id, provider_id, voice, language, is_active, created_at FROM voices WHERE provider_id = ? ORDER BY created_at, id
`

func (q *Queries) ListVoicesByProvider(ctx context.Context, providerID string) ([]Voice, error) {
	rows, err := q.db.QueryContext(ctx, listVoicesByProvider, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Voice
	for rows.Next() {
		var i Voice
		if err := rows.Scan(
			&i.ID,
			&i.ProviderID,
			&i.Voice,
			&i.Language,
			&i.IsActive,
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
