// source: text_items.sql

package db

import (
	"context"
	"database/sql"
)

const createTextItem = `-- name: CreateTextItem :exec
INSERT INTO text_items (id, language, text, voice_id, created_at)
VALUES (?, ?, ?, ?, ?)
`

type CreateTextItemParams struct {
	ID        string
	Language  string
	Text      string
	VoiceID   sql.NullString
	CreatedAt int64
}

func (q *Queries) CreateTextItem(ctx context.Context, arg CreateTextItemParams) error {
	_, err := q.db.ExecContext(ctx, createTextItem,
		arg.ID,
		arg.Language,
		arg.Text,
		arg.VoiceID,
		arg.CreatedAt,
	)
	return err
}

const getTextItem = `-- name: GetTextItem :one
SELECT id, language, text, voice_id, created_at FROM text_items WHERE id = ?
`

func (q *Queries) GetTextItem(ctx context.Context, id string) (TextItem, error) {
	row := q.db.QueryRowContext(ctx, getTextItem, id)
	var i TextItem
	err := row.Scan(
		&i.ID,
		&i.Language,
		&i.Text,
		&i.VoiceID,
		&i.CreatedAt,
	)
	return i, err
}
