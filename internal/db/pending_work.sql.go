// source: pending_work.sql

package db

import "context"

const listPendingWork = `-- name: ListPendingWork :many
SELECT t.id AS text_item_id, t.language, t.text, t.created_at AS text_created_at,
       v.id AS voice_id, v.voice, p.id AS provider_id, p.kind AS provider_kind
FROM text_items t
JOIN voices v ON v.language = t.language AND v.is_active = 1
JOIN providers p ON p.id = v.provider_id AND p.is_active = 1
WHERE (t.voice_id IS NULL OR t.voice_id = v.id)
  AND (?1 = '' OR t.language = ?1)
  AND NOT EXISTS (
    SELECT 1 FROM audio_files a
    WHERE a.text_item_id = t.id AND a.provider_id = p.id AND a.voice_id = v.id
  )
ORDER BY t.created_at, t.id, v.created_at, v.id
LIMIT ?2
`

type ListPendingWorkParams struct {
	Language string
	MaxItems int64
}

type ListPendingWorkRow struct {
	TextItemID    string
	Language      string
	Text          string
	TextCreatedAt int64
	VoiceID       string
	Voice         string
	ProviderID    string
	ProviderKind  string
}

func (q *Queries) ListPendingWork(ctx context.Context, arg ListPendingWorkParams) ([]ListPendingWorkRow, error) {
	rows, err := q.db.QueryContext(ctx, listPendingWork, arg.Language, arg.MaxItems)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListPendingWorkRow
	for rows.Next() {
		var i ListPendingWorkRow
		if err := rows.Scan(
			&i.TextItemID,
			&i.Language,
			&i.Text,
			&i.TextCreatedAt,
			&i.VoiceID,
			&i.Voice,
			&i.ProviderID,
			&i.ProviderKind,
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
