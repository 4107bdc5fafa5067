// source: audio_files.sql

package db

import "context"

const insertAudioFileIfAbsent = `-- name: InsertAudioFileIfAbsent :execrows
INSERT INTO audio_files (id, text_item_id, provider_id, voice_id, voice, language, content_type, size_bytes, storage_backend, storage_key, data, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(text_item_id, provider_id, voice_id) DO NOTHING
`

type InsertAudioFileIfAbsentParams struct {
	ID             string
	TextItemID     string
	ProviderID     string
	VoiceID        string
	Voice          string
	Language       string
	ContentType    string
	SizeBytes      int64
	StorageBackend string
	StorageKey     string
	Data           []byte
	CreatedAt      int64
}

func (q *Queries) InsertAudioFileIfAbsent(ctx context.Context, arg InsertAudioFileIfAbsentParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertAudioFileIfAbsent,
		arg.ID,
		arg.TextItemID,
		arg.ProviderID,
		arg.VoiceID,
		arg.Voice,
		arg.Language,
		arg.ContentType,
		arg.SizeBytes,
		arg.StorageBackend,
		arg.StorageKey,
		arg.Data,
		arg.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getAudioFile = `-- name: GetAudioFile :one
SELECT id, text_item_id, provider_id, voice_id, voice, language, content_type, size_bytes, storage_backend, storage_key, data, created_at FROM audio_files WHERE id = ?
`

func (q *Queries) GetAudioFile(ctx context.Context, id string) (AudioFile, error) {
	row := q.db.QueryRowContext(ctx, getAudioFile, id)
	var i AudioFile
	err := row.Scan(
		&i.ID,
		&i.TextItemID,
		&i.ProviderID,
		&i.VoiceID,
		&i.Voice,
		&i.Language,
		&i.ContentType,
		&i.SizeBytes,
		&i.StorageBackend,
		&i.StorageKey,
		&i.Data,
		&i.CreatedAt,
	)
	return i, err
}

const countAudioFiles = `-- name: CountAudioFiles :one
SELECT COUNT(*) FROM audio_files
`

func (q *Queries) CountAudioFiles(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countAudioFiles)
	var count int64
	err := row.Scan(&count)
	return count, err
}
