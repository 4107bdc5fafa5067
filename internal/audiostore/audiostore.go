// Package audiostore persists synthesized audio with insert-if-absent
// semantics keyed by (text item, provider, voice).
package audiostore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/ttsblind/pregen/internal/db"
)

// KindPersistence is the reported kind for PersistenceError.
const KindPersistence = "persistence_error"

// BackendInline stores audio bytes in the audio_files row itself.
const BackendInline = "db"

// ErrNotFound is returned by Open for an unknown audio file.
var ErrNotFound = errors.New("audio file not found")

// PersistenceError reports a failed write to the audio store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist audio: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Blobs holds audio bytes outside the database.
type Blobs interface {
	Backend() string
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Queries is the part of the database the store uses.
type Queries interface {
	InsertAudioFileIfAbsent(ctx context.Context, arg db.InsertAudioFileIfAbsentParams) (int64, error)
	GetAudioFile(ctx context.Context, id string) (db.AudioFile, error)
}

// Record is one synthesized audio result to persist.
type Record struct {
	TextItemID  string
	ProviderID  string
	VoiceID     string
	Voice       string
	Language    string
	ContentType string
	Data        []byte
}

// Result describes the outcome of Save.
type Result struct {
	ID string
	// Duplicate is set when another writer already satisfied the tuple; the
	// new audio was discarded.
	Duplicate bool
}

// File is a stored audio file with its bytes.
type File struct {
	db.AudioFile
	Data []byte
}

// Store writes and reads audio files. A nil Blobs keeps bytes inline.
type Store struct {
	q     Queries
	blobs Blobs
	now   func() time.Time
}

func New(q Queries, blobs Blobs) *Store {
	return &Store{q: q, blobs: blobs, now: time.Now}
}

// Backend names where new audio bytes go.
func (s *Store) Backend() string {
	if s.blobs == nil {
		return BackendInline
	}
	return s.blobs.Backend()
}

// Save stores rec unless audio for its tuple already exists. A lost race is
// reported as Duplicate, not as an error.
func (s *Store) Save(ctx context.Context, rec Record) (Result, error) {
	if len(rec.Data) == 0 {
		return Result{}, &PersistenceError{Op: "validate", Err: errors.New("empty audio")}
	}
	id := uuid.NewString()

	params := db.InsertAudioFileIfAbsentParams{
		ID:             id,
		TextItemID:     rec.TextItemID,
		ProviderID:     rec.ProviderID,
		VoiceID:        rec.VoiceID,
		Voice:          rec.Voice,
		Language:       rec.Language,
		ContentType:    rec.ContentType,
		SizeBytes:      int64(len(rec.Data)),
		StorageBackend: s.Backend(),
		CreatedAt:      s.now().Unix(),
	}

	if s.blobs == nil {
		params.Data = rec.Data
	} else {
		params.StorageKey = blobKey(rec, id)
		if err := s.blobs.Put(ctx, params.StorageKey, rec.Data); err != nil {
			return Result{}, &PersistenceError{Op: "put blob", Err: err}
		}
	}

	n, err := s.q.InsertAudioFileIfAbsent(ctx, params)
	if err != nil {
		s.discardBlob(ctx, params.StorageKey)
		return Result{}, &PersistenceError{Op: "insert", Err: err}
	}
	if n == 0 {
		s.discardBlob(ctx, params.StorageKey)
		return Result{ID: id, Duplicate: true}, nil
	}
	return Result{ID: id}, nil
}

// Open loads an audio file and its bytes.
func (s *Store) Open(ctx context.Context, id string) (*File, error) {
	row, err := s.q.GetAudioFile(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get audio file: %w", err)
	}

	f := &File{AudioFile: row}
	if row.StorageBackend == BackendInline {
		f.Data = row.Data
		return f, nil
	}
	if s.blobs == nil || s.blobs.Backend() != row.StorageBackend {
		return nil, fmt.Errorf("audio file %s is stored in %q, which is not configured", id, row.StorageBackend)
	}
	data, err := s.blobs.Get(ctx, row.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("get blob %s: %w", row.StorageKey, err)
	}
	f.Data = data
	return f, nil
}

func (s *Store) discardBlob(ctx context.Context, key string) {
	if s.blobs == nil || key == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.blobs.Delete(ctx, key); err != nil {
		slog.Warn("failed to delete orphaned audio blob", "key", key, "error", err)
	}
}

func blobKey(rec Record, id string) string {
	return path.Join(rec.ProviderID, rec.VoiceID, rec.TextItemID, id+extension(rec.ContentType))
}

func extension(contentType string) string {
	switch contentType {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/ogg", "audio/opus":
		return ".ogg"
	default:
		return ".bin"
	}
}
