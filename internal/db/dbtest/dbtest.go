// Package dbtest opens throwaway migrated SQLite databases and seeds them
// for package tests.
package dbtest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ttsblind/pregen/internal/db"
	"github.com/ttsblind/pregen/internal/db/migrations"
)

// New returns a Store backed by a fresh database file in t.TempDir().
func New(t testing.TB) *db.Store {
	t.Helper()
	migrations.QuietMode = true
	store, err := db.NewSQLite(filepath.Join(t.TempDir(), "pregen.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// Provider inserts an active provider of the given kind.
func Provider(t testing.TB, s *db.Store, id, kind string) {
	t.Helper()
	require.NoError(t, s.UpsertProvider(context.Background(), db.UpsertProviderParams{
		ID:          id,
		Kind:        kind,
		DisplayName: id,
		IsActive:    1,
	}))
}

// Voice inserts an active voice.
func Voice(t testing.TB, s *db.Store, id, providerID, voice, language string, createdAt int64) {
	t.Helper()
	require.NoError(t, s.CreateVoice(context.Background(), db.CreateVoiceParams{
		ID:         id,
		ProviderID: providerID,
		Voice:      voice,
		Language:   language,
		IsActive:   1,
		CreatedAt:  createdAt,
	}))
}

// TextItem inserts a text item; pinnedVoice may be empty.
func TextItem(t testing.TB, s *db.Store, id, language, text, pinnedVoice string, createdAt int64) {
	t.Helper()
	require.NoError(t, s.CreateTextItem(context.Background(), db.CreateTextItemParams{
		ID:        id,
		Language:  language,
		Text:      text,
		VoiceID:   sql.NullString{String: pinnedVoice, Valid: pinnedVoice != ""},
		CreatedAt: createdAt,
	}))
}

// Credential inserts an active credential with an already-encoded secret.
func Credential(t testing.TB, s *db.Store, id, providerID, encrypted string, createdAt int64) {
	t.Helper()
	require.NoError(t, s.CreateApiCredential(context.Background(), db.CreateApiCredentialParams{
		ID:              id,
		ProviderID:      providerID,
		EncryptedSecret: encrypted,
		CreatedAt:       createdAt,
	}))
}
