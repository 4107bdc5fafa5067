package db

import "database/sql"

type Provider struct {
	ID                string
	Kind              string
	DisplayName       string
	IsActive          int64
	BaseUrl           string
	Model             string
	MaxTextLength     int64
	RequestsPerSecond float64
	CreatedAt         int64
	UpdatedAt         int64
}

type ApiCredential struct {
	ID              string
	ProviderID      string
	EncryptedSecret string
	Status          string
	CreatedAt       int64
}

type Voice struct {
	ID         string
	ProviderID string
	Voice      string
	Language   string
	IsActive   int64
	CreatedAt  int64
}

type TextItem struct {
	ID        string
	Language  string
	Text      string
	VoiceID   sql.NullString
	CreatedAt int64
}

type AudioFile struct {
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
