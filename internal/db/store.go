package db

import "database/sql"

// Store wraps the generated queries together with the owning connection.
// Constructed once per process and passed to every component that needs it.
type Store struct {
	*Queries
	db *sql.DB
}

// NewStore creates a Store from an open connection.
func NewStore(db *sql.DB) *Store {
	return &Store{
		Queries: New(db),
		db:      db,
	}
}

// GetDB returns the underlying database connection for sharing with other components
func (s *Store) GetDB() *sql.DB {
	return s.db
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}
