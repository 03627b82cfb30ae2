package daemon

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// Change is one staged mutation: a set of value at path, or an unset.
type Change struct {
	Unset bool
	Path  []string
	Value string
}

// key flattens a config path into the store's primary key.
func key(path []string) string { return strings.Join(path, " ") }

// Store is the daemon's committed configuration state, persisted in SQLite
// so it survives daemon restarts.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the SQLite database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("daemon: open store: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS config (
		path  TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("daemon: init store: %w", err)
	}
	return &Store{db: db}, nil
}

// Get returns the committed value at path, reporting whether it exists.
func (s *Store) Get(path []string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM config WHERE path = ?`, key(path)).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("daemon: get: %w", err)
	}
	return value, true, nil
}

// Apply commits the staged changes in one transaction, in order.
func (s *Store) Apply(changes []Change) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("daemon: apply: %w", err)
	}

	for _, ch := range changes {
		if ch.Unset {
			_, err = tx.Exec(`DELETE FROM config WHERE path = ?`, key(ch.Path))
		} else {
			_, err = tx.Exec(`INSERT INTO config (path, value) VALUES (?, ?)
				ON CONFLICT(path) DO UPDATE SET value = excluded.value`, key(ch.Path), ch.Value)
		}
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("daemon: apply: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("daemon: apply: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
