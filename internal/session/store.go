package session

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Store provides SQLite-backed persistence for the chat state.
// It keeps a small key/value table; the chat state lives under CacheKey.
type Store struct {
	db    *sql.DB
	key   string
	limit int
	now   func() time.Time
}

// NewStore opens the SQLite database at dbPath and creates tables if they don't exist.
// limit caps the number of turns kept on each write.
func NewStore(dbPath string, limit int) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create tables")
	}

	return &Store{db: db, key: CacheKey, limit: limit, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Load implements Cache. A missing or corrupt value yields nil.
func (s *Store) Load() (*CacheState, error) {
	row := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, s.key)

	var value string
	err := row.Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan chat state")
	}

	return decodeState([]byte(value)), nil
}

// Save implements Cache.
func (s *Store) Save(turns []Turn) error {
	now := s.now()
	data, err := encodeState(turns, s.limit, now)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.key, string(data), now,
	)
	if err != nil {
		return errors.Wrap(err, "save chat state")
	}

	return nil
}

// Clear implements Cache.
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, s.key); err != nil {
		return errors.Wrap(err, "clear chat state")
	}
	return nil
}
