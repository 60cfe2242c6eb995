package cache

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

type SQLiteCache struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLiteCache creates a new cache with the given filename as the db.
// If file name is empty, a new in-memory db is opened.
func NewSQLiteCache(filename string) (*SQLiteCache, error) {
	inMemory := filename == ""
	if inMemory {
		filename = ":memory:"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, err
	}
	if inMemory {
		// every connection would get its own database
		db.SetMaxOpenConns(1)
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cache (
			key TEXT PRIMARY KEY,
			expires INTEGER,
			requested_at INTEGER,
			received_at INTEGER,
			bytes BLOB
		)`,
		"CREATE INDEX IF NOT EXISTS expires_idx ON cache (expires)",
	}
	if !inMemory {
		stmts = append(stmts, "PRAGMA journal_mode=WAL")
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &SQLiteCache{
		db:         db,
		writeMutex: &sync.Mutex{},
	}, nil
}

func (s *SQLiteCache) All(prefix string) ([]Entry, error) {
	entries := make([]Entry, 0)
	// LIKE would treat % in percent-encoded URIs as a wildcard
	rows, err := s.db.Query(`SELECT
		key, expires, requested_at, received_at, bytes
		FROM cache WHERE substr(key, 1, length(?)) = ? AND expires > ?`,
		prefix, prefix, time.Now().UnixMilli())
	if err != nil {
		return entries, err
	}
	defer rows.Close()
	for rows.Next() {
		var entry Entry
		var exp, req, rec int64
		if err := rows.Scan(&entry.Key, &exp, &req, &rec, &entry.Bytes); err != nil {
			return entries, err
		}
		entry.Expires = time.UnixMilli(exp)
		entry.RequestedAt = time.UnixMilli(req)
		entry.ReceivedAt = time.UnixMilli(rec)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *SQLiteCache) Put(e Entry) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec(`INSERT OR REPLACE INTO cache
		(key, expires, requested_at, received_at, bytes) VALUES (?, ?, ?, ?, ?)`,
		e.Key, e.Expires.UnixMilli(), e.RequestedAt.UnixMilli(), e.ReceivedAt.UnixMilli(), e.Bytes)
	return err
}

func (s *SQLiteCache) Purge(key string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("DELETE FROM cache WHERE key = ?", key)
	return err
}

func (s *SQLiteCache) Has(key string) bool {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM cache WHERE key = ?", key).Scan(&one)
	return err == nil
}

func (s *SQLiteCache) Len() int {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM cache").Scan(&n); err != nil {
		return 0
	}
	return n
}

func (s *SQLiteCache) Close() error {
	return s.db.Close()
}
