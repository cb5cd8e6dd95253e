// Package storage persists chat messages in a local SQLite database.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// StoredMessage is one persisted chat message.
type StoredMessage struct {
	ID         string
	FromPeer   string
	ToPeer     string
	Content    string
	Attachment string
	Timestamp  int64 // unix millis
}

// DB wraps the SQLite database holding chat history.
type DB struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// Open opens or creates the message database at path.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable foreign keys and WAL mode for better concurrency
	if _, err := db.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id          TEXT PRIMARY KEY,
			from_peer   TEXT NOT NULL,
			to_peer     TEXT NOT NULL,
			content     TEXT NOT NULL DEFAULT '',
			attachment  TEXT NOT NULL DEFAULT '',
			ts          INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_pair_ts
			ON messages (from_peer, to_peer, ts);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create messages table: %w", err)
	}

	return &DB{db: db, path: path}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.db.Close()
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// SaveMessage inserts a message. Duplicate IDs (relay redelivery) are ignored.
func (d *DB) SaveMessage(m StoredMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.db.Exec(`
		INSERT OR IGNORE INTO messages (id, from_peer, to_peer, content, attachment, ts)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.FromPeer, m.ToPeer, m.Content, m.Attachment, m.Timestamp)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// Conversation returns messages exchanged between a and b, oldest first.
// limit <= 0 means no limit.
func (d *DB) Conversation(a, b string, limit int) ([]StoredMessage, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	q := `
		SELECT id, from_peer, to_peer, content, attachment, ts
		FROM messages
		WHERE (from_peer = ? AND to_peer = ?) OR (from_peer = ? AND to_peer = ?)
		ORDER BY ts ASC`
	args := []any{a, b, b, a}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	defer rows.Close()

	var out []StoredMessage
	for rows.Next() {
		var m StoredMessage
		if err := rows.Scan(&m.ID, &m.FromPeer, &m.ToPeer, &m.Content, &m.Attachment, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteMessage removes a message by ID. Deleting a missing ID is a no-op.
func (d *DB) DeleteMessage(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.db.Exec(`DELETE FROM messages WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// DeleteConversation removes all messages between a and b.
func (d *DB) DeleteConversation(a, b string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.db.Exec(`
		DELETE FROM messages
		WHERE (from_peer = ? AND to_peer = ?) OR (from_peer = ? AND to_peer = ?)`,
		a, b, b, a)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}
