package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/thushan/porter/internal/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	model TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	prompt_tokens INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	latency_ms INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);

CREATE TABLE IF NOT EXISTS usage_logs (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	model TEXT NOT NULL,
	prompt_tokens INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	total_tokens INTEGER NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_usage_user_time ON usage_logs(user_id, created_at);
`

// Store owns the SQLite database shared by the message, usage and
// conversation stores. modernc.org/sqlite keeps the build CGO-free.
type Store struct {
	db     *sql.DB
	logger *logger.StyledLogger
}

// Open creates (or opens) the database at path and runs auto-migration.
// Use ":memory:" for tests.
func Open(path string, logger *logger.StyledLogger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// sqlite only supports one writer; serialise access through a single
	// connection rather than racing into SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		logger.Warn("failed to enable WAL mode", "error", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Messages returns the message store backed by this database
func (s *Store) Messages() *MessageStore {
	return &MessageStore{db: s.db}
}

// Usage returns the usage store backed by this database
func (s *Store) Usage() *UsageStore {
	return &UsageStore{db: s.db}
}

// Conversations returns the conversation store backed by this database
func (s *Store) Conversations() *ConversationStore {
	return &ConversationStore{db: s.db}
}

// Close releases the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}
