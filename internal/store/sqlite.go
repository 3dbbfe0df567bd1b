package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/eldtechnologies/coderoom/internal/models"
)

// SQLiteStore is the embedded DataStore for single-host deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database file.
// If dbPath is empty, defaults to "./data/coderoom.db".
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/coderoom.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		id             TEXT PRIMARY KEY,
		code           TEXT NOT NULL DEFAULT '',
		version        INTEGER NOT NULL DEFAULT 0,
		last_edited_by TEXT NOT NULL DEFAULT '',
		created_at     INTEGER NOT NULL,
		last_activity  INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id         TEXT PRIMARY KEY,
		room_id    TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		user_name  TEXT NOT NULL,
		message    TEXT NOT NULL,
		is_teacher INTEGER NOT NULL DEFAULT 0,
		is_system  INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_messages_room
		ON chat_messages (room_id, created_at);

	CREATE TABLE IF NOT EXISTS save_history (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id    TEXT NOT NULL,
		save_name  TEXT NOT NULL,
		code       TEXT NOT NULL,
		version    INTEGER NOT NULL,
		saved_by   TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_save_history_room
		ON save_history (room_id, created_at);

	CREATE TABLE IF NOT EXISTS ai_requests (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id    TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		user_name  TEXT NOT NULL,
		action     TEXT NOT NULL,
		succeeded  INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// UpsertRoom writes the room's durable fields, keyed by room id.
func (s *SQLiteStore) UpsertRoom(ctx context.Context, rec *RoomRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rooms (id, code, version, last_edited_by, created_at, last_activity)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			code = excluded.code,
			version = excluded.version,
			last_edited_by = excluded.last_edited_by,
			last_activity = excluded.last_activity
	`, rec.ID, rec.Code, rec.Version, rec.LastEditedBy, rec.CreatedAt, rec.LastActivity)
	return err
}

// AppendChatMessage records one chat log entry.
func (s *SQLiteStore) AppendChatMessage(ctx context.Context, roomID string, msg *models.ChatMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO chat_messages (id, room_id, user_id, user_name, message, is_teacher, is_system, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, roomID, msg.UserID, msg.UserName, msg.Message, msg.IsTeacher, msg.IsSystem, msg.Timestamp)
	return err
}

// AppendSaveEntry records one named save.
func (s *SQLiteStore) AppendSaveEntry(ctx context.Context, roomID string, entry *models.SaveEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO save_history (room_id, save_name, code, version, saved_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, roomID, entry.SaveName, entry.Code, entry.Version, entry.SavedBy, entry.Timestamp)
	return err
}

// RecordAIRequest records one ai_request audit row.
func (s *SQLiteStore) RecordAIRequest(ctx context.Context, rec *AIRequestRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ai_requests (room_id, user_id, user_name, action, succeeded, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.RoomID, rec.UserID, rec.UserName, rec.Action, rec.Succeeded, rec.Timestamp)
	return err
}
