package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eldtechnologies/coderoom/internal/models"
)

// PostgresStore is the pgx-backed DataStore.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a connection pool and ensures the schema.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS rooms (
			id             TEXT PRIMARY KEY,
			code           TEXT NOT NULL DEFAULT '',
			version        INTEGER NOT NULL DEFAULT 0,
			last_edited_by TEXT NOT NULL DEFAULT '',
			created_at     BIGINT NOT NULL,
			last_activity  BIGINT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS chat_messages (
			id         TEXT PRIMARY KEY,
			room_id    TEXT NOT NULL,
			user_id    TEXT NOT NULL,
			user_name  TEXT NOT NULL,
			message    TEXT NOT NULL,
			is_teacher BOOLEAN NOT NULL DEFAULT FALSE,
			is_system  BOOLEAN NOT NULL DEFAULT FALSE,
			created_at BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_chat_messages_room
			ON chat_messages (room_id, created_at);
		CREATE TABLE IF NOT EXISTS save_history (
			id         BIGSERIAL PRIMARY KEY,
			room_id    TEXT NOT NULL,
			save_name  TEXT NOT NULL,
			code       TEXT NOT NULL,
			version    INTEGER NOT NULL,
			saved_by   TEXT NOT NULL,
			created_at BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_save_history_room
			ON save_history (room_id, created_at);
		CREATE TABLE IF NOT EXISTS ai_requests (
			id         BIGSERIAL PRIMARY KEY,
			room_id    TEXT NOT NULL,
			user_id    TEXT NOT NULL,
			user_name  TEXT NOT NULL,
			action     TEXT NOT NULL,
			succeeded  BOOLEAN NOT NULL,
			created_at BIGINT NOT NULL
		);
	`)
	return err
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// UpsertRoom writes the room's durable fields, keyed by room id.
func (s *PostgresStore) UpsertRoom(ctx context.Context, rec *RoomRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rooms (id, code, version, last_edited_by, created_at, last_activity)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code,
			version = EXCLUDED.version,
			last_edited_by = EXCLUDED.last_edited_by,
			last_activity = EXCLUDED.last_activity
	`, rec.ID, rec.Code, rec.Version, rec.LastEditedBy, rec.CreatedAt, rec.LastActivity)
	return err
}

// AppendChatMessage records one chat log entry.
func (s *PostgresStore) AppendChatMessage(ctx context.Context, roomID string, msg *models.ChatMessage) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chat_messages (id, room_id, user_id, user_name, message, is_teacher, is_system, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, msg.ID, roomID, msg.UserID, msg.UserName, msg.Message, msg.IsTeacher, msg.IsSystem, msg.Timestamp)
	return err
}

// AppendSaveEntry records one named save.
func (s *PostgresStore) AppendSaveEntry(ctx context.Context, roomID string, entry *models.SaveEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO save_history (room_id, save_name, code, version, saved_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, roomID, entry.SaveName, entry.Code, entry.Version, entry.SavedBy, entry.Timestamp)
	return err
}

// RecordAIRequest records one ai_request audit row.
func (s *PostgresStore) RecordAIRequest(ctx context.Context, rec *AIRequestRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ai_requests (room_id, user_id, user_name, action, succeeded, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.RoomID, rec.UserID, rec.UserName, rec.Action, rec.Succeeded, rec.Timestamp)
	return err
}
