package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/coderoom/internal/models"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestSQLiteUpsertRoom(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	rec := &RoomRecord{ID: "room-1", Code: "print(1)", Version: 1, LastEditedBy: "小明", CreatedAt: now, LastActivity: now}
	require.NoError(t, s.UpsertRoom(ctx, rec))

	rec.Code = "print(2)"
	rec.Version = 2
	require.NoError(t, s.UpsertRoom(ctx, rec))

	var code string
	var version int
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT code, version, created_at FROM rooms WHERE id = ?`, "room-1").
		Scan(&code, &version, &createdAt)
	require.NoError(t, err)
	assert.Equal(t, "print(2)", code)
	assert.Equal(t, 2, version)
	assert.Equal(t, now, createdAt, "created_at survives upserts")

	var count int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSQLiteAppendChatMessageIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	msg := &models.ChatMessage{
		ID: "01J0000000000000000000000", UserID: "u1", UserName: "小明",
		Message: "大家好", Timestamp: time.Now().UnixMilli(),
	}
	require.NoError(t, s.AppendChatMessage(ctx, "room-1", msg))
	require.NoError(t, s.AppendChatMessage(ctx, "room-1", msg))

	var count int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_messages`).Scan(&count))
	assert.Equal(t, 1, count, "same message id inserts once")
}

func TestSQLiteAppendSaveEntryAndAIRequest(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	require.NoError(t, s.AppendSaveEntry(ctx, "room-1", &models.SaveEntry{
		Code: "print(1)", Version: 3, SaveName: "作業一", Timestamp: now, SavedBy: "小明",
	}))
	require.NoError(t, s.RecordAIRequest(ctx, &AIRequestRecord{
		RoomID: "room-1", UserID: "u1", UserName: "小明",
		Action: "explain_code", Succeeded: true, Timestamp: now,
	}))

	var saveName string
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT save_name FROM save_history WHERE room_id = ?`, "room-1").Scan(&saveName))
	assert.Equal(t, "作業一", saveName)

	var action string
	var ok bool
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT action, succeeded FROM ai_requests WHERE room_id = ?`, "room-1").Scan(&action, &ok))
	assert.Equal(t, "explain_code", action)
	assert.True(t, ok)
}

func TestSQLitePing(t *testing.T) {
	s := newTestSQLite(t)
	require.NoError(t, s.Ping(context.Background()))
}
