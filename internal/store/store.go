// Package store holds the persistence collaborators. All of them are
// optional at runtime: the room engine owns the in-memory truth and
// treats every store call as best-effort write-behind.
package store

import (
	"context"

	"github.com/eldtechnologies/coderoom/internal/models"
)

// RoomRecord is the relational projection of a room's durable fields.
type RoomRecord struct {
	ID           string
	Code         string
	Version      int
	LastEditedBy string
	CreatedAt    int64 // Unix ms
	LastActivity int64 // Unix ms
}

// AIRequestRecord is one audit row per ai_request handled.
type AIRequestRecord struct {
	RoomID    string
	UserID    string
	UserName  string
	Action    string
	Succeeded bool
	Timestamp int64 // Unix ms
}

// DataStore defines the relational write-behind interface. PostgresStore
// and SQLiteStore implement it.
type DataStore interface {
	Close()
	Ping(ctx context.Context) error

	UpsertRoom(ctx context.Context, rec *RoomRecord) error
	AppendChatMessage(ctx context.Context, roomID string, msg *models.ChatMessage) error
	AppendSaveEntry(ctx context.Context, roomID string, entry *models.SaveEntry) error
	RecordAIRequest(ctx context.Context, rec *AIRequestRecord) error
}
