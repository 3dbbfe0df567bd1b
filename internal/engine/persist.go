package engine

import (
	"context"
	"time"

	"github.com/eldtechnologies/coderoom/internal/metrics"
	"github.com/eldtechnologies/coderoom/internal/models"
	"github.com/eldtechnologies/coderoom/internal/store"
)

const persistTimeout = 5 * time.Second

func persistCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), persistTimeout)
}

// roomRecord projects a room's durable fields. Taken on the dispatch
// loop so the offloaded write never reads live state.
func roomRecord(r *Room) *store.RoomRecord {
	return &store.RoomRecord{
		ID:           r.ID,
		Code:         r.Code,
		Version:      r.Version,
		LastEditedBy: r.LastEditedBy,
		CreatedAt:    r.CreatedAt.UnixMilli(),
		LastActivity: r.LastActivity.UnixMilli(),
	}
}

// persistRoom is fire-and-forget: in-memory state is already applied
// and stays authoritative whatever happens to the write.
func (e *Engine) persistRoom(r *Room) {
	if e.data == nil {
		return
	}
	rec := roomRecord(r)
	go func() {
		ctx, cancel := persistCtx()
		defer cancel()
		if err := e.data.UpsertRoom(ctx, rec); err != nil {
			metrics.PersistenceFailures.WithLabelValues("room").Inc()
			e.logger.Warn().Err(err).Str("room", rec.ID).Msg("room write-behind failed")
		}
	}()
}

func (e *Engine) persistChat(roomID string, msg models.ChatMessage) {
	if e.data == nil && e.chats == nil {
		return
	}
	go func() {
		ctx, cancel := persistCtx()
		defer cancel()
		if e.data != nil {
			if err := e.data.AppendChatMessage(ctx, roomID, &msg); err != nil {
				metrics.PersistenceFailures.WithLabelValues("chat").Inc()
				e.logger.Warn().Err(err).Str("room", roomID).Msg("chat write-behind failed")
			}
		}
		if e.chats != nil {
			if err := e.chats.Add(ctx, roomID, &msg); err != nil {
				metrics.PersistenceFailures.WithLabelValues("chat_cache").Inc()
			}
		}
	}()
}

func (e *Engine) persistAIRequest(rec *store.AIRequestRecord) {
	if e.data == nil {
		return
	}
	go func() {
		ctx, cancel := persistCtx()
		defer cancel()
		if err := e.data.RecordAIRequest(ctx, rec); err != nil {
			metrics.PersistenceFailures.WithLabelValues("ai_request").Inc()
		}
	}()
}
