package engine

import (
	"time"

	"github.com/eldtechnologies/coderoom/internal/metrics"
	"github.com/eldtechnologies/coderoom/internal/models"
	"github.com/eldtechnologies/coderoom/internal/store"
)

// buildSnapshot projects every room into the ordered-pairs snapshot
// form. Runs on the dispatch loop; the result shares nothing with live
// state, so writing it out can be offloaded safely.
func (e *Engine) buildSnapshot() *store.Snapshot {
	snap := store.NewSnapshot()
	for id, room := range e.rooms {
		users := make([]store.UserPair, 0, len(room.order))
		for _, memberID := range room.order {
			c := room.members[memberID]
			if c == nil {
				continue
			}
			users = append(users, store.UserPair{
				ID: memberID,
				Member: models.Member{
					UserID:   c.ID,
					UserName: c.UserName,
					IsActive: c.transport != nil && c.transport.IsOpen(),
					Cursor:   c.Cursor,
				},
			})
		}
		snap.Rooms = append(snap.Rooms, store.RoomPair{
			ID: id,
			Room: store.SnapshotRoom{
				Users:        users,
				Code:         room.Code,
				Version:      room.Version,
				LastEditedBy: room.LastEditedBy,
				ChatHistory:  append([]models.ChatMessage(nil), room.Chat...),
				CodeHistory:  append([]models.SaveEntry(nil), room.History...),
				CreatedAt:    room.CreatedAt.UnixMilli(),
				LastActivity: room.LastActivity.UnixMilli(),
			},
		})
	}
	return snap
}

// autoSave is the periodic snapshot tick; a no-op without a file store.
func (e *Engine) autoSave() {
	if e.files == nil || len(e.rooms) == 0 {
		return
	}
	snap := e.buildSnapshot()
	go func() {
		if err := e.files.Save(snap); err != nil {
			metrics.PersistenceFailures.WithLabelValues("snapshot").Inc()
			e.logger.Error().Err(err).Msg("snapshot write failed")
		}
	}()
}

// Flush writes one final snapshot synchronously; called on shutdown.
func (e *Engine) Flush() error {
	if e.files == nil {
		return nil
	}
	var snap *store.Snapshot
	if !e.call(func() { snap = e.buildSnapshot() }) {
		return nil
	}
	return e.files.Save(snap)
}

// Restore rebuilds rooms from a snapshot. Members are not restored:
// their transports died with the previous process, and a restored room
// only needs to survive until its users reconnect. Call before Run.
func (e *Engine) Restore(snap *store.Snapshot) {
	if snap == nil {
		return
	}
	for _, pair := range snap.Rooms {
		if pair.ID == "" {
			continue
		}
		room := newRoom(pair.ID)
		room.Code = pair.Room.Code
		room.Version = pair.Room.Version
		room.LastEditedBy = pair.Room.LastEditedBy
		room.Chat = append(room.Chat, pair.Room.ChatHistory...)
		room.History = append(room.History, pair.Room.CodeHistory...)
		if pair.Room.CreatedAt > 0 {
			room.CreatedAt = time.UnixMilli(pair.Room.CreatedAt)
		}
		// LastActivity restarts now so the grace period counts from
		// the restore, not from before the process died.
		e.rooms[pair.ID] = room
	}
	metrics.RoomsActive.Set(float64(len(e.rooms)))
	e.logger.Info().Int("rooms", len(snap.Rooms)).Msg("snapshot restored")
}
