package engine

import (
	"time"

	"github.com/eldtechnologies/coderoom/internal/metrics"
	"github.com/eldtechnologies/coderoom/internal/models"
)

// Room is one shared document plus its membership and chat session.
// Member maps hold only connections whose transport reports open; a
// stale entry is evicted by whichever operation observes it first.
type Room struct {
	ID           string
	Code         string
	Version      int
	LastEditedBy string
	Chat         []models.ChatMessage
	History      []models.SaveEntry
	CreatedAt    time.Time
	LastActivity time.Time

	members map[string]*Connection
	order   []string // member insertion order, for fan-out and snapshots
}

func newRoom(id string) *Room {
	now := time.Now()
	return &Room{
		ID:           id,
		CreatedAt:    now,
		LastActivity: now,
		members:      make(map[string]*Connection),
	}
}

func (r *Room) touch() { r.LastActivity = time.Now() }

func (r *Room) addMember(c *Connection) {
	if _, ok := r.members[c.ID]; !ok {
		r.order = append(r.order, c.ID)
	}
	r.members[c.ID] = c
}

func (r *Room) removeMember(id string) bool {
	if _, ok := r.members[id]; !ok {
		return false
	}
	delete(r.members, id)
	for i, memberID := range r.order {
		if memberID == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// purgeStale evicts members whose transport has already closed and
// returns how many were removed.
func (r *Room) purgeStale() int {
	removed := 0
	for _, id := range append([]string(nil), r.order...) {
		c := r.members[id]
		if c == nil || c.transport == nil || !c.transport.IsOpen() {
			r.removeMember(id)
			removed++
		}
	}
	return removed
}

// memberList is the wire-shaped membership view, in join order.
func (r *Room) memberList() []models.Member {
	out := make([]models.Member, 0, len(r.order))
	for _, id := range r.order {
		c := r.members[id]
		if c == nil {
			continue
		}
		out = append(out, models.Member{
			UserID:   c.ID,
			UserName: c.UserName,
			IsActive: c.transport != nil && c.transport.IsOpen(),
			Cursor:   c.Cursor,
		})
	}
	return out
}

// appendChat grows the room's chat log. The log is append-only for the
// room's lifetime: join replay, the teacher dashboard and the file
// snapshot all read it in full.
func (r *Room) appendChat(msg models.ChatMessage) {
	r.Chat = append(r.Chat, msg)
}

// getRoom returns a live room or nil.
func (e *Engine) getRoom(id string) *Room {
	return e.rooms[id]
}

// getOrCreateRoom creates lazily on first join. Returns nil when the
// room cap is reached and the id is unseen.
func (e *Engine) getOrCreateRoom(id string) *Room {
	if room, ok := e.rooms[id]; ok {
		return room
	}
	if len(e.rooms) >= e.cfg.MaxRooms {
		return nil
	}
	room := newRoom(id)
	e.rooms[id] = room
	metrics.RoomsActive.Set(float64(len(e.rooms)))
	e.logger.Info().Str("room", id).Msg("room created")
	return room
}

// deleteRoom retires a room and its cached chat tail.
func (e *Engine) deleteRoom(id string) {
	if _, ok := e.rooms[id]; !ok {
		return
	}
	delete(e.rooms, id)
	metrics.RoomsActive.Set(float64(len(e.rooms)))
	e.logger.Info().Str("room", id).Msg("room deleted")
	if e.chats != nil {
		go func() {
			ctx, cancel := persistCtx()
			defer cancel()
			if err := e.chats.Drop(ctx, id); err != nil {
				metrics.PersistenceFailures.WithLabelValues("chat_drop").Inc()
			}
		}()
	}
}
