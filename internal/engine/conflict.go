package engine

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/eldtechnologies/coderoom/internal/models"
	"github.com/eldtechnologies/coderoom/internal/protocol"
)

// handleConflict relays a named-target conflict signal. Resolution is
// by display name in join order; with duplicate names the first live
// match wins. No match is a domain error to the sender with no other
// side effect.
func (e *Engine) handleConflict(c *Connection, m *protocol.ConflictNotification) {
	room := e.getRoom(c.RoomID)
	if room == nil {
		c.send(protocol.NewError(errNotInRoom, ""))
		return
	}

	var target *Connection
	for _, id := range room.order {
		member := room.members[id]
		if member == nil || member.UserName != m.TargetUser {
			continue
		}
		if member.transport == nil || !member.transport.IsOpen() {
			continue
		}
		target = member
		break
	}

	if target == nil {
		c.send(protocol.NewError("目標用戶不可用", fmt.Sprintf("找不到用戶 %s", m.TargetUser)))
		return
	}

	message := m.Message
	if message == "" {
		message = fmt.Sprintf("%s 的編輯與您發生衝突", c.UserName)
	}

	target.send(protocol.NewConflictNotice(m.TargetUser, c.UserName, message, m.ConflictData))
	c.send(protocol.NewNotificationSent(m.TargetUser))

	// Room-wide informational entry, visible to sender and target too.
	notice := models.ChatMessage{
		ID:        ulid.Make().String(),
		UserID:    "system",
		UserName:  "系統",
		Message:   fmt.Sprintf("⚠️ %s 與 %s 的代碼發生衝突，請協調解決", c.UserName, m.TargetUser),
		Timestamp: time.Now().UnixMilli(),
		IsSystem:  true,
	}
	room.appendChat(notice)
	room.touch()
	e.broadcast(room.ID, protocol.NewChatBroadcast(notice), "")
	e.persistChat(room.ID, notice)

	e.logger.Info().
		Str("room", room.ID).
		Str("from", c.UserName).
		Str("to", m.TargetUser).
		Msg("conflict relayed")
}
