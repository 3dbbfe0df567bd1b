package engine

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/eldtechnologies/coderoom/internal/metrics"
	"github.com/eldtechnologies/coderoom/internal/models"
	"github.com/eldtechnologies/coderoom/internal/protocol"
)

const errNotInRoom = "請先加入房間"

func (e *Engine) handleJoin(c *Connection, m *protocol.JoinRoom) {
	userName := m.UserName
	if userName == "" {
		userName = randomUserName()
	}

	// Switching rooms implies leaving the old one first.
	if c.RoomID != "" && c.RoomID != m.Room {
		e.leaveRoom(c, c.RoomID)
	}

	room := e.getOrCreateRoom(m.Room)
	if room == nil {
		c.send(protocol.NewJoinRoomError("server_full", "伺服器房間數已達上限，請稍後再試"))
		return
	}

	room.purgeStale()

	// Reconnect iff this connection id already holds a member entry
	// under the same display name.
	isReconnect := false
	if existing, ok := room.members[c.ID]; ok && existing.UserName == userName {
		isReconnect = true
	}

	if !isReconnect {
		if _, ok := room.members[c.ID]; !ok && len(room.members) >= e.cfg.MaxUsersPerRoom {
			c.send(protocol.NewJoinRoomError("room_full", "房間已滿，請選擇其他房間"))
			return
		}
	}

	c.UserName = userName
	c.RoomID = room.ID
	room.addMember(c)
	room.touch()

	c.send(protocol.NewRoomJoined(room.ID, userName, c.ID, room.Code, room.Version,
		room.memberList(), historyView(room.Chat), isReconnect))

	if isReconnect {
		e.broadcast(room.ID, protocol.NewUserReconnected(userName, c.ID, room.memberList()), c.ID)
	} else {
		e.broadcast(room.ID, protocol.NewUserJoined(userName, c.ID, room.memberList()), c.ID)
	}

	e.logger.Info().Str("room", room.ID).Str("user", userName).Bool("reconnect", isReconnect).Msg("member joined")
	e.persistRoom(room)
	e.pushStats()
}

// historyView re-marks chat entries as replayed history for the joiner.
func historyView(chat []models.ChatMessage) []models.ChatMessage {
	out := make([]models.ChatMessage, len(chat))
	for i, msg := range chat {
		msg.IsHistory = true
		out[i] = msg
	}
	return out
}

func (e *Engine) handleLeave(c *Connection, m *protocol.LeaveRoom) {
	roomID := m.Room
	if roomID == "" {
		roomID = c.RoomID
	}
	if roomID == "" {
		return
	}
	e.leaveRoom(c, roomID)
	e.pushStats()
}

// leaveRoom removes the membership and, when the room empties, arms the
// grace-period deletion. The timer re-checks emptiness when it fires,
// so a rejoin during the grace period voids the deletion with no
// explicit cancel.
func (e *Engine) leaveRoom(c *Connection, roomID string) {
	room := e.getRoom(roomID)
	if room == nil {
		if c.RoomID == roomID {
			c.RoomID = ""
		}
		return
	}
	if !room.removeMember(c.ID) {
		if c.RoomID == roomID {
			c.RoomID = ""
		}
		return
	}
	if c.RoomID == roomID {
		c.RoomID = ""
	}
	room.touch()

	e.broadcast(roomID, protocol.NewUserLeft(c.UserName, c.ID), c.ID)
	e.logger.Info().Str("room", roomID).Str("user", c.UserName).Msg("member left")

	if len(room.members) == 0 {
		e.armRoomDeletion(roomID)
	}
}

func (e *Engine) armRoomDeletion(roomID string) {
	e.logger.Debug().Str("room", roomID).Dur("grace", e.cfg.RoomGracePeriod).Msg("room empty, deletion armed")
	time.AfterFunc(e.cfg.RoomGracePeriod, func() {
		e.post(func() { e.retireIfEmpty(roomID) })
	})
}

func (e *Engine) retireIfEmpty(roomID string) {
	room := e.getRoom(roomID)
	if room == nil {
		return
	}
	room.purgeStale()
	if len(room.members) > 0 {
		return
	}
	e.persistRoom(room)
	e.deleteRoom(roomID)
	e.pushStats()
}

func (e *Engine) handleCodeChange(c *Connection, m *protocol.CodeChange) {
	room := e.getRoom(c.RoomID)
	if room == nil {
		c.send(protocol.NewError(errNotInRoom, ""))
		return
	}

	version := e.applyMutation(room, m.Code, c.UserName)
	e.broadcast(room.ID, protocol.NewCodeChanged(room.ID, m.Code, version, c.UserName, c.ID, m.ForceUpdate), c.ID)
}

// applyMutation is the only place a room version advances: exactly +1
// per accepted mutation, inside the dispatch loop.
func (e *Engine) applyMutation(room *Room, code, author string) int {
	room.Code = code
	room.Version++
	room.LastEditedBy = author
	room.touch()
	e.persistRoom(room)
	return room.Version
}

func (e *Engine) handleCursorChange(c *Connection, m *protocol.CursorChange) {
	room := e.getRoom(c.RoomID)
	if room == nil {
		return
	}
	c.Cursor = m.Cursor
	room.touch()
	e.broadcast(room.ID, protocol.NewCursorChanged(c.ID, m.Cursor, c.UserName), c.ID)
}

func (e *Engine) handleChat(c *Connection, m *protocol.ChatMessage) {
	room := e.getRoom(c.RoomID)
	if room == nil {
		c.send(protocol.NewError(errNotInRoom, ""))
		return
	}

	msg := models.ChatMessage{
		ID:        ulid.Make().String(),
		UserID:    c.ID,
		UserName:  c.UserName,
		Message:   m.Message,
		Timestamp: time.Now().UnixMilli(),
		IsTeacher: c.IsTeacher,
	}
	room.appendChat(msg)
	room.touch()

	// Chat fans out to everyone, the author included.
	e.broadcast(room.ID, protocol.NewChatBroadcast(msg), "")
	e.persistChat(room.ID, msg)
}

func (e *Engine) handleLoadCode(c *Connection, m *protocol.LoadCode) {
	roomID := m.Room
	if roomID == "" {
		roomID = c.RoomID
	}
	room := e.getRoom(roomID)
	if room == nil {
		c.send(protocol.NewCodeLoadError(errNotInRoom))
		return
	}
	// Read-only: answers "am I current" without mutating anything.
	c.send(protocol.NewCodeLoaded(room.ID, room.Code, room.Version, m.CurrentVersion))
}

func (e *Engine) handleSaveCode(c *Connection, m *protocol.SaveCode) {
	room := e.getRoom(c.RoomID)
	if room == nil {
		c.send(protocol.NewSaveCodeError(errNotInRoom))
		return
	}

	saveName := m.SaveName
	version := e.applyMutation(room, m.Code, c.UserName)
	if saveName == "" {
		saveName = fmt.Sprintf("版本 %d", version)
	}

	entry := models.SaveEntry{
		Code:      m.Code,
		Version:   version,
		SaveName:  saveName,
		Timestamp: time.Now().UnixMilli(),
		SavedBy:   c.UserName,
	}
	room.History = append(room.History, entry)
	if e.data == nil && len(room.History) > e.cfg.MaxSaveHistory {
		// File-backed mode bounds the history; the relational store
		// keeps everything.
		room.History = room.History[len(room.History)-e.cfg.MaxSaveHistory:]
	}

	e.broadcast(room.ID, protocol.NewCodeVersionUpdated(version, c.UserName, saveName), c.ID)

	if e.data == nil {
		c.send(protocol.NewSaveCodeSuccess(version, saveName, entry.Timestamp))
		return
	}

	// The synchronous save path is the one place a persistence failure
	// is user-visible. The in-memory mutation above stands either way.
	roomID := room.ID
	go func() {
		ctx, cancel := persistCtx()
		defer cancel()
		err := e.data.AppendSaveEntry(ctx, roomID, &entry)
		e.post(func() {
			if err != nil {
				metrics.PersistenceFailures.WithLabelValues("save").Inc()
				e.logger.Error().Err(err).Str("room", roomID).Msg("save persistence failed")
				c.send(protocol.NewSaveCodeError("保存失敗，請稍後再試"))
				return
			}
			c.send(protocol.NewSaveCodeSuccess(entry.Version, entry.SaveName, entry.Timestamp))
		})
	}()
}
