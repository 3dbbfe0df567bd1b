package engine

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/eldtechnologies/coderoom/internal/models"
	"github.com/eldtechnologies/coderoom/internal/protocol"
)

// handleTeacherMonitor flags the connection as a monitor. Monitors are
// excluded from student counts and receive stats pushes.
func (e *Engine) handleTeacherMonitor(c *Connection) {
	c.IsTeacher = true
	e.monitors[c.ID] = c
	e.logger.Info().Str("conn", c.ID).Msg("teacher monitor registered")
	c.send(protocol.NewStatsUpdate(e.statsUpdate()))
}

func (e *Engine) handleTeacherBroadcast(c *Connection, m *protocol.TeacherBroadcast) {
	if !c.IsTeacher {
		c.send(protocol.NewError("僅限教師使用", ""))
		return
	}
	room := e.getRoom(m.Data.TargetRoom)
	if room == nil {
		c.send(protocol.NewError("房間不存在", m.Data.TargetRoom))
		return
	}
	e.broadcast(room.ID, protocol.NewTeacherAnnouncement(m.Data.Message, m.Data.MessageType), "")
	e.logger.Info().Str("room", room.ID).Msg("teacher announcement sent")
}

// handleTeacherChat appends a teacher message to one room's chat log,
// or to every room when targetRoom is "all", and cross-notifies the
// other monitors so every dashboard stays in sync.
func (e *Engine) handleTeacherChat(c *Connection, m *protocol.TeacherChat) {
	if !c.IsTeacher {
		c.send(protocol.NewError("僅限教師使用", ""))
		return
	}

	teacherName := m.Data.TeacherName
	if teacherName == "" {
		teacherName = "老師"
	}

	var targets []*Room
	if m.Data.TargetRoom == "all" {
		for _, room := range e.rooms {
			targets = append(targets, room)
		}
	} else {
		room := e.getRoom(m.Data.TargetRoom)
		if room == nil {
			c.send(protocol.NewError("房間不存在", m.Data.TargetRoom))
			return
		}
		targets = append(targets, room)
	}

	for _, room := range targets {
		msg := models.ChatMessage{
			ID:        ulid.Make().String(),
			UserID:    c.ID,
			UserName:  teacherName,
			Message:   m.Data.Message,
			Timestamp: time.Now().UnixMilli(),
			IsTeacher: true,
		}
		room.appendChat(msg)
		room.touch()
		broadcastMsg := protocol.NewChatBroadcast(msg)
		broadcastMsg.RoomName = room.ID
		e.broadcast(room.ID, broadcastMsg, "")
		e.persistChat(room.ID, msg)

		for id, monitor := range e.monitors {
			if id == c.ID {
				continue
			}
			monitor.send(broadcastMsg)
		}
	}
}

// statsUpdate recomputes the monitor-facing aggregate from ground truth.
func (e *Engine) statsUpdate() models.StatsUpdate {
	students := 0
	for _, room := range e.rooms {
		for _, id := range room.order {
			member := room.members[id]
			if member != nil && !member.IsTeacher && member.transport != nil && member.transport.IsOpen() {
				students++
			}
		}
	}
	return models.StatsUpdate{
		ActiveRooms:      len(e.rooms),
		OnlineStudents:   students,
		TotalConnections: len(e.conns),
		NonTeacherUsers:  len(e.conns) - len(e.monitors),
	}
}

// pushStats fans the aggregate out to every monitor. Cheap when no
// monitor is registered.
func (e *Engine) pushStats() {
	if len(e.monitors) == 0 {
		return
	}
	update := protocol.NewStatsUpdate(e.statsUpdate())
	for _, monitor := range e.monitors {
		monitor.send(update)
	}
}

// TeacherRooms builds the cross-room aggregate for the dashboard; it
// runs a stale-member purge first so counts reflect live transports.
func (e *Engine) TeacherRooms() models.TeacherReport {
	var out models.TeacherReport
	e.call(func() {
		studentsInRooms := 0
		rooms := make([]models.RoomSummary, 0, len(e.rooms))
		for _, room := range e.rooms {
			room.purgeStale()
			members := room.memberList()
			studentsInRooms += len(members)
			rooms = append(rooms, models.RoomSummary{
				ID:           room.ID,
				UserCount:    len(members),
				Users:        members,
				LastActivity: room.LastActivity.UnixMilli(),
				CreatedAt:    room.CreatedAt.UnixMilli(),
				Version:      room.Version,
				CodeLength:   len(room.Code),
				ChatCount:    len(room.Chat),
			})
		}
		out = models.TeacherReport{
			Rooms:           rooms,
			TotalRooms:      len(rooms),
			TotalUsers:      len(e.conns),
			StudentsInRooms: studentsInRooms,
			NonTeacherUsers: len(e.conns) - len(e.monitors),
			ServerStats:     e.statusLocked(),
		}
	})
	return out
}

// RoomDetail returns the full per-room dashboard view.
func (e *Engine) RoomDetail(roomID string) (models.RoomDetail, bool) {
	var out models.RoomDetail
	found := false
	e.call(func() {
		room := e.getRoom(roomID)
		if room == nil {
			return
		}
		room.purgeStale()
		out = models.RoomDetail{
			ID:           room.ID,
			Users:        room.memberList(),
			Code:         room.Code,
			Version:      room.Version,
			LastEditedBy: room.LastEditedBy,
			ChatHistory:  append([]models.ChatMessage(nil), room.Chat...),
			CreatedAt:    room.CreatedAt.UnixMilli(),
			LastActivity: room.LastActivity.UnixMilli(),
			CodeHistory:  append([]models.SaveEntry(nil), room.History...),
		}
		found = true
	})
	return out, found
}

// StatsSnapshot exposes the monitor aggregate to the HTTP layer.
func (e *Engine) StatsSnapshot() models.StatsUpdate {
	var out models.StatsUpdate
	e.call(func() { out = e.statsUpdate() })
	return out
}
