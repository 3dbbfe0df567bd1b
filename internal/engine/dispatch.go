package engine

import (
	"github.com/eldtechnologies/coderoom/internal/metrics"
	"github.com/eldtechnologies/coderoom/internal/protocol"
)

// HandleFrame parses one inbound frame on the caller's goroutine and
// schedules its typed handler on the dispatch loop. Malformed frames
// are answered directly; the connection stays open.
func (e *Engine) HandleFrame(c *Connection, data []byte) {
	msgType, msg, err := protocol.Parse(data)
	if err != nil {
		metrics.ProtocolErrors.Inc()
		e.logger.Debug().Err(err).Str("conn", c.ID).Str("type", msgType).Msg("frame rejected")
		c.send(protocol.NewError("訊息格式錯誤", err.Error()))
		return
	}
	metrics.MessagesReceived.WithLabelValues(msgType).Inc()
	e.post(func() { e.dispatch(c, msg) })
}

// dispatch runs on the dispatch loop; msg is already validated.
func (e *Engine) dispatch(c *Connection, msg any) {
	switch m := msg.(type) {
	case *protocol.Ping:
		c.send(protocol.NewPong())
	case *protocol.JoinRoom:
		e.handleJoin(c, m)
	case *protocol.LeaveRoom:
		e.handleLeave(c, m)
	case *protocol.CodeChange:
		e.handleCodeChange(c, m)
	case *protocol.CursorChange:
		e.handleCursorChange(c, m)
	case *protocol.ChatMessage:
		e.handleChat(c, m)
	case *protocol.ConflictNotification:
		e.handleConflict(c, m)
	case *protocol.AIRequest:
		e.handleAIRequest(c, m)
	case *protocol.RunCode:
		e.handleRunCode(c, m)
	case *protocol.LoadCode:
		e.handleLoadCode(c, m)
	case *protocol.SaveCode:
		e.handleSaveCode(c, m)
	case *protocol.TeacherMonitor:
		e.handleTeacherMonitor(c)
	case *protocol.TeacherBroadcast:
		e.handleTeacherBroadcast(c, m)
	case *protocol.TeacherChat:
		e.handleTeacherChat(c, m)
	default:
		// Parse only yields registered types; reaching here is a bug.
		e.logger.Error().Str("conn", c.ID).Msgf("no handler for %T", msg)
	}
}
