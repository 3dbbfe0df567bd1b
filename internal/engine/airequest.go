package engine

import (
	"context"
	"time"

	"github.com/eldtechnologies/coderoom/internal/protocol"
	"github.com/eldtechnologies/coderoom/internal/store"
)

// handleAIRequest offloads the text-completion call; the reply and the
// audit record are applied when the completion posts back.
func (e *Engine) handleAIRequest(c *Connection, m *protocol.AIRequest) {
	userName, roomID := c.UserName, c.RoomID
	go func() {
		response, errCode := e.assistant.Handle(context.Background(), m, userName, roomID)
		e.post(func() {
			c.send(protocol.NewAIResponse(m.Action, m.RequestID, response, errCode))
			e.persistAIRequest(&store.AIRequestRecord{
				RoomID:    roomID,
				UserID:    c.ID,
				UserName:  userName,
				Action:    m.Action,
				Succeeded: errCode == "",
				Timestamp: time.Now().UnixMilli(),
			})
		})
	}()
}
