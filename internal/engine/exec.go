package engine

import (
	"context"

	"github.com/eldtechnologies/coderoom/internal/protocol"
)

// handleRunCode offloads the sandbox run so dispatch never blocks on an
// interpreter; the completion re-enters the loop as a posted command.
func (e *Engine) handleRunCode(c *Connection, m *protocol.RunCode) {
	// Execution is a room feature; a request from outside any room is
	// dropped without a reply.
	room := e.getRoom(c.RoomID)
	if room == nil {
		return
	}
	if m.Code == "" {
		c.send(protocol.NewCodeExecutionResult(false, "請先輸入要執行的程式碼"))
		return
	}

	roomID := room.ID
	go func() {
		res := e.executor.Execute(context.Background(), m.Code)
		e.post(func() {
			c.send(protocol.NewCodeExecutionResult(res.Success, res.Output))
			// The room may have been retired while the run was in flight.
			if e.getRoom(roomID) != nil {
				e.broadcast(roomID, protocol.NewUserExecutedCode(c.UserName), c.ID)
			}
		})
	}()
}
