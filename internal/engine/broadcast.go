package engine

import (
	"github.com/eldtechnologies/coderoom/internal/metrics"
	"github.com/eldtechnologies/coderoom/internal/protocol"
)

// broadcast fans msg out to every member of the room except excludeID,
// personalizing each copy when the message supports it. A failed or
// closed recipient is counted and skipped; one dead transport never
// aborts the fan-out. Broadcasting to an unknown room is a logged no-op.
func (e *Engine) broadcast(roomID string, msg any, excludeID string) (delivered, failed int) {
	room := e.getRoom(roomID)
	if room == nil {
		e.logger.Error().Str("room", roomID).Msg("broadcast to nonexistent room")
		return 0, 0
	}

	personalizable, _ := msg.(protocol.Personalizable)

	for _, id := range room.order {
		if id == excludeID {
			continue
		}
		c := room.members[id]
		if c == nil || c.transport == nil || !c.transport.IsOpen() {
			failed++
			continue
		}

		out := msg
		if personalizable != nil {
			out = personalizable.WithRecipient(c.ID, c.UserName)
		}
		if err := c.transport.Send(out); err != nil {
			failed++
			continue
		}
		delivered++
	}

	metrics.BroadcastDeliveries.WithLabelValues("delivered").Add(float64(delivered))
	metrics.BroadcastDeliveries.WithLabelValues("failed").Add(float64(failed))
	return delivered, failed
}
