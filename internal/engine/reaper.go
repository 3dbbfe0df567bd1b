package engine

import (
	"time"

	"github.com/eldtechnologies/coderoom/internal/metrics"
)

// sweep is the authoritative cleanup: deletion stays correct even when
// an individual grace timer was lost (e.g. across a snapshot restore).
//
// Pass 1 retires rooms with an invalid id, plus empty rooms whose grace
// period has elapsed since the last activity. Pass 2 runs full
// disconnect cleanup for any registered connection whose transport is
// already closed. Pass 3 recomputes derived counters from ground truth.
func (e *Engine) sweep() {
	roomsReaped := 0
	for id, room := range e.rooms {
		room.purgeStale()
		if id == "" || (len(room.members) == 0 && time.Since(room.LastActivity) >= e.cfg.RoomGracePeriod) {
			e.persistRoom(room)
			e.deleteRoom(id)
			roomsReaped++
		}
	}

	connsReaped := 0
	for _, c := range e.conns {
		if c.transport == nil || !c.transport.IsOpen() {
			e.disconnect(c)
			connsReaped++
		}
	}

	// Derived counters drift only if a bug skipped a cleanup path;
	// ground truth wins either way.
	e.activeConns.Store(int64(len(e.conns)))
	metrics.ConnectionsActive.Set(float64(len(e.conns)))
	metrics.RoomsActive.Set(float64(len(e.rooms)))

	if roomsReaped > 0 || connsReaped > 0 {
		metrics.RoomsReaped.Add(float64(roomsReaped))
		metrics.ConnectionsReaped.Add(float64(connsReaped))
		e.logger.Info().Int("rooms", roomsReaped).Int("connections", connsReaped).Msg("sweep complete")
		e.pushStats()
	}
}
