package engine

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/eldtechnologies/coderoom/internal/metrics"
)

// Transport is the engine's view of one client connection. Send and
// IsOpen must be safe to call from the dispatch goroutine while the
// transport's own pumps run elsewhere.
type Transport interface {
	Send(v any) error
	IsOpen() bool
	Close()
}

// Connection is one live session. All fields except ID and transport
// are owned by the dispatch loop.
type Connection struct {
	ID        string
	UserName  string
	RoomID    string
	IsTeacher bool
	JoinedAt  time.Time
	Cursor    json.RawMessage

	transport Transport
}

// send is best-effort; a dead transport is the reaper's problem.
func (c *Connection) send(v any) {
	if c.transport == nil || !c.transport.IsOpen() {
		return
	}
	_ = c.transport.Send(v)
}

// Register creates a Connection for an accepted transport and schedules
// its insertion into the registry. The returned value is usable
// immediately; ordering with later frames from the same transport is
// preserved because both pass through the command channel in order.
func (e *Engine) Register(t Transport) *Connection {
	c := &Connection{
		ID:        uuid.New().String(),
		JoinedAt:  time.Now(),
		transport: t,
	}
	e.post(func() {
		e.conns[c.ID] = c
		e.totalConns++
		if len(e.conns) > e.peakConns {
			e.peakConns = len(e.conns)
		}
		e.activeConns.Store(int64(len(e.conns)))
		metrics.ConnectionsTotal.Inc()
		metrics.ConnectionsActive.Set(float64(len(e.conns)))
		e.logger.Info().Str("conn", c.ID).Msg("connection registered")
		e.pushStats()
	})
	return c
}

// Unregister runs full disconnect cleanup for a closed transport.
func (e *Engine) Unregister(c *Connection) {
	e.post(func() { e.disconnect(c) })
}

func (e *Engine) disconnect(c *Connection) {
	if _, ok := e.conns[c.ID]; !ok {
		return
	}
	if c.RoomID != "" {
		e.leaveRoom(c, c.RoomID)
	}
	delete(e.monitors, c.ID)
	delete(e.conns, c.ID)
	e.activeConns.Store(int64(len(e.conns)))
	metrics.ConnectionsActive.Set(float64(len(e.conns)))
	e.logger.Info().Str("conn", c.ID).Str("user", c.UserName).Msg("connection closed")
	e.pushStats()
}

var (
	nameAdjectives = []string{"快樂", "聰明", "勇敢", "活潑", "可愛", "認真", "好奇", "安靜"}
	nameAnimals    = []string{"小貓", "小狗", "小兔", "熊貓", "海豚", "老虎", "企鵝", "狐狸"}
)

// randomUserName mints a display name for clients that join without one.
func randomUserName() string {
	return fmt.Sprintf("%s%s%d",
		nameAdjectives[rand.Intn(len(nameAdjectives))],
		nameAnimals[rand.Intn(len(nameAnimals))],
		rand.Intn(99)+1)
}
