// Package engine is the real-time room core: the connection registry,
// the room store, the synchronization protocol, broadcast fan-out, the
// conflict relay and the periodic reaper. All shared state is owned by
// a single dispatch goroutine; every mutation enters through the
// command channel, so room versions and member maps never need locks.
package engine

import (
	"context"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/coderoom/internal/config"
	"github.com/eldtechnologies/coderoom/internal/models"
	"github.com/eldtechnologies/coderoom/internal/protocol"
	"github.com/eldtechnologies/coderoom/internal/sandbox"
	"github.com/eldtechnologies/coderoom/internal/store"
)

// How often aggregate stats are pushed to teacher monitors, in addition
// to the event-driven pushes on join/leave/disconnect.
const statsPushInterval = 10 * time.Second

// Executor runs one code submission; implemented by sandbox.Runner.
type Executor interface {
	Execute(ctx context.Context, code string) sandbox.Result
}

// Assistant resolves one ai_request; implemented by ai.Assistant.
type Assistant interface {
	Handle(ctx context.Context, req *protocol.AIRequest, userName, roomID string) (response, errCode string)
}

// ChatCache is the optional recent-chat tail; implemented by store.ChatCache.
type ChatCache interface {
	Add(ctx context.Context, roomID string, msg *models.ChatMessage) error
	Drop(ctx context.Context, roomID string) error
}

// Engine owns all live rooms and connections.
type Engine struct {
	cfg    *config.Config
	logger zerolog.Logger

	conns    map[string]*Connection
	rooms    map[string]*Room
	monitors map[string]*Connection

	executor  Executor
	assistant Assistant
	data      store.DataStore // optional
	chats     ChatCache       // optional
	files     *store.FileStore

	cmds    chan func()
	stopped chan struct{}

	startedAt   time.Time
	activeConns atomic.Int64
	totalConns  int64
	peakConns   int
}

// New assembles an engine. The store arguments may be nil; the engine
// then runs purely in memory (plus the file snapshot when files != nil).
func New(cfg *config.Config, executor Executor, assistant Assistant, data store.DataStore, chats ChatCache, files *store.FileStore, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		logger:    logger.With().Str("component", "engine").Logger(),
		conns:     make(map[string]*Connection),
		rooms:     make(map[string]*Room),
		monitors:  make(map[string]*Connection),
		executor:  executor,
		assistant: assistant,
		data:      data,
		chats:     chats,
		files:     files,
		cmds:      make(chan func(), 256),
		stopped:   make(chan struct{}),
		startedAt: time.Now(),
	}
}

// Run consumes the command channel until ctx is cancelled. The reaper
// sweep, the snapshot auto-save and the stats push are ticks of this
// same loop, so they can never race live message handling.
func (e *Engine) Run(ctx context.Context) {
	reap := time.NewTicker(e.cfg.CleanupInterval)
	save := time.NewTicker(e.cfg.AutoSaveInterval)
	stats := time.NewTicker(statsPushInterval)
	defer reap.Stop()
	defer save.Stop()
	defer stats.Stop()
	defer close(e.stopped)

	e.logger.Info().
		Dur("cleanup_interval", e.cfg.CleanupInterval).
		Dur("auto_save_interval", e.cfg.AutoSaveInterval).
		Msg("engine running")

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-e.cmds:
			e.invoke(cmd)
		case <-reap.C:
			e.invoke(e.sweep)
		case <-save.C:
			e.invoke(e.autoSave)
		case <-stats.C:
			e.invoke(e.pushStats)
		}
	}
}

// invoke isolates a panic to the command that raised it: one poisoned
// message must not take down every other session.
func (e *Engine) invoke(cmd func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("command panicked")
		}
	}()
	cmd()
}

// post schedules a command on the dispatch loop. After shutdown it is a
// silent no-op; late completions have nowhere to go.
func (e *Engine) post(cmd func()) {
	select {
	case e.cmds <- cmd:
	case <-e.stopped:
	}
}

// call runs fn on the dispatch loop and waits for it. Returns false if
// the engine has stopped.
func (e *Engine) call(fn func()) bool {
	done := make(chan struct{})
	select {
	case e.cmds <- func() { fn(); close(done) }:
	case <-e.stopped:
		return false
	}
	select {
	case <-done:
		return true
	case <-e.stopped:
		return false
	}
}

// ConnectionCount is safe to read from any goroutine; the transport
// accept path uses it to enforce the concurrent-user cap.
func (e *Engine) ConnectionCount() int {
	return int(e.activeConns.Load())
}

// Status reports derived server counters.
func (e *Engine) Status() models.ServerStats {
	var out models.ServerStats
	e.call(func() { out = e.statusLocked() })
	return out
}

func (e *Engine) statusLocked() models.ServerStats {
	registered := 0
	for _, c := range e.conns {
		if c.UserName != "" {
			registered++
		}
	}
	return models.ServerStats{
		Uptime:            time.Since(e.startedAt).Milliseconds(),
		PeakConnections:   e.peakConns,
		TotalConnections:  e.totalConns,
		ActualConnections: len(e.conns),
		RegisteredUsers:   registered,
		TeacherMonitors:   len(e.monitors),
	}
}
