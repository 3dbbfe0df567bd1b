package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/coderoom/internal/config"
	"github.com/eldtechnologies/coderoom/internal/protocol"
	"github.com/eldtechnologies/coderoom/internal/sandbox"
)

type fakeTransport struct {
	mu   sync.Mutex
	open bool
	fail bool
	sent []any
}

func (t *fakeTransport) Send(v any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail {
		return errors.New("send failed")
	}
	t.sent = append(t.sent, v)
	return nil
}

func (t *fakeTransport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

func (t *fakeTransport) Close() {
	t.mu.Lock()
	t.open = false
	t.mu.Unlock()
}

func (t *fakeTransport) messages() []any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]any(nil), t.sent...)
}

func (t *fakeTransport) clear() {
	t.mu.Lock()
	t.sent = nil
	t.mu.Unlock()
}

func firstOf[T any](msgs []any) (T, bool) {
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func allOf[T any](msgs []any) []T {
	var out []T
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

type stubExecutor struct {
	res sandbox.Result
}

func (s stubExecutor) Execute(context.Context, string) sandbox.Result { return s.res }

type stubAssistant struct{}

func (stubAssistant) Handle(_ context.Context, req *protocol.AIRequest, _, _ string) (string, string) {
	return "回應:" + req.Action, ""
}

func testConfig() *config.Config {
	return &config.Config{
		MaxConcurrentUsers: 60,
		MaxRooms:           20,
		MaxUsersPerRoom:    5,
		MaxSaveHistory:     3,
		AutoSaveInterval:   time.Hour,
		CleanupInterval:    time.Hour,
		RoomGracePeriod:    30 * time.Millisecond,
		ExecTimeout:        time.Second,
	}
}

func newTestEngine() *Engine {
	return New(testConfig(), stubExecutor{res: sandbox.Result{Success: true, Output: "ok"}},
		stubAssistant{}, nil, nil, nil, zerolog.Nop())
}

func startEngine(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx)
	t.Cleanup(cancel)
}

// addConn inserts a connection directly; only valid before Run starts
// or from within posted commands.
func addConn(e *Engine) (*Connection, *fakeTransport) {
	tr := &fakeTransport{open: true}
	c := &Connection{ID: uuid.New().String(), JoinedAt: time.Now(), transport: tr}
	e.conns[c.ID] = c
	return c, tr
}

func join(e *Engine, c *Connection, room, name string) {
	e.dispatch(c, &protocol.JoinRoom{Room: room, UserName: name})
}

// drain runs commands already queued on the (not running) loop.
func drain(e *Engine) {
	for {
		select {
		case cmd := <-e.cmds:
			cmd()
		default:
			return
		}
	}
}

func TestJoinCreatesRoom(t *testing.T) {
	e := newTestEngine()
	alice, tr := addConn(e)

	join(e, alice, "r1", "Alice")

	joined, ok := firstOf[protocol.RoomJoined](tr.messages())
	require.True(t, ok)
	assert.Equal(t, "r1", joined.RoomID)
	assert.Equal(t, 0, joined.Version)
	assert.False(t, joined.IsReconnect)
	require.Len(t, joined.Users, 1)
	assert.Equal(t, "Alice", joined.Users[0].UserName)
	assert.Equal(t, "r1", alice.RoomID)
	require.NotNil(t, e.getRoom("r1"))
}

func TestSecondJoinBroadcastsPersonalizedUserJoined(t *testing.T) {
	e := newTestEngine()
	alice, trA := addConn(e)
	bob, trB := addConn(e)

	join(e, alice, "r1", "Alice")
	trA.clear()
	join(e, bob, "r1", "Bob")

	joined, ok := firstOf[protocol.RoomJoined](trB.messages())
	require.True(t, ok)
	assert.Len(t, joined.Users, 2)

	presence, ok := firstOf[protocol.UserPresence](trA.messages())
	require.True(t, ok)
	assert.Equal(t, "user_joined", presence.Type)
	assert.Equal(t, "Bob", presence.UserName)
	assert.Equal(t, alice.ID, presence.RecipientID, "copy personalized for Alice")
	assert.Equal(t, "Alice", presence.RecipientName)

	// Bob never sees his own join broadcast.
	_, sawOwn := firstOf[protocol.UserPresence](trB.messages())
	assert.False(t, sawOwn)
}

func TestJoinWithoutNameGetsGeneratedOne(t *testing.T) {
	e := newTestEngine()
	c, tr := addConn(e)

	join(e, c, "r1", "")

	joined, ok := firstOf[protocol.RoomJoined](tr.messages())
	require.True(t, ok)
	assert.NotEmpty(t, joined.UserName)
	assert.Equal(t, joined.UserName, c.UserName)
}

func TestReconnectResolution(t *testing.T) {
	e := newTestEngine()
	alice, tr := addConn(e)

	join(e, alice, "r1", "Alice")
	tr.clear()
	join(e, alice, "r1", "Alice")

	joined, ok := firstOf[protocol.RoomJoined](tr.messages())
	require.True(t, ok)
	assert.True(t, joined.IsReconnect, "same id, same name is a reconnect")

	tr.clear()
	join(e, alice, "r1", "Alicia")
	joined, ok = firstOf[protocol.RoomJoined](tr.messages())
	require.True(t, ok)
	assert.False(t, joined.IsReconnect, "same id, new name is a fresh join")
}

func TestRoomFull(t *testing.T) {
	e := newTestEngine()
	e.cfg.MaxUsersPerRoom = 2
	for i := 0; i < 2; i++ {
		c, _ := addConn(e)
		join(e, c, "r1", fmt.Sprintf("user%d", i))
	}

	late, tr := addConn(e)
	join(e, late, "r1", "late")

	joinErr, ok := firstOf[protocol.JoinRoomError](tr.messages())
	require.True(t, ok)
	assert.Equal(t, "room_full", joinErr.Error)
	assert.Empty(t, late.RoomID)
}

func TestVersionMonotonicity(t *testing.T) {
	e := newTestEngine()
	alice, trA := addConn(e)
	bob, trB := addConn(e)
	join(e, alice, "r1", "Alice")
	join(e, bob, "r1", "Bob")
	trA.clear()
	trB.clear()

	for i := 1; i <= 5; i++ {
		e.dispatch(alice, &protocol.CodeChange{Code: fmt.Sprintf("print(%d)", i)})
		assert.Equal(t, i, e.getRoom("r1").Version)
	}

	changes := allOf[protocol.CodeChanged](trB.messages())
	require.Len(t, changes, 5)
	for i, ch := range changes {
		assert.Equal(t, i+1, ch.Version, "no skips, no repeats")
	}
	assert.Empty(t, allOf[protocol.CodeChanged](trA.messages()), "author excluded from own broadcast")
}

func TestCodeChangeOutsideRoom(t *testing.T) {
	e := newTestEngine()
	c, tr := addConn(e)

	e.dispatch(c, &protocol.CodeChange{Code: "print(1)"})

	errMsg, ok := firstOf[protocol.ErrorEnvelope](tr.messages())
	require.True(t, ok)
	assert.Equal(t, "請先加入房間", errMsg.Error)
}

func TestBroadcastCountsAndExclusion(t *testing.T) {
	e := newTestEngine()
	alice, _ := addConn(e)
	bob, _ := addConn(e)
	carol, trC := addConn(e)
	join(e, alice, "r1", "Alice")
	join(e, bob, "r1", "Bob")
	join(e, carol, "r1", "Carol")

	trC.Close()
	delivered, failed := e.broadcast("r1", protocol.NewUserLeft("x", "y"), alice.ID)
	assert.Equal(t, 1, delivered, "only Bob reachable")
	assert.Equal(t, 1, failed, "Carol's transport closed")
}

func TestBroadcastToNonexistentRoomIsNoOp(t *testing.T) {
	e := newTestEngine()
	delivered, failed := e.broadcast("nope", protocol.NewUserLeft("x", "y"), "")
	assert.Zero(t, delivered)
	assert.Zero(t, failed)
}

func TestBroadcastSendFailureCounted(t *testing.T) {
	e := newTestEngine()
	alice, _ := addConn(e)
	bob, trB := addConn(e)
	join(e, alice, "r1", "Alice")
	join(e, bob, "r1", "Bob")

	trB.mu.Lock()
	trB.fail = true
	trB.mu.Unlock()

	delivered, failed := e.broadcast("r1", protocol.NewUserLeft("x", "y"), alice.ID)
	assert.Zero(t, delivered)
	assert.Equal(t, 1, failed)
}

func TestChatBroadcastIncludesSender(t *testing.T) {
	e := newTestEngine()
	alice, trA := addConn(e)
	bob, trB := addConn(e)
	join(e, alice, "r1", "Alice")
	join(e, bob, "r1", "Bob")
	trA.clear()
	trB.clear()

	e.dispatch(alice, &protocol.ChatMessage{Message: "大家好"})

	for _, tr := range []*fakeTransport{trA, trB} {
		chat, ok := firstOf[protocol.ChatBroadcast](tr.messages())
		require.True(t, ok)
		assert.Equal(t, "大家好", chat.Message)
		assert.Equal(t, "Alice", chat.ChatMessage.UserName)
		assert.NotEmpty(t, chat.ChatMessage.ID)
	}
	require.Len(t, e.getRoom("r1").Chat, 1)
}

func TestChatLogIsAppendOnly(t *testing.T) {
	e := newTestEngine()
	alice, _ := addConn(e)
	join(e, alice, "r1", "Alice")

	for i := 0; i < 150; i++ {
		e.dispatch(alice, &protocol.ChatMessage{Message: fmt.Sprintf("訊息 %d", i)})
	}

	chat := e.getRoom("r1").Chat
	require.Len(t, chat, 150)
	assert.Equal(t, "訊息 0", chat[0].Message)
	assert.Equal(t, "訊息 149", chat[149].Message)
}

func TestConflictRelay(t *testing.T) {
	e := newTestEngine()
	alice, trA := addConn(e)
	bob, trB := addConn(e)
	join(e, alice, "r1", "Alice")
	join(e, bob, "r1", "Bob")
	trA.clear()
	trB.clear()

	e.dispatch(alice, &protocol.ConflictNotification{
		TargetUser:   "Bob",
		Message:      "edit clash",
		ConflictData: json.RawMessage(`{"line":3}`),
	})

	notice, ok := firstOf[protocol.ConflictNotice](trB.messages())
	require.True(t, ok)
	assert.Equal(t, "Alice", notice.ConflictWith)
	assert.Equal(t, "edit clash", notice.Message)
	assert.JSONEq(t, `{"line":3}`, string(notice.ConflictData))

	ack, ok := firstOf[protocol.NotificationSent](trA.messages())
	require.True(t, ok)
	assert.Equal(t, "Bob", ack.TargetUser)
	assert.Equal(t, "衝突通知已發送", ack.Message)

	room := e.getRoom("r1")
	require.Len(t, room.Chat, 1)
	assert.True(t, room.Chat[0].IsSystem)

	// Both members (sender included) see the informational entry.
	_, aliceSaw := firstOf[protocol.ChatBroadcast](trA.messages())
	_, bobSaw := firstOf[protocol.ChatBroadcast](trB.messages())
	assert.True(t, aliceSaw)
	assert.True(t, bobSaw)
}

func TestConflictRelayNoMatch(t *testing.T) {
	e := newTestEngine()
	alice, trA := addConn(e)
	bob, trB := addConn(e)
	join(e, alice, "r1", "Alice")
	join(e, bob, "r1", "Bob")
	trA.clear()
	trB.clear()

	e.dispatch(alice, &protocol.ConflictNotification{TargetUser: "Carol"})

	errMsg, ok := firstOf[protocol.ErrorEnvelope](trA.messages())
	require.True(t, ok)
	assert.Equal(t, "目標用戶不可用", errMsg.Error)

	assert.Empty(t, trB.messages(), "no target-side delivery")
	assert.Empty(t, e.getRoom("r1").Chat, "no room-wide notice")
}

func TestConflictRelaySkipsClosedTarget(t *testing.T) {
	e := newTestEngine()
	alice, trA := addConn(e)
	bob, trB := addConn(e)
	join(e, alice, "r1", "Alice")
	join(e, bob, "r1", "Bob")
	trB.Close()
	trA.clear()

	e.dispatch(alice, &protocol.ConflictNotification{TargetUser: "Bob"})

	errMsg, ok := firstOf[protocol.ErrorEnvelope](trA.messages())
	require.True(t, ok)
	assert.Equal(t, "目標用戶不可用", errMsg.Error)
}

func TestLoadLatestIdempotent(t *testing.T) {
	e := newTestEngine()
	alice, tr := addConn(e)
	join(e, alice, "r1", "Alice")
	e.dispatch(alice, &protocol.CodeChange{Code: "print(1)"})
	e.dispatch(alice, &protocol.CodeChange{Code: "print(2)"})
	tr.clear()

	e.dispatch(alice, &protocol.LoadCode{CurrentVersion: 1})
	e.dispatch(alice, &protocol.LoadCode{CurrentVersion: 1})

	loads := allOf[protocol.CodeLoaded](tr.messages())
	require.Len(t, loads, 2)
	assert.Equal(t, loads[0], loads[1], "repeated query, same answer")
	assert.Equal(t, 2, loads[0].Version)
	assert.False(t, loads[0].IsAlreadyLatest)

	tr.clear()
	e.dispatch(alice, &protocol.LoadCode{CurrentVersion: 2})
	load, ok := firstOf[protocol.CodeLoaded](tr.messages())
	require.True(t, ok)
	assert.True(t, load.IsAlreadyLatest)
	assert.Equal(t, "print(2)", load.Code)
}

func TestSaveCode(t *testing.T) {
	e := newTestEngine()
	alice, trA := addConn(e)
	bob, trB := addConn(e)
	join(e, alice, "r1", "Alice")
	join(e, bob, "r1", "Bob")
	trA.clear()
	trB.clear()

	e.dispatch(alice, &protocol.SaveCode{Code: "print(1)", SaveName: "作業一"})

	success, ok := firstOf[protocol.SaveCodeSuccess](trA.messages())
	require.True(t, ok)
	assert.Equal(t, 1, success.Version)
	assert.Equal(t, "作業一", success.SaveName)

	updated, ok := firstOf[protocol.CodeVersionUpdated](trB.messages())
	require.True(t, ok)
	assert.Equal(t, "Alice", updated.SavedBy)
	assert.Empty(t, allOf[protocol.CodeVersionUpdated](trA.messages()), "saver excluded")

	room := e.getRoom("r1")
	require.Len(t, room.History, 1)
	assert.Equal(t, "print(1)", room.History[0].Code)

	// Default save names and the file-backed history cap.
	for i := 0; i < 5; i++ {
		e.dispatch(alice, &protocol.SaveCode{Code: "x = 1"})
	}
	assert.Len(t, room.History, e.cfg.MaxSaveHistory)
	last := room.History[len(room.History)-1]
	assert.Equal(t, fmt.Sprintf("版本 %d", room.Version), last.SaveName)
}

func TestLeaveArmsGraceDeletion(t *testing.T) {
	e := newTestEngine()
	alice, _ := addConn(e)
	join(e, alice, "r1", "Alice")

	e.dispatch(alice, &protocol.LeaveRoom{})
	require.NotNil(t, e.getRoom("r1"), "deletion deferred by grace period")
	assert.Empty(t, alice.RoomID)

	time.Sleep(3 * e.cfg.RoomGracePeriod)
	drain(e)
	assert.Nil(t, e.getRoom("r1"))
}

func TestRejoinDuringGraceVoidsDeletion(t *testing.T) {
	e := newTestEngine()
	alice, _ := addConn(e)
	join(e, alice, "r1", "Alice")
	e.dispatch(alice, &protocol.LeaveRoom{})
	join(e, alice, "r1", "Alice")

	time.Sleep(3 * e.cfg.RoomGracePeriod)
	drain(e)
	require.NotNil(t, e.getRoom("r1"), "rejoin voided the pending deletion")
	assert.Len(t, e.getRoom("r1").members, 1)
}

func TestDisconnectBroadcastsUserLeft(t *testing.T) {
	e := newTestEngine()
	alice, _ := addConn(e)
	bob, trB := addConn(e)
	join(e, alice, "r1", "Alice")
	join(e, bob, "r1", "Bob")
	trB.clear()

	e.disconnect(alice)

	left, ok := firstOf[protocol.UserPresence](trB.messages())
	require.True(t, ok)
	assert.Equal(t, "user_left", left.Type)
	assert.Equal(t, "Alice", left.UserName)
	assert.NotContains(t, e.conns, alice.ID)
}

func TestSweepReapsStaleConnectionsAndRooms(t *testing.T) {
	e := newTestEngine()
	alice, trA := addConn(e)
	join(e, alice, "r1", "Alice")

	trA.Close()
	room := e.getRoom("r1")
	room.LastActivity = time.Now().Add(-2 * e.cfg.RoomGracePeriod)

	e.sweep()

	assert.NotContains(t, e.conns, alice.ID, "closed transport reaped")
	assert.Nil(t, e.getRoom("r1"), "empty room past grace reaped")
}

func TestSweepKeepsRecentlyActiveEmptyRoom(t *testing.T) {
	e := newTestEngine()
	alice, _ := addConn(e)
	join(e, alice, "r1", "Alice")
	e.dispatch(alice, &protocol.LeaveRoom{})

	e.sweep()
	assert.NotNil(t, e.getRoom("r1"), "grace period still running")
}

func TestRunCodeRoundTrip(t *testing.T) {
	e := newTestEngine()
	alice, trA := addConn(e)
	bob, trB := addConn(e)
	join(e, alice, "r1", "Alice")
	join(e, bob, "r1", "Bob")
	trA.clear()
	trB.clear()
	startEngine(t, e)

	e.post(func() { e.dispatch(alice, &protocol.RunCode{Code: "print('hi')"}) })

	require.Eventually(t, func() bool {
		_, ok := firstOf[protocol.CodeExecutionResult](trA.messages())
		return ok
	}, time.Second, 5*time.Millisecond)

	res, _ := firstOf[protocol.CodeExecutionResult](trA.messages())
	assert.True(t, res.Success)
	assert.Equal(t, "ok", res.Message)

	require.Eventually(t, func() bool {
		_, ok := firstOf[protocol.UserExecutedCode](trB.messages())
		return ok
	}, time.Second, 5*time.Millisecond)
	ran, _ := firstOf[protocol.UserExecutedCode](trB.messages())
	assert.Equal(t, "Alice", ran.UserName)
}

func TestRunCodeOutsideRoomIsDropped(t *testing.T) {
	e := newTestEngine()
	alice, tr := addConn(e)

	e.dispatch(alice, &protocol.RunCode{Code: "print('hi')"})
	drain(e)

	assert.Empty(t, tr.messages())
}

func TestRunCodeEmpty(t *testing.T) {
	e := newTestEngine()
	alice, tr := addConn(e)
	join(e, alice, "r1", "Alice")
	tr.clear()

	e.dispatch(alice, &protocol.RunCode{Code: ""})

	res, ok := firstOf[protocol.CodeExecutionResult](tr.messages())
	require.True(t, ok)
	assert.False(t, res.Success)
}

func TestAIRequestRoundTrip(t *testing.T) {
	e := newTestEngine()
	alice, tr := addConn(e)
	join(e, alice, "r1", "Alice")
	tr.clear()
	startEngine(t, e)

	e.post(func() {
		e.dispatch(alice, &protocol.AIRequest{Action: "explain_code", RequestID: "req-1"})
	})

	require.Eventually(t, func() bool {
		_, ok := firstOf[protocol.AIResponse](tr.messages())
		return ok
	}, time.Second, 5*time.Millisecond)

	resp, _ := firstOf[protocol.AIResponse](tr.messages())
	assert.Equal(t, "回應:explain_code", resp.Response)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Empty(t, resp.Error)
}

func TestTeacherMonitorReceivesStats(t *testing.T) {
	e := newTestEngine()
	teacher, trT := addConn(e)

	e.dispatch(teacher, &protocol.TeacherMonitor{})
	stats, ok := firstOf[protocol.StatsUpdate](trT.messages())
	require.True(t, ok)
	assert.Equal(t, 1, stats.Data.TotalConnections)
	assert.Zero(t, stats.Data.NonTeacherUsers)

	trT.clear()
	alice, _ := addConn(e)
	join(e, alice, "r1", "Alice")

	stats, ok = firstOf[protocol.StatsUpdate](trT.messages())
	require.True(t, ok)
	assert.Equal(t, 1, stats.Data.ActiveRooms)
	assert.Equal(t, 1, stats.Data.OnlineStudents)
	assert.Equal(t, 1, stats.Data.NonTeacherUsers)
}

func TestTeacherBroadcastRequiresRole(t *testing.T) {
	e := newTestEngine()
	c, tr := addConn(e)

	e.dispatch(c, &protocol.TeacherBroadcast{Data: protocol.TeacherBroadcastData{TargetRoom: "r1", Message: "hi"}})

	errMsg, ok := firstOf[protocol.ErrorEnvelope](tr.messages())
	require.True(t, ok)
	assert.Equal(t, "僅限教師使用", errMsg.Error)
}

func TestTeacherBroadcastToRoom(t *testing.T) {
	e := newTestEngine()
	alice, trA := addConn(e)
	join(e, alice, "r1", "Alice")
	teacher, _ := addConn(e)
	e.dispatch(teacher, &protocol.TeacherMonitor{})
	trA.clear()

	e.dispatch(teacher, &protocol.TeacherBroadcast{
		Data: protocol.TeacherBroadcastData{TargetRoom: "r1", Message: "下課前記得保存"},
	})

	ann, ok := firstOf[protocol.TeacherAnnouncement](trA.messages())
	require.True(t, ok)
	assert.Equal(t, "下課前記得保存", ann.Message)
	assert.Equal(t, "info", ann.MessageType)
}

func TestTeacherChatAllRooms(t *testing.T) {
	e := newTestEngine()
	alice, trA := addConn(e)
	bob, trB := addConn(e)
	join(e, alice, "r1", "Alice")
	join(e, bob, "r2", "Bob")

	teacher, _ := addConn(e)
	other, trOther := addConn(e)
	e.dispatch(teacher, &protocol.TeacherMonitor{})
	e.dispatch(other, &protocol.TeacherMonitor{})
	trA.clear()
	trB.clear()
	trOther.clear()

	e.dispatch(teacher, &protocol.TeacherChat{
		Data: protocol.TeacherChatData{TargetRoom: "all", Message: "大家加油", TeacherName: "王老師"},
	})

	for _, tr := range []*fakeTransport{trA, trB} {
		chat, ok := firstOf[protocol.ChatBroadcast](tr.messages())
		require.True(t, ok)
		assert.Equal(t, "大家加油", chat.Message)
		assert.Equal(t, "王老師", chat.ChatMessage.UserName)
		assert.True(t, chat.IsTeacher)
	}
	assert.Len(t, e.getRoom("r1").Chat, 1)
	assert.Len(t, e.getRoom("r2").Chat, 1)

	// The other monitor is cross-notified, once per room.
	assert.Len(t, allOf[protocol.ChatBroadcast](trOther.messages()), 2)
}

func TestSnapshotRoundTripRestoresRooms(t *testing.T) {
	e := newTestEngine()
	alice, _ := addConn(e)
	join(e, alice, "r1", "Alice")
	e.dispatch(alice, &protocol.CodeChange{Code: "print(1)"})
	e.dispatch(alice, &protocol.ChatMessage{Message: "hi"})
	e.dispatch(alice, &protocol.SaveCode{Code: "print(1)", SaveName: "v1"})

	snap := e.buildSnapshot()
	require.Len(t, snap.Rooms, 1)
	assert.Equal(t, "r1", snap.Rooms[0].ID)
	require.Len(t, snap.Rooms[0].Room.Users, 1)

	restored := newTestEngine()
	restored.Restore(snap)

	room := restored.getRoom("r1")
	require.NotNil(t, room)
	assert.Equal(t, 2, room.Version)
	assert.Equal(t, "print(1)", room.Code)
	assert.Len(t, room.Chat, 1)
	assert.Len(t, room.History, 1)
	assert.Empty(t, room.members, "members do not survive a restart")
}

func TestStatusAccessor(t *testing.T) {
	e := newTestEngine()
	alice, _ := addConn(e)
	join(e, alice, "r1", "Alice")
	startEngine(t, e)

	stats := e.Status()
	assert.Equal(t, 1, stats.ActualConnections)
	assert.Equal(t, 1, stats.RegisteredUsers)
	assert.GreaterOrEqual(t, stats.Uptime, int64(0))
}

func TestTeacherRoomsAccessor(t *testing.T) {
	e := newTestEngine()
	alice, _ := addConn(e)
	bob, trB := addConn(e)
	join(e, alice, "r1", "Alice")
	join(e, bob, "r1", "Bob")
	e.dispatch(alice, &protocol.CodeChange{Code: "print(1)"})
	trB.Close()
	startEngine(t, e)

	report := e.TeacherRooms()
	require.Len(t, report.Rooms, 1)
	assert.Equal(t, "r1", report.Rooms[0].ID)
	assert.Equal(t, 1, report.Rooms[0].UserCount, "stale member purged before reporting")
	assert.Equal(t, 1, report.Rooms[0].Version)
	assert.Equal(t, len("print(1)"), report.Rooms[0].CodeLength)

	detail, found := e.RoomDetail("r1")
	require.True(t, found)
	assert.Equal(t, "print(1)", detail.Code)
	assert.Equal(t, "Alice", detail.LastEditedBy)

	_, found = e.RoomDetail("nope")
	assert.False(t, found)
}

func TestDispatchPanicIsolated(t *testing.T) {
	e := newTestEngine()
	startEngine(t, e)

	e.post(func() { panic("poisoned message") })

	// The loop must still be serving commands after the panic.
	ok := e.call(func() {})
	assert.True(t, ok)
}
