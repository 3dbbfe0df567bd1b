// Package protocol defines the JSON message envelope exchanged over a
// websocket connection: one object per frame, discriminated by "type".
// Inbound payloads are decoded and validated here, before dispatch; the
// room engine only ever sees well-formed, typed messages.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound message types.
const (
	TypePing                 = "ping"
	TypeJoinRoom             = "join_room"
	TypeLeaveRoom            = "leave_room"
	TypeCodeChange           = "code_change"
	TypeCursorChange         = "cursor_change"
	TypeChatMessage          = "chat_message"
	TypeConflictNotification = "conflict_notification"
	TypeAIRequest            = "ai_request"
	TypeRunCode              = "run_code"
	TypeLoadCode             = "load_code"
	TypeSaveCode             = "save_code"
	TypeTeacherMonitor       = "teacher_monitor"
	TypeTeacherBroadcast     = "teacher_broadcast"
	TypeTeacherChat          = "teacher_chat"
)

// ErrUnknownType reports an envelope whose type has no registered schema.
var ErrUnknownType = errors.New("unknown message type")

// Ping requests a liveness reply.
type Ping struct{}

// JoinRoom joins (or reconnects to) a named room. A missing userName is
// allowed: the engine assigns a generated display name.
type JoinRoom struct {
	Room     string `json:"room"`
	UserName string `json:"userName,omitempty"`
}

func (m *JoinRoom) validate() error {
	if m.Room == "" {
		return errors.New("room is required")
	}
	return nil
}

// LeaveRoom leaves the current (or named) room.
type LeaveRoom struct {
	Room string `json:"room,omitempty"`
}

// CodeChange replaces the room document and advances its version.
type CodeChange struct {
	Room        string `json:"room,omitempty"`
	Code        string `json:"code"`
	ForceUpdate bool   `json:"forceUpdate,omitempty"`
}

// CursorChange reports the sender's cursor position.
type CursorChange struct {
	Room   string          `json:"room,omitempty"`
	Cursor json.RawMessage `json:"cursor"`
}

func (m *CursorChange) validate() error {
	if len(m.Cursor) == 0 {
		return errors.New("cursor is required")
	}
	return nil
}

// ChatMessage appends to the room chat log.
type ChatMessage struct {
	Room    string `json:"room,omitempty"`
	Message string `json:"message"`
}

func (m *ChatMessage) validate() error {
	if m.Message == "" {
		return errors.New("message is required")
	}
	return nil
}

// ConflictNotification relays a conflict signal to a named member.
type ConflictNotification struct {
	TargetUser   string          `json:"targetUser"`
	Message      string          `json:"message,omitempty"`
	ConflictData json.RawMessage `json:"conflictData,omitempty"`
}

func (m *ConflictNotification) validate() error {
	if m.TargetUser == "" {
		return errors.New("targetUser is required")
	}
	return nil
}

// AIRequestData carries the per-action payload of an ai_request.
type AIRequestData struct {
	Code          string `json:"code,omitempty"`
	UserCode      string `json:"userCode,omitempty"`
	ServerCode    string `json:"serverCode,omitempty"`
	UserVersion   int    `json:"userVersion,omitempty"`
	ServerVersion int    `json:"serverVersion,omitempty"`
	ConflictUser  string `json:"conflictUser,omitempty"`
	RoomID        string `json:"roomId,omitempty"`
}

// AIRequest delegates to the text-completion collaborator.
type AIRequest struct {
	Action    string        `json:"action"`
	RequestID string        `json:"requestId,omitempty"`
	Data      AIRequestData `json:"data,omitempty"`
}

func (m *AIRequest) validate() error {
	if m.Action == "" {
		return errors.New("action is required")
	}
	return nil
}

// RunCode submits code to the execution sandbox.
type RunCode struct {
	Room string `json:"room,omitempty"`
	Code string `json:"code"`
}

// LoadCode asks whether the client's document version is current.
type LoadCode struct {
	Room           string `json:"room,omitempty"`
	CurrentVersion int    `json:"currentVersion,omitempty"`
}

// SaveCode performs a named save with version-advance semantics.
type SaveCode struct {
	Code     string `json:"code"`
	SaveName string `json:"saveName,omitempty"`
}

// TeacherMonitor registers the connection as a teacher monitor.
type TeacherMonitor struct{}

// TeacherBroadcastData addresses a teacher announcement.
type TeacherBroadcastData struct {
	TargetRoom  string `json:"targetRoom"`
	Message     string `json:"message"`
	MessageType string `json:"messageType,omitempty"`
}

// TeacherBroadcast pushes an announcement into a room.
type TeacherBroadcast struct {
	Data TeacherBroadcastData `json:"data"`
}

func (m *TeacherBroadcast) validate() error {
	if m.Data.TargetRoom == "" || m.Data.Message == "" {
		return errors.New("data.targetRoom and data.message are required")
	}
	return nil
}

// TeacherChatData addresses a teacher chat message; targetRoom may be "all".
type TeacherChatData struct {
	TargetRoom  string `json:"targetRoom"`
	Message     string `json:"message"`
	TeacherName string `json:"teacherName,omitempty"`
}

// TeacherChat sends a chat message into one room or all rooms.
type TeacherChat struct {
	Data TeacherChatData `json:"data"`
}

func (m *TeacherChat) validate() error {
	if m.Data.TargetRoom == "" || m.Data.Message == "" {
		return errors.New("data.targetRoom and data.message are required")
	}
	return nil
}

type validator interface{ validate() error }

// schemas is the closed set of inbound message types. Adding a handler
// without a schema entry is a programming error caught at dispatch time.
var schemas = map[string]func() any{
	TypePing:                 func() any { return &Ping{} },
	TypeJoinRoom:             func() any { return &JoinRoom{} },
	TypeLeaveRoom:            func() any { return &LeaveRoom{} },
	TypeCodeChange:           func() any { return &CodeChange{} },
	TypeCursorChange:         func() any { return &CursorChange{} },
	TypeChatMessage:          func() any { return &ChatMessage{} },
	TypeConflictNotification: func() any { return &ConflictNotification{} },
	TypeAIRequest:            func() any { return &AIRequest{} },
	TypeRunCode:              func() any { return &RunCode{} },
	TypeLoadCode:             func() any { return &LoadCode{} },
	TypeSaveCode:             func() any { return &SaveCode{} },
	TypeTeacherMonitor:       func() any { return &TeacherMonitor{} },
	TypeTeacherBroadcast:     func() any { return &TeacherBroadcast{} },
	TypeTeacherChat:          func() any { return &TeacherChat{} },
}

// envelope is the discriminator read before the payload.
type envelope struct {
	Type string `json:"type"`
}

// Parse decodes one inbound frame into its typed, validated message.
// The returned type string is always set when the frame was at least a
// JSON object with a string "type", even if decoding the payload failed.
func Parse(data []byte) (msgType string, msg any, err error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("malformed envelope: %w", err)
	}
	if env.Type == "" {
		return "", nil, errors.New("missing message type")
	}

	newMsg, ok := schemas[env.Type]
	if !ok {
		return env.Type, nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	msg = newMsg()
	if err := json.Unmarshal(data, msg); err != nil {
		return env.Type, nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
	}
	if v, ok := msg.(validator); ok {
		if err := v.validate(); err != nil {
			return env.Type, nil, fmt.Errorf("invalid %s: %w", env.Type, err)
		}
	}
	return env.Type, msg, nil
}
