package protocol

import (
	"encoding/json"
	"time"

	"github.com/eldtechnologies/coderoom/internal/models"
)

// Recipient carries the per-recipient fields merged into every fanned-out
// message. Zero values are omitted, so direct replies stay unadorned.
type Recipient struct {
	RecipientID   string `json:"recipientId,omitempty"`
	RecipientName string `json:"recipientName,omitempty"`
}

// Personalizable is a broadcastable message: the fan-out produces one
// personalized copy per recipient.
type Personalizable interface {
	WithRecipient(id, name string) any
}

func now() int64 { return time.Now().UnixMilli() }

// RoomJoined is the direct reply to a successful join_room.
type RoomJoined struct {
	Type        string               `json:"type"`
	RoomID      string               `json:"roomId"`
	UserName    string               `json:"userName"`
	UserID      string               `json:"userId"`
	Code        string               `json:"code"`
	Version     int                  `json:"version"`
	Users       []models.Member      `json:"users"`
	ChatHistory []models.ChatMessage `json:"chatHistory"`
	IsReconnect bool                 `json:"isReconnect"`
}

func NewRoomJoined(roomID, userName, userID, code string, version int, users []models.Member, chat []models.ChatMessage, reconnect bool) RoomJoined {
	return RoomJoined{
		Type: "room_joined", RoomID: roomID, UserName: userName, UserID: userID,
		Code: code, Version: version, Users: users, ChatHistory: chat, IsReconnect: reconnect,
	}
}

// JoinRoomError is the direct reply to a rejected join_room.
type JoinRoomError struct {
	Type    string `json:"type"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewJoinRoomError(code, message string) JoinRoomError {
	return JoinRoomError{Type: "join_room_error", Error: code, Message: message}
}

// UserPresence announces a join, reconnect, or leave to the rest of the room.
type UserPresence struct {
	Type      string          `json:"type"`
	UserName  string          `json:"userName"`
	UserID    string          `json:"userId"`
	Users     []models.Member `json:"users,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
	Recipient
}

func (m UserPresence) WithRecipient(id, name string) any {
	m.RecipientID, m.RecipientName = id, name
	return m
}

func NewUserJoined(userName, userID string, users []models.Member) UserPresence {
	return UserPresence{Type: "user_joined", UserName: userName, UserID: userID, Users: users}
}

func NewUserReconnected(userName, userID string, users []models.Member) UserPresence {
	return UserPresence{Type: "user_reconnected", UserName: userName, UserID: userID, Users: users}
}

func NewUserLeft(userName, userID string) UserPresence {
	return UserPresence{Type: "user_left", UserName: userName, UserID: userID, Timestamp: now()}
}

// CodeChanged fans a document mutation out to the rest of the room.
type CodeChanged struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	Version     int    `json:"version"`
	UserName    string `json:"userName"`
	UserID      string `json:"userId"`
	Timestamp   int64  `json:"timestamp"`
	RoomID      string `json:"roomId"`
	ForceUpdate bool   `json:"forceUpdate"`
	Recipient
}

func (m CodeChanged) WithRecipient(id, name string) any {
	m.RecipientID, m.RecipientName = id, name
	return m
}

func NewCodeChanged(roomID, code string, version int, userName, userID string, force bool) CodeChanged {
	return CodeChanged{
		Type: "code_change", Code: code, Version: version, UserName: userName,
		UserID: userID, Timestamp: now(), RoomID: roomID, ForceUpdate: force,
	}
}

// CursorChanged fans a cursor move out to the rest of the room.
type CursorChanged struct {
	Type     string          `json:"type"`
	UserID   string          `json:"userId"`
	Cursor   json.RawMessage `json:"cursor"`
	UserName string          `json:"userName"`
	Recipient
}

func (m CursorChanged) WithRecipient(id, name string) any {
	m.RecipientID, m.RecipientName = id, name
	return m
}

func NewCursorChanged(userID string, cursor json.RawMessage, userName string) CursorChanged {
	return CursorChanged{Type: "cursor_changed", UserID: userID, Cursor: cursor, UserName: userName}
}

// ChatBroadcast fans one chat log entry out to the room.
type ChatBroadcast struct {
	Type string `json:"type"`
	models.ChatMessage
	RoomName string `json:"roomName,omitempty"`
	Recipient
}

func (m ChatBroadcast) WithRecipient(id, name string) any {
	m.RecipientID, m.RecipientName = id, name
	return m
}

func NewChatBroadcast(msg models.ChatMessage) ChatBroadcast {
	return ChatBroadcast{Type: "chat_message", ChatMessage: msg}
}

// ConflictNotice is the structured notice delivered to a conflict target.
type ConflictNotice struct {
	Type         string          `json:"type"`
	TargetUser   string          `json:"targetUser"`
	ConflictWith string          `json:"conflictWith"`
	Message      string          `json:"message"`
	Timestamp    int64           `json:"timestamp"`
	ConflictData json.RawMessage `json:"conflictData,omitempty"`
}

func NewConflictNotice(targetUser, conflictWith, message string, data json.RawMessage) ConflictNotice {
	return ConflictNotice{
		Type: "conflict_notification", TargetUser: targetUser, ConflictWith: conflictWith,
		Message: message, Timestamp: now(), ConflictData: data,
	}
}

// NotificationSent acknowledges a relayed conflict to its sender.
type NotificationSent struct {
	Type       string `json:"type"`
	TargetUser string `json:"targetUser"`
	Message    string `json:"message"`
	Timestamp  int64  `json:"timestamp"`
}

func NewNotificationSent(targetUser string) NotificationSent {
	return NotificationSent{Type: "notification_sent", TargetUser: targetUser, Message: "衝突通知已發送", Timestamp: now()}
}

// ErrorEnvelope is the generic error reply.
type ErrorEnvelope struct {
	Type      string `json:"type"`
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func NewError(errMsg, details string) ErrorEnvelope {
	return ErrorEnvelope{Type: "error", Error: errMsg, Details: details, Timestamp: now()}
}

// Pong replies to a ping.
type Pong struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

func NewPong() Pong { return Pong{Type: "pong", Timestamp: now()} }

// AIResponse carries the text-completion collaborator's answer.
type AIResponse struct {
	Type      string `json:"type"`
	Action    string `json:"action"`
	RequestID string `json:"requestId,omitempty"`
	Response  string `json:"response"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func NewAIResponse(action, requestID, response, errCode string) AIResponse {
	return AIResponse{
		Type: "ai_response", Action: action, RequestID: requestID,
		Response: response, Error: errCode, Timestamp: now(),
	}
}

// CodeExecutionResult reports a sandbox run to its requester.
type CodeExecutionResult struct {
	Type      string `json:"type"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

func NewCodeExecutionResult(success bool, message string) CodeExecutionResult {
	return CodeExecutionResult{Type: "code_execution_result", Success: success, Message: message, Timestamp: now()}
}

// UserExecutedCode tells the rest of the room that someone ran code.
type UserExecutedCode struct {
	Type      string `json:"type"`
	UserName  string `json:"userName"`
	Timestamp int64  `json:"timestamp"`
	Recipient
}

func (m UserExecutedCode) WithRecipient(id, name string) any {
	m.RecipientID, m.RecipientName = id, name
	return m
}

func NewUserExecutedCode(userName string) UserExecutedCode {
	return UserExecutedCode{Type: "user_executed_code", UserName: userName, Timestamp: now()}
}

// CodeLoaded answers a load_code version query.
type CodeLoaded struct {
	Type            string `json:"type"`
	Success         bool   `json:"success"`
	Code            string `json:"code,omitempty"`
	Version         int    `json:"version"`
	CurrentVersion  int    `json:"currentVersion"`
	IsAlreadyLatest bool   `json:"isAlreadyLatest"`
	RoomID          string `json:"roomId,omitempty"`
	Error           string `json:"error,omitempty"`
}

func NewCodeLoaded(roomID, code string, version, currentVersion int) CodeLoaded {
	return CodeLoaded{
		Type: "code_loaded", Success: true, Code: code, Version: version,
		CurrentVersion: currentVersion, IsAlreadyLatest: currentVersion >= version, RoomID: roomID,
	}
}

func NewCodeLoadError(errMsg string) CodeLoaded {
	return CodeLoaded{Type: "code_loaded", Success: false, Error: errMsg}
}

// SaveCodeSuccess acknowledges a named save.
type SaveCodeSuccess struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	SaveName  string `json:"saveName"`
	Timestamp int64  `json:"timestamp"`
}

func NewSaveCodeSuccess(version int, saveName string, ts int64) SaveCodeSuccess {
	return SaveCodeSuccess{Type: "save_code_success", Version: version, SaveName: saveName, Timestamp: ts}
}

// SaveCodeError reports a failed named save.
type SaveCodeError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func NewSaveCodeError(errMsg string) SaveCodeError {
	return SaveCodeError{Type: "save_code_error", Error: errMsg}
}

// CodeVersionUpdated tells the rest of the room about a named save.
type CodeVersionUpdated struct {
	Type     string `json:"type"`
	Version  int    `json:"version"`
	SavedBy  string `json:"savedBy"`
	SaveName string `json:"saveName,omitempty"`
	Recipient
}

func (m CodeVersionUpdated) WithRecipient(id, name string) any {
	m.RecipientID, m.RecipientName = id, name
	return m
}

func NewCodeVersionUpdated(version int, savedBy, saveName string) CodeVersionUpdated {
	return CodeVersionUpdated{Type: "code_version_updated", Version: version, SavedBy: savedBy, SaveName: saveName}
}

// TeacherAnnouncement is a teacher broadcast delivered into a room.
type TeacherAnnouncement struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	MessageType string `json:"messageType"`
	Timestamp   int64  `json:"timestamp"`
	Recipient
}

func (m TeacherAnnouncement) WithRecipient(id, name string) any {
	m.RecipientID, m.RecipientName = id, name
	return m
}

func NewTeacherAnnouncement(message, messageType string) TeacherAnnouncement {
	if messageType == "" {
		messageType = "info"
	}
	return TeacherAnnouncement{Type: "teacher_broadcast", Message: message, MessageType: messageType, Timestamp: now()}
}

// StatsUpdate is pushed to teacher monitors when aggregate state changes.
type StatsUpdate struct {
	Type string             `json:"type"`
	Data models.StatsUpdate `json:"data"`
}

func NewStatsUpdate(data models.StatsUpdate) StatsUpdate {
	data.Timestamp = now()
	return StatsUpdate{Type: "stats_update", Data: data}
}
