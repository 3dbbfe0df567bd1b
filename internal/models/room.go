package models

// RoomSummary is the aggregate view served to the teacher dashboard.
type RoomSummary struct {
	ID           string   `json:"id"`
	UserCount    int      `json:"userCount"`
	Users        []Member `json:"users"`
	LastActivity int64    `json:"lastActivity"`
	CreatedAt    int64    `json:"createdAt"`
	Version      int      `json:"version"`
	CodeLength   int      `json:"codeLength"`
	ChatCount    int      `json:"chatCount"`
}

// RoomDetail is the full per-room view for the teacher dashboard.
type RoomDetail struct {
	ID           string        `json:"id"`
	Users        []Member      `json:"users"`
	Code         string        `json:"code"`
	Version      int           `json:"version"`
	LastEditedBy string        `json:"lastEditedBy,omitempty"`
	ChatHistory  []ChatMessage `json:"chatHistory"`
	CreatedAt    int64         `json:"createdAt"`
	LastActivity int64         `json:"lastActivity"`
	CodeHistory  []SaveEntry   `json:"codeHistory"`
}
