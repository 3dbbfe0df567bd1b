package models

// ChatMessage represents one entry in a room's append-only chat log.
type ChatMessage struct {
	ID        string `json:"id"` // ULID
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"` // Unix ms
	IsHistory bool   `json:"isHistory"`
	IsTeacher bool   `json:"isTeacher,omitempty"`
	IsSystem  bool   `json:"isSystemMessage,omitempty"`
}

// SaveEntry is a named save in a room's capacity-bounded history.
type SaveEntry struct {
	Code      string `json:"code"`
	Version   int    `json:"version"`
	SaveName  string `json:"saveName"`
	Timestamp int64  `json:"timestamp"`
	SavedBy   string `json:"savedBy"`
}
