package models

import "encoding/json"

// Member is a room-scoped view of a live connection.
type Member struct {
	UserID   string          `json:"userId"`
	UserName string          `json:"userName"`
	IsActive bool            `json:"isActive"`
	Cursor   json.RawMessage `json:"cursor,omitempty"`
}
