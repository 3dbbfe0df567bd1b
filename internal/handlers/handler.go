// Package handlers implements the read-only HTTP surface: health,
// status, client config and the teacher dashboard endpoints. All room
// state is read through the engine's accessors, which serialize with
// live dispatch.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/eldtechnologies/coderoom/internal/config"
	"github.com/eldtechnologies/coderoom/internal/engine"
	"github.com/eldtechnologies/coderoom/internal/store"
)

const version = "3.0.0"

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	engine *engine.Engine
	cfg    *config.Config
	data   store.DataStore  // may be nil
	chats  *store.ChatCache // may be nil
}

// NewHandler creates a Handler. data and chats are optional.
func NewHandler(eng *engine.Engine, cfg *config.Config, data store.DataStore, chats *store.ChatCache) *Handler {
	return &Handler{engine: eng, cfg: cfg, data: data, chats: chats}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}
