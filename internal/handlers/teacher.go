package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eldtechnologies/coderoom/internal/models"
)

// TeacherRooms handles GET /api/teacher/rooms: the cross-room
// aggregate, computed after a stale-member purge.
func (h *Handler) TeacherRooms(w http.ResponseWriter, r *http.Request) {
	report := h.engine.TeacherRooms()
	h.JSON(w, http.StatusOK, struct {
		models.TeacherReport
		Timestamp int64 `json:"timestamp"`
	}{report, time.Now().UnixMilli()})
}

// RoomDetailResponse augments the engine's view with the cached recent
// chat tail when Redis is configured.
type RoomDetailResponse struct {
	models.RoomDetail
	RecentChat []models.ChatMessage `json:"recentChat,omitempty"`
	Timestamp  int64                `json:"timestamp"`
}

// TeacherRoomDetail handles GET /api/teacher/room/{roomID}.
func (h *Handler) TeacherRoomDetail(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")

	detail, found := h.engine.RoomDetail(roomID)
	if !found {
		h.Error(w, http.StatusNotFound, "房間不存在")
		return
	}

	resp := RoomDetailResponse{RoomDetail: detail, Timestamp: time.Now().UnixMilli()}
	if h.chats != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if recent, err := h.chats.GetRecent(ctx, roomID, 50); err == nil {
			resp.RecentChat = recent
		}
	}

	h.JSON(w, http.StatusOK, resp)
}
