package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"room-coordinator/internal/models"
	"room-coordinator/internal/services"
	"room-coordinator/pkg/logger"
)

type RoomHandlers struct {
	roomService *services.RoomService
	teardown    services.Teardown
}

func NewRoomHandlers(roomService *services.RoomService, teardown services.Teardown) *RoomHandlers {
	return &RoomHandlers{
		roomService: roomService,
		teardown:    teardown,
	}
}

func (h *RoomHandlers) DiscoverRooms(w http.ResponseWriter, r *http.Request) {
	lat, lng, err := latLngFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rooms, err := h.roomService.DiscoverRooms(r.Context(), lat, lng)
	if err != nil {
		logger.Error("Discover rooms error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to discover rooms")
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (h *RoomHandlers) NearbyRooms(w http.ResponseWriter, r *http.Request) {
	lat, lng, err := latLngFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rooms, err := h.roomService.NearbyRooms(r.Context(), lat, lng)
	if err != nil {
		logger.Error("Nearby rooms error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list nearby rooms")
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (h *RoomHandlers) NearbyCount(w http.ResponseWriter, r *http.Request) {
	lat, lng, err := latLngFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	count, err := h.roomService.NearbyActiveCount(r.Context(), lat, lng)
	if err != nil {
		logger.Error("Nearby count error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to count active users")
		return
	}
	writeJSON(w, http.StatusOK, count)
}

func (h *RoomHandlers) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := roomIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid room ID")
		return
	}

	rm, err := h.roomService.GetRoom(r.Context(), roomID)
	if err != nil {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}
	writeJSON(w, http.StatusOK, rm)
}

func (h *RoomHandlers) RoomMessages(w http.ResponseWriter, r *http.Request) {
	roomID, err := roomIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid room ID")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	messages, err := h.roomService.RoomHistory(r.Context(), roomID, limit)
	if err != nil {
		logger.Error("Room history error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *RoomHandlers) CreateUserRoom(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	rm, err := h.roomService.CreateUserRoom(r.Context(), &req)
	if err != nil {
		logger.Error("Create room error: %v", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, rm)
}

func (h *RoomHandlers) UserRooms(w http.ResponseWriter, r *http.Request) {
	createdBy := r.URL.Query().Get("createdBy")
	if createdBy == "" {
		writeError(w, http.StatusBadRequest, "createdBy is required")
		return
	}

	rooms, err := h.roomService.UserRooms(r.Context(), createdBy)
	if err != nil {
		logger.Error("User rooms error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list user rooms")
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (h *RoomHandlers) UserRoomSlots(w http.ResponseWriter, r *http.Request) {
	createdBy := r.URL.Query().Get("createdBy")
	if createdBy == "" {
		writeError(w, http.StatusBadRequest, "createdBy is required")
		return
	}

	slots, err := h.roomService.UserRoomSlots(r.Context(), createdBy)
	if err != nil {
		logger.Error("Room slots error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to check room slots")
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

func (h *RoomHandlers) CleanupRooms(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.roomService.CleanupExpired(r.Context(), h.teardown)
	if err != nil {
		logger.Error("Cleanup error: %v", err)
		writeError(w, http.StatusInternalServerError, "cleanup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

func latLngFromQuery(r *http.Request) (float64, float64, error) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("lat is required")
	}
	lng, err := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("lng is required")
	}
	return lat, lng, nil
}

func roomIDFromPath(r *http.Request) (string, error) {
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) < 3 || parts[2] == "" {
		return "", fmt.Errorf("invalid path")
	}
	return parts[2], nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"statusCode": status,
		"message":    message,
	})
}
