package http

import (
	"encoding/json"
	"net/http"

	"liveroom/auth"
	"liveroom/room"

	"github.com/rs/zerolog/log"
)

type Handlers struct {
	authService *auth.Service
	rooms       *room.Service
}

func NewHandlers(authService *auth.Service, rooms *room.Service) *Handlers {
	return &Handlers{
		authService: authService,
		rooms:       rooms,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write JSON response")
	}
}

// User handlers

func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserName     string `json:"user_name"`
		LeaderCardID int64  `json:"leader_card_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	token, err := h.authService.CreateUser(req.UserName, req.LeaderCardID)
	if err != nil {
		switch err {
		case auth.ErrInvalidName:
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			log.Error().Err(err).Msg("create user failed")
			http.Error(w, "Failed to create user", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"user_token": token})
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	token := BearerToken(r)
	if token == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.authService.GetUserByToken(token)
	if err != nil {
		if err == auth.ErrInvalidToken {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Msg("get user failed")
		http.Error(w, "Failed to get user", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":             user.ID,
		"name":           user.Name,
		"leader_card_id": user.LeaderCardID,
	})
}

func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserName     string `json:"user_name"`
		LeaderCardID int64  `json:"leader_card_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	token := BearerToken(r)
	if token == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.authService.UpdateUser(token, req.UserName, req.LeaderCardID); err != nil {
		switch err {
		case auth.ErrInvalidName:
			http.Error(w, err.Error(), http.StatusBadRequest)
		case auth.ErrInvalidToken:
			http.Error(w, "User not found", http.StatusNotFound)
		default:
			log.Error().Err(err).Msg("update user failed")
			http.Error(w, "Failed to update user", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{})
}

// Room handlers

func (h *Handlers) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LiveID     int64 `json:"live_id"`
		Difficulty int   `json:"select_difficulty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	roomID, err := h.rooms.CreateRoom(r.Context(), userID, req.LiveID, room.Difficulty(req.Difficulty))
	if err != nil {
		switch err {
		case room.ErrInvalidDifficulty:
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			log.Error().Err(err).Msg("create room failed")
			http.Error(w, "Failed to create room", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"room_id": roomID})
}

func (h *Handlers) ListRooms(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LiveID int64 `json:"live_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rooms, err := h.rooms.ListRooms(r.Context(), req.LiveID)
	if err != nil {
		log.Error().Err(err).Msg("list rooms failed")
		http.Error(w, "Failed to list rooms", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"room_info_list": rooms})
}

func (h *Handlers) JoinRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoomID     int64 `json:"room_id"`
		Difficulty int   `json:"select_difficulty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	result, err := h.rooms.Join(r.Context(), req.RoomID, userID, room.Difficulty(req.Difficulty))
	if err != nil {
		// Storage faults surface as the OtherError outcome, never as a
		// raw store error on the wire.
		log.Error().Err(err).Int64("room_id", req.RoomID).Msg("join room failed")
		result = room.JoinOtherError
	}

	writeJSON(w, http.StatusOK, map[string]room.JoinResult{"join_room_result": result})
}

func (h *Handlers) WaitRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoomID int64 `json:"room_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	status, users, err := h.rooms.Wait(r.Context(), req.RoomID, userID)
	if err != nil {
		switch err {
		case room.ErrRoomNotFound:
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			log.Error().Err(err).Msg("wait room failed")
			http.Error(w, "Failed to get room", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         status,
		"room_user_list": users,
	})
}

func (h *Handlers) StartRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoomID int64 `json:"room_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.rooms.Start(r.Context(), req.RoomID, userID); err != nil {
		switch err {
		case room.ErrNotOwner:
			http.Error(w, err.Error(), http.StatusForbidden)
		case room.ErrAlreadyStarted:
			http.Error(w, err.Error(), http.StatusBadRequest)
		case room.ErrRoomNotFound:
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			log.Error().Err(err).Msg("start room failed")
			http.Error(w, "Failed to start room", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{})
}

func (h *Handlers) EndRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoomID      int64   `json:"room_id"`
		JudgeCounts []int64 `json:"judge_count_list"`
		Score       int64   `json:"score"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if len(req.JudgeCounts) != 5 {
		http.Error(w, "judge_count_list must have 5 entries", http.StatusBadRequest)
		return
	}
	var judges room.JudgeCounts
	copy(judges[:], req.JudgeCounts)

	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.rooms.SubmitResult(r.Context(), req.RoomID, userID, req.Score, judges); err != nil {
		switch err {
		case room.ErrInvalidResult:
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			log.Error().Err(err).Msg("submit result failed")
			http.Error(w, "Failed to submit result", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{})
}

func (h *Handlers) RoomResults(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoomID int64 `json:"room_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	results, err := h.rooms.Results(r.Context(), req.RoomID)
	if err != nil {
		log.Error().Err(err).Msg("room results failed")
		http.Error(w, "Failed to get results", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"result_user_list": results})
}

func (h *Handlers) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoomID int64 `json:"room_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.rooms.Leave(r.Context(), req.RoomID, userID); err != nil {
		log.Error().Err(err).Msg("leave room failed")
		http.Error(w, "Failed to leave room", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{})
}
