package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/uidraft/backend/internal/auth"
	"github.com/uidraft/backend/internal/models"
	"github.com/uidraft/backend/internal/presence"
	"github.com/uidraft/backend/internal/rooms"
)

type RoomsHandler struct {
	store    *rooms.Store
	auth     *auth.Service
	presence *presence.Tracker
	logger   zerolog.Logger
}

func NewRoomsHandler(store *rooms.Store, authService *auth.Service, tracker *presence.Tracker, logger zerolog.Logger) *RoomsHandler {
	return &RoomsHandler{
		store:    store,
		auth:     authService,
		presence: tracker,
		logger:   logger.With().Str("handler", "rooms").Logger(),
	}
}

func (h *RoomsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "room name is required")
		return
	}

	room, err := h.store.Create(r.Context(), userID, req.Name)
	if err != nil {
		h.logger.Error().Err(err).Msg("room creation failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, room)
}

func (h *RoomsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	list, err := h.store.ListForUser(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("room listing failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if list == nil {
		list = []*models.Room{}
	}

	writeJSON(w, http.StatusOK, list)
}

func (h *RoomsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	roomID, ok := pathID(w, r)
	if !ok {
		return
	}

	room, err := h.store.Get(r.Context(), roomID, userID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	// Surface how many live editors the relay currently has in this room.
	active := h.presence.Members(r.Context(), room.ID.String())
	writeJSON(w, http.StatusOK, struct {
		*models.Room
		ActiveConnections int `json:"activeConnections"`
	}{room, len(active)})
}

func (h *RoomsHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	roomID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Name  string        `json:"name"`
		Views []models.View `json:"views"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	room, err := h.store.Update(r.Context(), roomID, userID, req.Name, req.Views)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, room)
}

func (h *RoomsHandler) Share(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	roomID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "collaborator email is required")
		return
	}

	collaborator, err := h.auth.UserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error().Err(err).Msg("collaborator lookup failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := h.store.Share(r.Context(), roomID, userID, collaborator.ID); err != nil {
		h.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "room shared"})
}

func (h *RoomsHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var req struct {
		AccessCode string `json:"accessCode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccessCode == "" {
		writeError(w, http.StatusBadRequest, "access code is required")
		return
	}

	room, err := h.store.JoinByCode(r.Context(), req.AccessCode, userID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, room)
}

func (h *RoomsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	roomID, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), roomID, userID); err != nil {
		h.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "room deleted"})
}

func (h *RoomsHandler) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rooms.ErrRoomNotFound):
		writeError(w, http.StatusNotFound, "room not found")
	case errors.Is(err, rooms.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "access denied")
	case errors.Is(err, rooms.ErrAlreadyCollaborator):
		writeError(w, http.StatusBadRequest, "already a collaborator")
	default:
		h.logger.Error().Err(err).Msg("room store error")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid room id")
		return uuid.Nil, false
	}
	return id, true
}
