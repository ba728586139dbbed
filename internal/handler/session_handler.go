package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"smsbridge-backend/internal/config"
	"smsbridge-backend/internal/session"
	"smsbridge-backend/internal/utils"
	"smsbridge-backend/internal/websocket"
)

type SessionHandler struct {
	Sessions *session.Manager
	WSHub    *websocket.Hub
	Config   *config.Config
}

func NewSessionHandler(sessions *session.Manager, wsHub *websocket.Hub, cfg *config.Config) *SessionHandler {
	return &SessionHandler{
		Sessions: sessions,
		WSHub:    wsHub,
		Config:   cfg,
	}
}

func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.Sessions.Create()
	utils.SuccessResponse(w, http.StatusCreated, map[string]string{
		"session_id": s.ID,
	}, "Session created")
}

func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	h.Sessions.Remove(vars["id"])
	utils.SuccessResponse(w, http.StatusOK, nil, "Session closed")
}

// Command routes one UI action into the session's dispatch table.
func (h *SessionHandler) Command(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s := h.Sessions.Get(vars["id"])
	if s == nil {
		utils.ErrorResponse(w, http.StatusNotFound, "Unknown session")
		return
	}

	var cmd session.Command
	if err := utils.DecodeJSON(r, &cmd); err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(cmd.Action) == "" {
		utils.ErrorResponse(w, http.StatusBadRequest, "Missing action")
		return
	}

	if err := s.Dispatch(r.Context(), cmd); err != nil {
		if errors.Is(err, session.ErrUnknownAction) {
			utils.ErrorResponse(w, http.StatusNotFound, err.Error())
			return
		}
		utils.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.SuccessResponse(w, http.StatusOK, nil, "")
}

// WebSocketHandler attaches a presentation client to the session's event
// stream and pushes the full state so the page can paint.
func (h *SessionHandler) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	s := h.Sessions.Get(id)
	if s == nil {
		utils.ErrorResponse(w, http.StatusNotFound, "Unknown session")
		return
	}

	websocket.ServeWs(h.WSHub, w, r, id, h.Config.AllowedOrigins)
	s.RenderAll()
}
