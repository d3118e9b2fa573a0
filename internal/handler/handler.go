package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Jamolkhon5/nexter/internal/ai/project/service"
	"github.com/Jamolkhon5/nexter/internal/models"
	"github.com/Jamolkhon5/nexter/internal/repository"
)

type Handler struct {
	sessions *service.Sessions
	log      zerolog.Logger
}

func NewHandler(sessions *service.Sessions, log zerolog.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		log:      log.With().Str("component", "chat_handler").Logger(),
	}
}

// SessionResponse is the session snapshot plus the events queued since the last poll.
type SessionResponse struct {
	SessionID string `json:"session_id"`
	service.Snapshot
	Events []service.Event `json:"events"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/v1/sessions", h.CreateSession)
	r.Get("/v1/sessions/{sessionID}", h.GetSession)
	r.Delete("/v1/sessions/{sessionID}", h.CloseSession)
	r.Post("/v1/sessions/{sessionID}/select", h.SelectProject)
	r.Post("/v1/sessions/{sessionID}/messages", h.SendMessage)
	r.Post("/v1/sessions/{sessionID}/reset", h.Reset)
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Create()
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": sess.ID})
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snapshot(sess))
}

func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(chi.URLParam(r, "sessionID")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SelectProject(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req struct {
		ProjectID int64 `json:"project_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.ProjectID == models.GlobalProjectID {
		sess.Organizer.Select(r.Context(), nil)
		writeJSON(w, http.StatusOK, snapshot(sess))
		return
	}

	project, err := h.sessions.LoadProject(r.Context(), req.ProjectID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	sess.Organizer.Select(r.Context(), &project)
	writeJSON(w, http.StatusOK, snapshot(sess))
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Input string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := sess.Organizer.Send(r.Context(), req.Input); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot(sess))
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Organizer.Reset(r.Context())
	writeJSON(w, http.StatusOK, snapshot(sess))
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*service.Session, bool) {
	sess, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return sess, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, repository.ErrProjectNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrEmptyInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.log.Error().Err(err).Msg("request failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func snapshot(sess *service.Session) SessionResponse {
	events := sess.Events.Drain()
	if events == nil {
		events = []service.Event{}
	}
	return SessionResponse{
		SessionID: sess.ID,
		Snapshot:  sess.Organizer.Snapshot(),
		Events:    events,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
