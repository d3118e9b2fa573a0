package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Jamolkhon5/nexter/internal/ai/project/service"
	"github.com/Jamolkhon5/nexter/internal/repository"
)

type ProjectAssistantHandler struct {
	sessions *service.Sessions
	log      zerolog.Logger
}

func NewProjectAssistantHandler(sessions *service.Sessions, log zerolog.Logger) *ProjectAssistantHandler {
	return &ProjectAssistantHandler{
		sessions: sessions,
		log:      log.With().Str("component", "organize_handler").Logger(),
	}
}

// Organize starts or resumes the organize conversation for a project.
func (h *ProjectAssistantHandler) Organize(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	var req struct {
		ProjectID int64 `json:"project_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ProjectID <= 0 {
		http.Error(w, "project_id is required", http.StatusBadRequest)
		return
	}

	project, err := h.sessions.LoadProject(r.Context(), req.ProjectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Int64("project_id", req.ProjectID).Msg("failed to load project")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	sess.Organizer.Organize(r.Context(), project)

	events := sess.Events.Drain()
	if events == nil {
		events = []service.Event{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		SessionID string `json:"session_id"`
		service.Snapshot
		Events []service.Event `json:"events"`
	}{
		SessionID: sess.ID,
		Snapshot:  sess.Organizer.Snapshot(),
		Events:    events,
	})
}

// RegisterRoutes registers the organize routes.
func (h *ProjectAssistantHandler) RegisterRoutes(r chi.Router) {
	r.Post("/v1/sessions/{sessionID}/organize", h.Organize)
}
