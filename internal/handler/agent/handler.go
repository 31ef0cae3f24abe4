package agent

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	agentService "github.com/kundanmehta01/murf-voice-agent/internal/service/agent"
	sessionService "github.com/kundanmehta01/murf-voice-agent/internal/service/session"
	"github.com/kundanmehta01/murf-voice-agent/pkg/utils"
)

// Handler serves the conversational agent endpoints. Collaborator failures
// surface as spoken fallback text with a 200, never as a server error.
type Handler struct {
	agent    *agentService.Agent
	sessions *sessionService.Service
}

func New(agent *agentService.Agent, sessions *sessionService.Service) *Handler {
	return &Handler{agent: agent, sessions: sessions}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/agent/chat/{sessionID}", h.handleChat)
	r.Get("/agent/history/{sessionID}", h.handleGetHistory)
	r.Delete("/agent/history/{sessionID}", h.handleClearHistory)
	r.Get("/agent/persona/{sessionID}", h.handleGetPersona)
	r.Post("/agent/persona/{sessionID}", h.handleSetPersona)
	r.Post("/llm/query", h.handleQuery)
}

type chatRequest struct {
	Message string `json:"message"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	reply := h.agent.Respond(r.Context(), sessionID, req.Message)
	utils.RespondJSON(w, http.StatusOK, reply)
}

func (h *Handler) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	history := h.sessions.History(sessionID)
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"messages":   history,
		"count":      len(history),
	})
}

func (h *Handler) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	h.sessions.ClearHistory(sessionID)
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"session_id": sessionID,
		"status":     "cleared",
	})
}

func (h *Handler) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	utils.RespondJSON(w, http.StatusOK, h.sessions.Persona(sessionID))
}

type setPersonaRequest struct {
	PersonaID string `json:"persona_id"`
}

func (h *Handler) handleSetPersona(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req setPersonaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.sessions.SetPersona(sessionID, req.PersonaID)
	if err != nil {
		if errors.Is(err, sessionService.ErrUnknownPersona) {
			utils.RespondError(w, http.StatusNotFound, "persona not found")
			return
		}
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, p)
}

type queryRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id"`
}

// handleQuery is a stateless one-shot query that still resolves the
// session's persona when a session id is provided.
func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	reply := h.agent.Respond(r.Context(), req.SessionID, req.Text)
	utils.RespondJSON(w, http.StatusOK, reply)
}
