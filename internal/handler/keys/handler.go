package keys

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	speechHandler "github.com/kundanmehta01/murf-voice-agent/internal/handler/speech"
	"github.com/kundanmehta01/murf-voice-agent/internal/service/keys"
	speechService "github.com/kundanmehta01/murf-voice-agent/internal/service/speech"
	weatherService "github.com/kundanmehta01/murf-voice-agent/internal/service/weather"
	"github.com/kundanmehta01/murf-voice-agent/pkg/utils"
)

// Handler manages per-session vendor API key overrides. Keys are accepted,
// validated and masked; they are never echoed back in full.
type Handler struct {
	store   *keys.Store
	speech  *speechService.Service
	weather *weatherService.Client
}

// New builds the handler. speech and weather may be nil when those
// collaborators are not running; their connectivity tests then report
// unavailable.
func New(store *keys.Store, speech *speechService.Service, weather *weatherService.Client) *Handler {
	return &Handler{store: store, speech: speech, weather: weather}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/config/api-keys", h.handleSetKey)
	r.Get("/config/api-keys/status", h.handleStatus)
	r.Delete("/config/api-keys", h.handleDeleteKeys)
	r.Get("/test/{service}", h.handleTest)
}

type setKeyRequest struct {
	Service string `json:"service"`
	Key     string `json:"key"`
}

func (h *Handler) handleSetKey(w http.ResponseWriter, r *http.Request) {
	var req setKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := speechHandler.SessionID(r)
	if err := h.store.Set(sessionID, req.Service, req.Key); err != nil {
		switch {
		case errors.Is(err, keys.ErrUnknownService):
			utils.RespondError(w, http.StatusBadRequest, "unknown service")
		case errors.Is(err, keys.ErrInvalidKey):
			utils.RespondError(w, http.StatusBadRequest, err.Error())
		default:
			utils.RespondError(w, http.StatusInternalServerError, "failed to store key")
		}
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"service":     req.Service,
		"key_preview": keys.Preview(req.Key),
		"status":      "stored",
	})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := speechHandler.SessionID(r)
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"services": h.store.StatusFor(sessionID),
	})
}

func (h *Handler) handleDeleteKeys(w http.ResponseWriter, r *http.Request) {
	sessionID := speechHandler.SessionID(r)
	h.store.Delete(sessionID)
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleTest verifies the session's key for one service against the vendor.
// The LLM key has no cheap vendor call, so presence of a valid-shaped key
// counts as passing.
func (h *Handler) handleTest(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	sessionID := speechHandler.SessionID(r)

	if !keys.Known(service) {
		utils.RespondError(w, http.StatusBadRequest, "unknown service")
		return
	}
	_, source, ok := h.store.Resolve(sessionID, service)
	if !ok {
		utils.RespondError(w, http.StatusServiceUnavailable, "no key configured for "+service)
		return
	}

	var err error
	switch service {
	case keys.ServiceAssemblyAI:
		if h.speech == nil {
			utils.RespondError(w, http.StatusServiceUnavailable, "speech service is not running")
			return
		}
		err = h.speech.ProbeSTT(r.Context(), sessionID)
	case keys.ServiceMurf:
		if h.speech == nil {
			utils.RespondError(w, http.StatusServiceUnavailable, "speech service is not running")
			return
		}
		err = h.speech.ProbeTTS(r.Context(), sessionID)
	case keys.ServiceOpenWeather:
		if h.weather == nil {
			utils.RespondError(w, http.StatusServiceUnavailable, "weather service is not running")
			return
		}
		_, err = h.weather.Geocode(r.Context(), "London")
	case keys.ServiceLLM:
		// shape was validated when the key was stored
	}

	if err != nil {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"service": service,
			"ok":      false,
			"error":   "vendor check failed",
		})
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"service": service,
		"ok":      true,
		"source":  source,
	})
}
