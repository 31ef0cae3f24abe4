package speech

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kundanmehta01/murf-voice-agent/internal/service/speech"
	"github.com/kundanmehta01/murf-voice-agent/pkg/utils"
)

// maxUploadBytes caps audio uploads at 25 MB.
const maxUploadBytes = 25 << 20

// Handler exposes the REST side of the speech service. The streaming side
// lives in the relay handler.
type Handler struct {
	svc *speech.Service
}

func New(svc *speech.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/generate-tts", h.handleGenerateTTS)
	r.Get("/voices", h.handleVoices)
	r.Post("/transcribe/file", h.handleTranscribeFile)
	r.Post("/upload-audio", h.handleUploadAudio)
	r.Post("/tts/echo", h.handleEcho)
}

// SessionID pulls the caller's session identity from the request. The
// header wins over the query parameter.
func SessionID(r *http.Request) string {
	if id := r.Header.Get("X-Session-ID"); id != "" {
		return id
	}
	return r.URL.Query().Get("session_id")
}

type generateTTSRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
}

func (h *Handler) handleGenerateTTS(w http.ResponseWriter, r *http.Request) {
	var req generateTTSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	audio, err := h.svc.Synthesize(r.Context(), SessionID(r), req.Text, req.VoiceID)
	if err != nil {
		if errors.Is(err, speech.ErrTTSNotConfigured) {
			utils.RespondError(w, http.StatusServiceUnavailable, "text-to-speech is not configured")
			return
		}
		utils.RespondError(w, http.StatusBadGateway, "speech synthesis failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"chunks": audio,
		"count":  len(audio),
	})
}

func (h *Handler) handleVoices(w http.ResponseWriter, r *http.Request) {
	voices, err := h.svc.Voices(r.Context(), SessionID(r))
	if err != nil {
		if errors.Is(err, speech.ErrTTSNotConfigured) {
			utils.RespondError(w, http.StatusServiceUnavailable, "text-to-speech is not configured")
			return
		}
		utils.RespondError(w, http.StatusBadGateway, "failed to fetch voices")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"voices": voices})
}

func (h *Handler) handleTranscribeFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}

	file, _, err := r.FormFile("audio")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	transcript, err := h.svc.TranscribeFile(r.Context(), SessionID(r), file)
	if err != nil {
		if errors.Is(err, speech.ErrSTTNotConfigured) {
			utils.RespondError(w, http.StatusServiceUnavailable, "speech-to-text is not configured")
			return
		}
		utils.RespondError(w, http.StatusBadGateway, "transcription failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"transcript": transcript.Text,
		"id":         transcript.ID,
	})
}

// handleUploadAudio accepts a recording and reports what was received. The
// file itself is discarded after measuring; transcription happens through
// the dedicated endpoints.
func (h *Handler) handleUploadAudio(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	size, err := io.Copy(io.Discard, file)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"filename":     header.Filename,
		"content_type": header.Header.Get("Content-Type"),
		"size_bytes":   size,
	})
}

// handleEcho transcribes a recording and speaks the transcript back.
func (h *Handler) handleEcho(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}

	file, _, err := r.FormFile("audio")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	sessionID := SessionID(r)
	transcript, err := h.svc.TranscribeFile(r.Context(), sessionID, file)
	if err != nil {
		if errors.Is(err, speech.ErrSTTNotConfigured) {
			utils.RespondError(w, http.StatusServiceUnavailable, "speech-to-text is not configured")
			return
		}
		utils.RespondError(w, http.StatusBadGateway, "transcription failed")
		return
	}
	if strings.TrimSpace(transcript.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "no speech detected")
		return
	}

	audio, err := h.svc.Synthesize(r.Context(), sessionID, transcript.Text, r.URL.Query().Get("voice_id"))
	if err != nil {
		if errors.Is(err, speech.ErrTTSNotConfigured) {
			utils.RespondError(w, http.StatusServiceUnavailable, "text-to-speech is not configured")
			return
		}
		utils.RespondError(w, http.StatusBadGateway, "speech synthesis failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"transcript": transcript.Text,
		"chunks":     audio,
		"count":      len(audio),
	})
}
