package productivity

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	speechHandler "github.com/kundanmehta01/murf-voice-agent/internal/handler/speech"
	"github.com/kundanmehta01/murf-voice-agent/internal/service/classify"
	"github.com/kundanmehta01/murf-voice-agent/internal/service/productivity"
	"github.com/kundanmehta01/murf-voice-agent/pkg/utils"
)

// Handler exposes the time, task, timer and tracking endpoints. Tasks,
// timers and tracking entries are scoped to the caller's session, taken
// from the X-Session-ID header or session_id query parameter.
type Handler struct {
	svc *productivity.Service
}

func New(svc *productivity.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/time/current", h.handleCurrentTime)
	r.Get("/time/status", h.handleTimeStatus)
	r.Post("/tasks", h.handleAddTask)
	r.Get("/tasks", h.handleListTasks)
	r.Patch("/tasks/{taskID}/complete", h.handleCompleteTask)
	r.Post("/timers", h.handleStartTimer)
	r.Get("/timers", h.handleListTimers)
	r.Post("/time-tracking/start", h.handleStartTracking)
	r.Post("/time-tracking/stop", h.handleStopTracking)
	r.Get("/time-tracking/sessions", h.handleListSessions)
}

func (h *Handler) handleCurrentTime(w http.ResponseWriter, r *http.Request) {
	tz := r.URL.Query().Get("timezone")
	format := r.URL.Query().Get("format")
	utils.RespondJSON(w, http.StatusOK, h.svc.CurrentTime(tz, format))
}

func (h *Handler) handleTimeStatus(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"server_time": h.svc.CurrentTime("", "iso").Time,
	})
}

type addTaskRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	Due         string   `json:"due"` // RFC 3339 or a natural phrase like "tomorrow"
	Tags        []string `json:"tags"`
}

func (h *Handler) handleAddTask(w http.ResponseWriter, r *http.Request) {
	var req addTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var due *time.Time
	if req.Due != "" {
		if parsed, err := time.Parse(time.RFC3339, req.Due); err == nil {
			due = &parsed
		} else if natural, ok := classify.ParseNaturalTime(time.Now().UTC(), req.Due); ok {
			due = &natural
		} else {
			utils.RespondError(w, http.StatusBadRequest, "unrecognized due date")
			return
		}
	}

	task, err := h.svc.AddTask(speechHandler.SessionID(r), req.Title, req.Description, req.Priority, due, req.Tags)
	if err != nil {
		if errors.Is(err, productivity.ErrTitleRequired) {
			utils.RespondError(w, http.StatusBadRequest, "title is required")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to add task")
		return
	}
	utils.RespondJSON(w, http.StatusCreated, task)
}

func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	filter := productivity.TaskFilter{
		IncludeCompleted: r.URL.Query().Get("include_completed") == "true",
		Priority:         r.URL.Query().Get("priority"),
		Tag:              r.URL.Query().Get("tag"),
	}

	tasks := h.svc.ListTasks(speechHandler.SessionID(r), filter)
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"tasks": tasks,
		"count": len(tasks),
	})
}

func (h *Handler) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	task, err := h.svc.CompleteTask(speechHandler.SessionID(r), taskID)
	if err != nil {
		if errors.Is(err, productivity.ErrTaskNotFound) {
			utils.RespondError(w, http.StatusNotFound, "task not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to complete task")
		return
	}
	utils.RespondJSON(w, http.StatusOK, task)
}

type startTimerRequest struct {
	Name            string `json:"name"`
	Kind            string `json:"timer_type"`
	DurationMinutes int    `json:"duration_minutes"`
}

func (h *Handler) handleStartTimer(w http.ResponseWriter, r *http.Request) {
	var req startTimerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	timer, err := h.svc.StartTimer(speechHandler.SessionID(r), req.Name, req.Kind, req.DurationMinutes)
	if err != nil {
		if errors.Is(err, productivity.ErrInvalidDuration) {
			utils.RespondError(w, http.StatusBadRequest, "duration_minutes must be positive")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to start timer")
		return
	}
	utils.RespondJSON(w, http.StatusCreated, timer)
}

func (h *Handler) handleListTimers(w http.ResponseWriter, r *http.Request) {
	timers := h.svc.ActiveTimers(speechHandler.SessionID(r))
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"timers": timers,
		"count":  len(timers),
	})
}

type trackingRequest struct {
	TaskName string `json:"task_name"`
	Notes    string `json:"notes"`
}

func (h *Handler) handleStartTracking(w http.ResponseWriter, r *http.Request) {
	var req trackingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.svc.StartTracking(speechHandler.SessionID(r), req.TaskName, req.Notes)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "task_name is required")
		return
	}
	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleStopTracking(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.StopTracking(speechHandler.SessionID(r))
	if err != nil {
		if errors.Is(err, productivity.ErrNoOpenSession) {
			utils.RespondError(w, http.StatusConflict, "no time tracking session is running")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to stop tracking")
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.svc.Sessions(speechHandler.SessionID(r))
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}
