package weather

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kundanmehta01/murf-voice-agent/internal/service/weather"
	"github.com/kundanmehta01/murf-voice-agent/pkg/utils"
)

// Handler exposes the weather client over HTTP.
type Handler struct {
	client *weather.Client
}

func New(client *weather.Client) *Handler {
	return &Handler{client: client}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/weather/status", h.handleStatus)
	r.Get("/weather/current/{location}", h.handleCurrent)
	r.Get("/weather/forecast/{location}", h.handleForecast)
	r.Get("/weather/search", h.handleSearch)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]bool{
		"enabled": h.client != nil && h.client.Enabled(),
	})
}

func (h *Handler) handleCurrent(w http.ResponseWriter, r *http.Request) {
	location := chi.URLParam(r, "location")

	cur, err := h.client.CurrentWeather(r.Context(), location)
	if err != nil {
		h.respondWeatherError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"weather":   cur,
		"formatted": weather.FormatCurrent(cur),
		"emoji":     weather.ConditionEmoji(cur.Condition),
	})
}

func (h *Handler) handleForecast(w http.ResponseWriter, r *http.Request) {
	location := chi.URLParam(r, "location")

	days := 3
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			utils.RespondError(w, http.StatusBadRequest, "days must be a number")
			return
		}
		days = parsed
	}

	fc, err := h.client.ForecastWeather(r.Context(), location, days)
	if err != nil {
		h.respondWeatherError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"forecast":  fc,
		"formatted": weather.FormatForecast(fc),
	})
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		utils.RespondError(w, http.StatusBadRequest, "q query parameter is required")
		return
	}

	locations, err := h.client.Search(r.Context(), query)
	if err != nil {
		h.respondWeatherError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"results": locations})
}

func (h *Handler) respondWeatherError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, weather.ErrNotConfigured):
		utils.RespondError(w, http.StatusServiceUnavailable, "weather service is not configured")
	case errors.Is(err, weather.ErrLocationNotFound):
		utils.RespondError(w, http.StatusNotFound, "location not found")
	default:
		utils.RespondError(w, http.StatusBadGateway, "weather provider error")
	}
}
