package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	agentHandler "github.com/kundanmehta01/murf-voice-agent/internal/handler/agent"
	keysHandler "github.com/kundanmehta01/murf-voice-agent/internal/handler/keys"
	personaHandler "github.com/kundanmehta01/murf-voice-agent/internal/handler/persona"
	productivityHandler "github.com/kundanmehta01/murf-voice-agent/internal/handler/productivity"
	relayHandler "github.com/kundanmehta01/murf-voice-agent/internal/handler/relay"
	speechHandler "github.com/kundanmehta01/murf-voice-agent/internal/handler/speech"
	weatherHandler "github.com/kundanmehta01/murf-voice-agent/internal/handler/weather"
	middlewarePkg "github.com/kundanmehta01/murf-voice-agent/internal/middleware"
	personaModel "github.com/kundanmehta01/murf-voice-agent/internal/model/persona"
	agentService "github.com/kundanmehta01/murf-voice-agent/internal/service/agent"
	keysService "github.com/kundanmehta01/murf-voice-agent/internal/service/keys"
	productivityService "github.com/kundanmehta01/murf-voice-agent/internal/service/productivity"
	sessionService "github.com/kundanmehta01/murf-voice-agent/internal/service/session"
	speechService "github.com/kundanmehta01/murf-voice-agent/internal/service/speech"
	weatherService "github.com/kundanmehta01/murf-voice-agent/internal/service/weather"
	"github.com/kundanmehta01/murf-voice-agent/pkg/utils"
)

// Deps carries the services the router wires to routes.
type Deps struct {
	Personas     personaModel.Store
	Sessions     *sessionService.Service
	Agent        *agentService.Agent
	Productivity *productivityService.Service
	Weather      *weatherService.Client
	Speech       *speechService.Service
	Keys         *keysService.Store
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	personaHandler.New(deps.Personas).RegisterRoutes(r)
	agentHandler.New(deps.Agent, deps.Sessions).RegisterRoutes(r)
	productivityHandler.New(deps.Productivity).RegisterRoutes(r)
	keysHandler.New(deps.Keys, deps.Speech, deps.Weather).RegisterRoutes(r)

	// The weather surface stays up without a key: status reports the
	// feature disabled and the data routes answer 503.
	weatherClient := deps.Weather
	if weatherClient == nil {
		weatherClient = weatherService.NewClient("")
	}
	weatherHandler.New(weatherClient).RegisterRoutes(r)

	if deps.Speech != nil {
		speechHandler.New(deps.Speech).RegisterRoutes(r)
		relayHandler.New(deps.Agent, deps.Sessions, deps.Speech).RegisterRoutes(r)
	}

	return r
}
