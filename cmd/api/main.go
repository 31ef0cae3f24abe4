package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/kundanmehta01/murf-voice-agent/internal/config"
	"github.com/kundanmehta01/murf-voice-agent/internal/handler"
	"github.com/kundanmehta01/murf-voice-agent/internal/model/persona"
	agentService "github.com/kundanmehta01/murf-voice-agent/internal/service/agent"
	"github.com/kundanmehta01/murf-voice-agent/internal/service/ai"
	"github.com/kundanmehta01/murf-voice-agent/internal/service/keys"
	"github.com/kundanmehta01/murf-voice-agent/internal/service/productivity"
	"github.com/kundanmehta01/murf-voice-agent/internal/service/session"
	"github.com/kundanmehta01/murf-voice-agent/internal/service/speech"
	"github.com/kundanmehta01/murf-voice-agent/internal/service/weather"
)

func main() {
	envFile := pflag.String("env", ".env", "path to the environment file")
	port := pflag.String("port", "", "listen port, overrides PORT")
	pflag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("warning: failed to load %s: %v", *envFile, err)
		log.Println("continuing with system environment variables only")
	}
	if *port != "" {
		os.Setenv("PORT", *port)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	personaStore := persona.NewMemoryStore(persona.Seed())
	sessions := session.NewService(personaStore, cfg.Agent.DefaultPersonaID)
	prodSvc := productivity.NewService()

	keyStore := keys.NewStore(map[string]string{
		keys.ServiceAssemblyAI:  cfg.Speech.AssemblyAIKey,
		keys.ServiceMurf:        cfg.Speech.MurfKey,
		keys.ServiceLLM:         cfg.LLM.APIKey,
		keys.ServiceOpenWeather: cfg.Weather.APIKey,
	})

	// Without a key the client stays up reporting the feature disabled.
	weatherClient := weather.NewClient(cfg.Weather.APIKey)
	if cfg.Weather.Enabled() {
		log.Println("weather service initialized")
	} else {
		log.Println("OPENWEATHER_API_KEY not set, weather lookups disabled")
	}

	var llm *ai.Service
	if cfg.LLM.Enabled() {
		llm, err = ai.NewService(ctx, cfg.LLM)
		if err != nil {
			log.Printf("warning: failed to initialize model service: %v", err)
			log.Println("continuing without model-backed conversation")
			llm = nil
		} else {
			log.Println("model service initialized")
		}
	} else {
		log.Println("LLM credentials not set, conversation falls back to canned replies")
	}

	// Speech keys can also arrive per session through the key endpoints, so
	// the service always runs and resolves credentials per request.
	speechSvc := speech.NewService(cfg.Speech, keyStore)
	if cfg.Speech.STTEnabled() || cfg.Speech.TTSEnabled() {
		log.Println("speech service initialized")
	} else {
		log.Println("speech credentials not set, expecting per-session keys")
	}

	var llmProvider agentService.LLM
	if llm != nil {
		llmProvider = llm
	}
	agent := agentService.New(sessions, prodSvc, weatherClient, llmProvider)

	router := handler.NewRouter(handler.Deps{
		Personas:     personaStore,
		Sessions:     sessions,
		Agent:        agent,
		Productivity: prodSvc,
		Weather:      weatherClient,
		Speech:       speechSvc,
		Keys:         keyStore,
	})

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("voice agent backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
