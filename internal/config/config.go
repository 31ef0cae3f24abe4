package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates configuration for the whole service.
type Config struct {
	Server  ServerConfig
	LLM     LLMConfig
	Speech  SpeechConfig
	Weather WeatherConfig
	Agent   AgentConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	llm, err := loadLLMConfig()
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		LLM:     llm,
		Speech:  speech,
		Weather: loadWeatherConfig(),
		Agent:   loadAgentConfig(),
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8000"
	}

	if strings.Contains(port, ":") {
		// Accept ":8000" or "127.0.0.1:8000" verbatim.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// LLMConfig describes the chat model binding.
type LLMConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	Stream      bool
}

// Enabled reports whether the required model credentials are present.
func (c LLMConfig) Enabled() bool {
	return c.Model != "" && c.APIKey != ""
}

// NewChatModel builds a model instance from the configuration.
func (c LLMConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("LLM credentials missing: set LLM_API_KEY and LLM_MODEL")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadLLMConfig() (LLMConfig, error) {
	temperature, err := parseOptionalFloatEnv("LLM_TEMPERATURE")
	if err != nil {
		return LLMConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("LLM_TOP_P")
	if err != nil {
		return LLMConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("LLM_MAX_TOKENS")
	if err != nil {
		return LLMConfig{}, err
	}

	stream, err := parseBoolEnv("LLM_STREAM", true)
	if err != nil {
		return LLMConfig{}, err
	}

	return LLMConfig{
		APIKey:      strings.TrimSpace(os.Getenv("LLM_API_KEY")),
		Model:       strings.TrimSpace(os.Getenv("LLM_MODEL")),
		BaseURL:     getEnvOrDefault("LLM_BASE_URL", ""),
		Region:      getEnvOrDefault("LLM_REGION", ""),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
		Stream:      stream,
	}, nil
}

// SpeechConfig describes the transcription and synthesis vendors. The URL
// fields override the vendor endpoints; empty means the production ones.
type SpeechConfig struct {
	AssemblyAIKey       string
	MurfKey             string
	AssemblyAIBaseURL   string
	AssemblyAIStreamURL string
	MurfBaseURL         string
	MurfStreamURL       string
	SampleRate          int
	DefaultVoice        string
	AudioFormat         string
	Timeout             int // seconds
}

// STTEnabled reports whether a transcription key is configured.
func (c SpeechConfig) STTEnabled() bool { return c.AssemblyAIKey != "" }

// TTSEnabled reports whether a synthesis key is configured.
func (c SpeechConfig) TTSEnabled() bool { return c.MurfKey != "" }

func loadSpeechConfig() (SpeechConfig, error) {
	timeout, err := parseOptionalIntEnv("SPEECH_TIMEOUT")
	if err != nil {
		return SpeechConfig{}, err
	}
	timeoutSeconds := 30
	if timeout != nil {
		timeoutSeconds = *timeout
	}

	sampleRate := 16000
	if v, err := parseOptionalIntEnv("STT_SAMPLE_RATE"); err != nil {
		return SpeechConfig{}, err
	} else if v != nil {
		sampleRate = *v
	}

	return SpeechConfig{
		AssemblyAIKey:       strings.TrimSpace(os.Getenv("ASSEMBLYAI_API_KEY")),
		MurfKey:             strings.TrimSpace(os.Getenv("MURF_API_KEY")),
		AssemblyAIBaseURL:   strings.TrimSpace(os.Getenv("ASSEMBLYAI_BASE_URL")),
		AssemblyAIStreamURL: strings.TrimSpace(os.Getenv("ASSEMBLYAI_STREAM_URL")),
		MurfBaseURL:         strings.TrimSpace(os.Getenv("MURF_BASE_URL")),
		MurfStreamURL:       strings.TrimSpace(os.Getenv("MURF_STREAM_URL")),
		SampleRate:          sampleRate,
		DefaultVoice:        getEnvOrDefault("TTS_VOICE", "en-US-natalie"),
		AudioFormat:         getEnvOrDefault("TTS_FORMAT", "mp3"),
		Timeout:             timeoutSeconds,
	}, nil
}

// WeatherConfig describes the weather provider.
type WeatherConfig struct {
	APIKey string
}

// Enabled reports whether the weather key is configured.
func (c WeatherConfig) Enabled() bool { return c.APIKey != "" }

func loadWeatherConfig() WeatherConfig {
	return WeatherConfig{APIKey: strings.TrimSpace(os.Getenv("OPENWEATHER_API_KEY"))}
}

// AgentConfig holds conversation behavior knobs.
type AgentConfig struct {
	DefaultPersonaID string
}

func loadAgentConfig() AgentConfig {
	return AgentConfig{
		DefaultPersonaID: getEnvOrDefault("DEFAULT_PERSONA_ID", "default"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
