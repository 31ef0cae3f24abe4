// Package speech provides speech-to-text and text-to-speech over the
// AssemblyAI and Murf APIs, with per-session credential overrides.
package speech

import (
	"context"
	"io"

	"github.com/kundanmehta01/murf-voice-agent/internal/config"
	"github.com/kundanmehta01/murf-voice-agent/internal/service/keys"
)

// Service resolves credentials per session and hands out configured vendor
// clients. Clients are cheap to build, so no pooling happens here.
type Service struct {
	cfg  config.SpeechConfig
	keys *keys.Store
}

func NewService(cfg config.SpeechConfig, keyStore *keys.Store) *Service {
	return &Service{cfg: cfg, keys: keyStore}
}

// SampleRate is the PCM sample rate expected from browser microphones.
func (s *Service) SampleRate() int { return s.cfg.SampleRate }

// DefaultVoice is the synthesis voice used when a persona names none.
func (s *Service) DefaultVoice() string { return s.cfg.DefaultVoice }

// STTEnabled reports whether a recognizer key is available to the session.
func (s *Service) STTEnabled(sessionID string) bool {
	_, _, ok := s.keys.Resolve(sessionID, keys.ServiceAssemblyAI)
	return ok
}

// TTSEnabled reports whether a synthesizer key is available to the session.
func (s *Service) TTSEnabled(sessionID string) bool {
	_, _, ok := s.keys.Resolve(sessionID, keys.ServiceMurf)
	return ok
}

func (s *Service) sttClient(sessionID string) (*AssemblyAIClient, error) {
	key, _, ok := s.keys.Resolve(sessionID, keys.ServiceAssemblyAI)
	if !ok {
		return nil, ErrSTTNotConfigured
	}
	client := NewAssemblyAIClient(key)
	if s.cfg.AssemblyAIBaseURL != "" {
		client.SetBaseURL(s.cfg.AssemblyAIBaseURL)
	}
	if s.cfg.AssemblyAIStreamURL != "" {
		client.SetStreamURL(s.cfg.AssemblyAIStreamURL)
	}
	return client, nil
}

func (s *Service) ttsClient(sessionID string) (*MurfClient, error) {
	key, _, ok := s.keys.Resolve(sessionID, keys.ServiceMurf)
	if !ok {
		return nil, ErrTTSNotConfigured
	}
	client := NewMurfClient(key, s.cfg.AudioFormat)
	if s.cfg.MurfBaseURL != "" {
		client.SetBaseURL(s.cfg.MurfBaseURL)
	}
	if s.cfg.MurfStreamURL != "" {
		client.SetStreamURL(s.cfg.MurfStreamURL)
	}
	return client, nil
}

// StreamTranscribe opens a realtime recognition session on behalf of a
// session.
func (s *Service) StreamTranscribe(ctx context.Context, sessionID string) (*RealtimeSession, error) {
	client, err := s.sttClient(sessionID)
	if err != nil {
		return nil, err
	}
	return client.StreamTranscribe(ctx, s.cfg.SampleRate)
}

// TranscribeFile transcribes a complete uploaded recording.
func (s *Service) TranscribeFile(ctx context.Context, sessionID string, audio io.Reader) (*Transcript, error) {
	client, err := s.sttClient(sessionID)
	if err != nil {
		return nil, err
	}
	return client.TranscribeFile(ctx, audio)
}

// Synthesize renders text to audio URLs, one per vendor-sized chunk.
func (s *Service) Synthesize(ctx context.Context, sessionID, text, voiceID string) ([]GeneratedAudio, error) {
	client, err := s.ttsClient(sessionID)
	if err != nil {
		return nil, err
	}
	if voiceID == "" {
		voiceID = s.cfg.DefaultVoice
	}
	return client.Generate(ctx, text, voiceID)
}

// StreamSynthesize opens a streaming synthesis session for one utterance.
func (s *Service) StreamSynthesize(ctx context.Context, sessionID, text, voiceID string) (*StreamSession, error) {
	client, err := s.ttsClient(sessionID)
	if err != nil {
		return nil, err
	}
	if voiceID == "" {
		voiceID = s.cfg.DefaultVoice
	}
	return client.StreamGenerate(ctx, text, voiceID)
}

// Voices lists the synthesis voices available to the session, normalized
// for the frontend.
func (s *Service) Voices(ctx context.Context, sessionID string) ([]VoiceInfo, error) {
	client, err := s.ttsClient(sessionID)
	if err != nil {
		return nil, err
	}
	raw, err := client.Voices(ctx)
	if err != nil {
		return nil, err
	}
	return NormalizeVoices(raw), nil
}

// ProbeSTT verifies the session's recognizer key against the vendor.
func (s *Service) ProbeSTT(ctx context.Context, sessionID string) error {
	client, err := s.sttClient(sessionID)
	if err != nil {
		return err
	}
	return client.Probe(ctx)
}

// ProbeTTS verifies the session's synthesizer key against the vendor.
func (s *Service) ProbeTTS(ctx context.Context, sessionID string) error {
	client, err := s.ttsClient(sessionID)
	if err != nil {
		return err
	}
	_, err = client.Voices(ctx)
	return err
}
