// Package keys manages per-session vendor API key overrides. Resolution
// order is session key, then global override, then environment
// configuration.
package keys

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Known vendor services.
const (
	ServiceAssemblyAI  = "assemblyai"
	ServiceMurf        = "murf"
	ServiceLLM         = "llm"
	ServiceOpenWeather = "openweather"
)

var (
	ErrUnknownService = errors.New("unknown service")
	ErrInvalidKey     = errors.New("invalid api key")
)

// Known reports whether service names one of the supported vendors.
func Known(service string) bool {
	switch service {
	case ServiceAssemblyAI, ServiceMurf, ServiceLLM, ServiceOpenWeather:
		return true
	}
	return false
}

// Validate checks the shape of a key for a service without calling the
// vendor.
func Validate(service, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: key is empty", ErrInvalidKey)
	}

	switch service {
	case ServiceAssemblyAI:
		if len(key) < 32 || !isAlphanumeric(key) {
			return fmt.Errorf("%w: assemblyai keys are at least 32 alphanumeric characters", ErrInvalidKey)
		}
	case ServiceMurf:
		if len(key) < 30 || !strings.Contains(key, "ap2_") {
			return fmt.Errorf("%w: murf keys contain an ap2_ segment", ErrInvalidKey)
		}
	case ServiceLLM:
		if len(key) < 20 {
			return fmt.Errorf("%w: llm key looks too short", ErrInvalidKey)
		}
	case ServiceOpenWeather:
		if len(key) < 30 || !isAlphanumeric(key) {
			return fmt.Errorf("%w: openweather keys are at least 30 alphanumeric characters", ErrInvalidKey)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownService, service)
	}
	return nil
}

func isAlphanumeric(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// Status describes whether a service has a usable key, without revealing it.
type Status struct {
	Service    string `json:"service"`
	Configured bool   `json:"configured"`
	Source     string `json:"source,omitempty"` // session, global or environment
	KeyPreview string `json:"key_preview,omitempty"`
}

// Store holds key overrides. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	session map[string]map[string]string // sessionID -> service -> key
	global  map[string]string            // service -> key
	env     map[string]string            // service -> key, fixed at startup
}

// NewStore builds a store with the environment-provided keys as the last
// resort for each service. Empty env values are ignored.
func NewStore(env map[string]string) *Store {
	s := &Store{
		session: make(map[string]map[string]string),
		global:  make(map[string]string),
		env:     make(map[string]string),
	}
	for service, key := range env {
		if Known(service) && key != "" {
			s.env[service] = key
		}
	}
	return s
}

// Set stores a key. With a session ID the override is scoped to that
// session; with an empty session ID it applies globally.
func (s *Store) Set(sessionID, service, key string) error {
	if !Known(service) {
		return fmt.Errorf("%w: %s", ErrUnknownService, service)
	}
	if err := Validate(service, key); err != nil {
		return err
	}
	key = strings.TrimSpace(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID == "" {
		s.global[service] = key
		return nil
	}
	if s.session[sessionID] == nil {
		s.session[sessionID] = make(map[string]string)
	}
	s.session[sessionID][service] = key
	return nil
}

// Resolve returns the key to use for a service on behalf of a session.
func (s *Store) Resolve(sessionID, service string) (key, source string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sessionID != "" {
		if k, found := s.session[sessionID][service]; found {
			return k, "session", true
		}
	}
	if k, found := s.global[service]; found {
		return k, "global", true
	}
	if k, found := s.env[service]; found {
		return k, "environment", true
	}
	return "", "", false
}

// Delete removes overrides. With a session ID only that session's keys are
// dropped; with an empty session ID the global overrides go. Environment
// keys are never removed.
func (s *Store) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID == "" {
		s.global = make(map[string]string)
		return
	}
	delete(s.session, sessionID)
}

// StatusFor reports the configuration state of every known service for a
// session.
func (s *Store) StatusFor(sessionID string) []Status {
	services := []string{ServiceAssemblyAI, ServiceMurf, ServiceLLM, ServiceOpenWeather}

	out := make([]Status, 0, len(services))
	for _, service := range services {
		st := Status{Service: service}
		if key, source, ok := s.Resolve(sessionID, service); ok {
			st.Configured = true
			st.Source = source
			st.KeyPreview = Preview(key)
		}
		out = append(out, st)
	}
	return out
}

// Preview renders a key as its first eight and last four characters, masking
// the middle. Short keys are fully masked.
func Preview(key string) string {
	if len(key) < 12 {
		return strings.Repeat("*", len(key))
	}
	return key[:8] + "..." + key[len(key)-4:]
}
