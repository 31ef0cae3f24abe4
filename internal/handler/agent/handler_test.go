package agent

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kundanmehta01/murf-voice-agent/internal/model/persona"
	agentService "github.com/kundanmehta01/murf-voice-agent/internal/service/agent"
	"github.com/kundanmehta01/murf-voice-agent/internal/service/productivity"
	sessionService "github.com/kundanmehta01/murf-voice-agent/internal/service/session"
)

func setupRouter() http.Handler {
	personas := persona.NewMemoryStore(persona.Seed())
	sessions := sessionService.NewService(personas, persona.DefaultID)
	agent := agentService.New(sessions, productivity.NewService(), nil, nil)

	r := chi.NewRouter()
	New(agent, sessions).RegisterRoutes(r)
	return r
}

func postJSON(t *testing.T, router http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestChatRequiresMessage(t *testing.T) {
	router := setupRouter()

	rec := postJSON(t, router, "/agent/chat/s1", `{"message":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = postJSON(t, router, "/agent/chat/s1", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid body, got %d", rec.Code)
	}
}

func TestChatWithoutCollaboratorsStillSucceeds(t *testing.T) {
	router := setupRouter()

	rec := postJSON(t, router, "/agent/chat/s1", `{"message":"Tell me a joke"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 even without a model, got %d", rec.Code)
	}

	var reply agentService.Reply
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if reply.Text != agentService.FallbackText {
		t.Fatalf("expected fallback text, got %q", reply.Text)
	}
}

func TestChatSkillQueryBypassesModel(t *testing.T) {
	router := setupRouter()

	rec := postJSON(t, router, "/agent/chat/s1", `{"message":"what time is it"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var reply agentService.Reply
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if reply.Kind != "time" {
		t.Fatalf("expected time reply, got %q", reply.Kind)
	}
}

func TestHistoryRoundTrip(t *testing.T) {
	router := setupRouter()

	postJSON(t, router, "/agent/chat/s1", `{"message":"what time is it"}`)

	req := httptest.NewRequest(http.MethodGet, "/agent/history/s1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Count != 2 {
		t.Fatalf("expected both turns in history, got %d", payload.Count)
	}

	req = httptest.NewRequest(http.MethodDelete, "/agent/history/s1", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/agent/history/s1", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Count != 0 {
		t.Fatalf("expected empty history after clear, got %d", payload.Count)
	}
}

func TestSetPersona(t *testing.T) {
	router := setupRouter()

	rec := postJSON(t, router, "/agent/persona/s1", `{"persona_id":"wizard"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/agent/persona/s1", nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, req)

	var p persona.Persona
	if err := json.Unmarshal(getRec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if p.ID != "wizard" {
		t.Fatalf("expected wizard, got %q", p.ID)
	}
}

func TestSetPersonaUnknown(t *testing.T) {
	router := setupRouter()

	rec := postJSON(t, router, "/agent/persona/s1", `{"persona_id":"ghost"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestQueryEndpoint(t *testing.T) {
	router := setupRouter()

	rec := postJSON(t, router, "/llm/query", `{"text":"what time is it"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = postJSON(t, router, "/llm/query", `{"text":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty text, got %d", rec.Code)
	}
}
