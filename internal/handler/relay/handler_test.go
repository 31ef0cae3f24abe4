package relay

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/kundanmehta01/murf-voice-agent/internal/config"
	"github.com/kundanmehta01/murf-voice-agent/internal/model/persona"
	agentService "github.com/kundanmehta01/murf-voice-agent/internal/service/agent"
	"github.com/kundanmehta01/murf-voice-agent/internal/service/keys"
	"github.com/kundanmehta01/murf-voice-agent/internal/service/productivity"
	sessionService "github.com/kundanmehta01/murf-voice-agent/internal/service/session"
	speechService "github.com/kundanmehta01/murf-voice-agent/internal/service/speech"
)

func setupServer(t *testing.T, cfg config.SpeechConfig, env map[string]string) *httptest.Server {
	t.Helper()

	personas := persona.NewMemoryStore(persona.Seed())
	sessions := sessionService.NewService(personas, persona.DefaultID)
	agent := agentService.New(sessions, productivity.NewService(), nil, nil)
	speech := speechService.NewService(cfg, keys.NewStore(env))

	r := chi.NewRouter()
	New(agent, sessions, speech).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func defaultSpeechConfig() config.SpeechConfig {
	return config.SpeechConfig{
		SampleRate:   16000,
		DefaultVoice: "en-US-natalie",
		AudioFormat:  "mp3",
		Timeout:      30,
	}
}

// newFakeVendor serves WebSocket connections with the given script. The
// counter reports how many connections were accepted.
func newFakeVendor(t *testing.T, script func(conn *websocket.Conn, n int)) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var conns atomic.Int32
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		script(conn, int(conns.Add(1)))
	}))
	t.Cleanup(srv.Close)
	return srv, &conns
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	var ev map[string]any
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func dialWS(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestEchoRoundTrip(t *testing.T) {
	srv := setupServer(t, defaultSpeechConfig(), nil)
	conn := dialWS(t, srv, "/ws")

	payload := []byte("ping over the wire")
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		t.Fatalf("write: %v", err)
	}

	mt, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if mt != websocket.TextMessage || string(data) != string(payload) {
		t.Fatalf("expected frame echoed back, got type=%d data=%q", mt, data)
	}

	binary := []byte{0x01, 0x02, 0x03}
	if err := conn.WriteMessage(websocket.BinaryMessage, binary); err != nil {
		t.Fatalf("write binary: %v", err)
	}
	mt, data, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read binary: %v", err)
	}
	if mt != websocket.BinaryMessage || len(data) != 3 {
		t.Fatalf("expected binary frame echoed back, got type=%d len=%d", mt, len(data))
	}
}

func TestAudioSessionBeginsThenReportsUnavailableRecognizer(t *testing.T) {
	srv := setupServer(t, defaultSpeechConfig(), nil)
	conn := dialWS(t, srv, "/ws/audio")

	var begin struct {
		Type      string `json:"type"`
		SessionID string `json:"session_id"`
	}
	if err := conn.ReadJSON(&begin); err != nil {
		t.Fatalf("read session_begin: %v", err)
	}
	if begin.Type != "session_begin" || begin.SessionID == "" {
		t.Fatalf("unexpected first event: %+v", begin)
	}

	var ev struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read error event: %v", err)
	}
	if ev.Type != "error" || ev.Message != "voice input unavailable" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestAudioSessionHonorsSessionIDHeader(t *testing.T) {
	srv := setupServer(t, defaultSpeechConfig(), nil)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/audio?session_id=voice-42"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var begin struct {
		Type      string `json:"type"`
		SessionID string `json:"session_id"`
	}
	if err := conn.ReadJSON(&begin); err != nil {
		t.Fatalf("read session_begin: %v", err)
	}
	if begin.SessionID != "voice-42" {
		t.Fatalf("expected supplied session id, got %q", begin.SessionID)
	}
}

func TestAudioPipelineOrdersAudioAfterFinalTranscript(t *testing.T) {
	sttSrv, _ := newFakeVendor(t, func(conn *websocket.Conn, n int) {
		conn.WriteJSON(map[string]string{"type": "Begin"})
		// speak only after the first audio frame arrives
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.WriteJSON(map[string]any{"type": "Turn", "transcript": "what time", "end_of_turn": false})
		conn.WriteJSON(map[string]any{"type": "Turn", "transcript": "what time is it", "end_of_turn": true, "turn_is_formatted": true})
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if strings.Contains(string(data), "Terminate") {
				conn.WriteJSON(map[string]string{"type": "Termination"})
				return
			}
		}
	})
	murfSrv, _ := newFakeVendor(t, func(conn *websocket.Conn, n int) {
		// voice config, text, end marker
		for i := 0; i < 3; i++ {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
		conn.WriteJSON(map[string]any{"audio": base64.StdEncoding.EncodeToString([]byte("chunk-one"))})
		conn.WriteJSON(map[string]any{"audio": base64.StdEncoding.EncodeToString([]byte("chunk-two")), "final": true})
	})

	cfg := defaultSpeechConfig()
	cfg.AssemblyAIStreamURL = wsURL(sttSrv)
	cfg.MurfStreamURL = wsURL(murfSrv)
	srv := setupServer(t, cfg, map[string]string{"assemblyai": "stt-key", "murf": "tts-key"})

	conn := dialWS(t, srv, "/ws/audio")
	if ev := readEvent(t, conn); ev["type"] != "session_begin" {
		t.Fatalf("expected session_begin first, got %v", ev)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, make([]byte, 320)); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	var events []map[string]any
	for {
		ev := readEvent(t, conn)
		events = append(events, ev)
		if ev["type"] == "tts_audio" && ev["final"] == true {
			break
		}
		if len(events) > 20 {
			t.Fatalf("no final audio chunk after %d events", len(events))
		}
	}

	index := func(pred func(map[string]any) bool) int {
		for i, ev := range events {
			if pred(ev) {
				return i
			}
		}
		return -1
	}
	partial := index(func(ev map[string]any) bool {
		return ev["type"] == "transcript" && ev["is_final"] == false
	})
	final := index(func(ev map[string]any) bool {
		return ev["type"] == "transcript" && ev["is_final"] == true
	})
	llmComplete := index(func(ev map[string]any) bool { return ev["type"] == "llm_complete" })
	firstAudio := index(func(ev map[string]any) bool { return ev["type"] == "tts_audio" })

	if partial == -1 || final == -1 || llmComplete == -1 || firstAudio == -1 {
		t.Fatalf("missing pipeline events: %v", events)
	}
	if partial > final {
		t.Fatalf("partial transcript at %d after final at %d", partial, final)
	}
	if final > llmComplete || llmComplete > firstAudio {
		t.Fatalf("expected transcript -> llm_complete -> tts_audio, got final=%d llm_complete=%d tts=%d", final, llmComplete, firstAudio)
	}
	if events[final]["text"] != "what time is it" {
		t.Fatalf("unexpected final transcript %v", events[final]["text"])
	}

	decoded, err := base64.StdEncoding.DecodeString(events[firstAudio]["audio_base64"].(string))
	if err != nil || string(decoded) != "chunk-one" {
		t.Fatalf("unexpected first audio chunk %q err=%v", decoded, err)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("EOF")); err != nil {
		t.Fatalf("write eof: %v", err)
	}
	if ev := readEvent(t, conn); ev["type"] != "session_end" {
		t.Fatalf("expected session_end, got %v", ev)
	}
}

func TestRecognizerClosureReopensOnceThenReportsUnavailable(t *testing.T) {
	turns := []string{"what time is it right now", "and what day is it today"}
	sttSrv, conns := newFakeVendor(t, func(conn *websocket.Conn, n int) {
		conn.WriteJSON(map[string]string{"type": "Begin"})
		if n <= len(turns) {
			conn.WriteJSON(map[string]any{"type": "Turn", "transcript": turns[n-1], "end_of_turn": true})
		}
		conn.WriteJSON(map[string]string{"type": "Termination"})
	})

	cfg := defaultSpeechConfig()
	cfg.AssemblyAIStreamURL = wsURL(sttSrv)
	srv := setupServer(t, cfg, map[string]string{"assemblyai": "stt-key"})

	conn := dialWS(t, srv, "/ws/audio")
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	if ev := readEvent(t, conn); ev["type"] != "session_begin" {
		t.Fatalf("expected session_begin first, got %v", ev)
	}

	var finals []string
	for {
		ev := readEvent(t, conn)
		if ev["type"] == "transcript" && ev["is_final"] == true {
			finals = append(finals, ev["text"].(string))
		}
		if ev["type"] == "error" && ev["message"] == "voice input unavailable" {
			break
		}
	}

	if len(finals) != 2 || finals[0] != turns[0] || finals[1] != turns[1] {
		t.Fatalf("expected transcripts across the reopened stream, got %v", finals)
	}
	if got := conns.Load(); got != 2 {
		t.Fatalf("expected exactly one reopen after the initial connection, got %d connections", got)
	}
}
