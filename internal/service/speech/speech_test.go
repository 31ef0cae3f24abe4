package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestMurfGenerateSingleChunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/speech/generate" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("api-key"); got != "ap2_test" {
			t.Fatalf("missing api key header, got %q", got)
		}

		var req murfGenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.VoiceID != "en-US-natalie" {
			t.Fatalf("unexpected voice %q", req.VoiceID)
		}

		json.NewEncoder(w).Encode(murfGenerateResponse{AudioFile: "https://cdn.example/audio.mp3"})
	}))
	defer srv.Close()

	client := NewMurfClient("ap2_test", "mp3")
	client.SetBaseURL(srv.URL)

	audio, err := client.Generate(context.Background(), "Hello there.", "en-US-natalie")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(audio) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(audio))
	}
	if audio[0].AudioURL != "https://cdn.example/audio.mp3" || audio[0].ChunkIndex != 0 {
		t.Fatalf("unexpected result %+v", audio[0])
	}
}

func TestMurfGenerateSplitsLongText(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(murfGenerateResponse{AudioFile: "https://cdn.example/audio.mp3"})
	}))
	defer srv.Close()

	client := NewMurfClient("ap2_test", "mp3")
	client.SetBaseURL(srv.URL)

	// two sentences that cannot share a 3000 character chunk
	text := strings.Repeat("a", 2000) + ". " + strings.Repeat("b", 2000) + "."
	audio, err := client.Generate(context.Background(), text, "en-US-natalie")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(audio) != 2 || calls != 2 {
		t.Fatalf("expected 2 chunks and 2 calls, got %d chunks, %d calls", len(audio), calls)
	}
	if audio[1].ChunkIndex != 1 {
		t.Fatalf("expected ordered chunk indexes, got %+v", audio)
	}
}

func TestMurfWithoutKey(t *testing.T) {
	client := NewMurfClient("", "mp3")
	if _, err := client.Generate(context.Background(), "hi", "v"); !errors.Is(err, ErrTTSNotConfigured) {
		t.Fatalf("expected ErrTTSNotConfigured, got %v", err)
	}
}

func TestAssemblyAITranscribeFile(t *testing.T) {
	var polls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "stt-key" {
			t.Fatalf("missing auth header, got %q", got)
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v2/upload":
			body, _ := io.ReadAll(r.Body)
			if !bytes.Equal(body, []byte("pcm-bytes")) {
				t.Fatalf("unexpected upload body %q", body)
			}
			json.NewEncoder(w).Encode(map[string]string{"upload_url": "https://cdn.example/upload/1"})
		case r.Method == http.MethodPost && r.URL.Path == "/v2/transcript":
			var req map[string]string
			json.NewDecoder(r.Body).Decode(&req)
			if req["audio_url"] != "https://cdn.example/upload/1" {
				t.Fatalf("unexpected audio_url %q", req["audio_url"])
			}
			json.NewEncoder(w).Encode(Transcript{ID: "tr-1", Status: "queued"})
		case r.Method == http.MethodGet && r.URL.Path == "/v2/transcript/tr-1":
			polls++
			if polls < 2 {
				json.NewEncoder(w).Encode(Transcript{ID: "tr-1", Status: "processing"})
				return
			}
			json.NewEncoder(w).Encode(Transcript{ID: "tr-1", Status: "completed", Text: "hello world"})
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	client := NewAssemblyAIClient("stt-key")
	client.SetBaseURL(srv.URL)

	tr, err := client.TranscribeFile(context.Background(), strings.NewReader("pcm-bytes"))
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if tr.Text != "hello world" {
		t.Fatalf("unexpected transcript %q", tr.Text)
	}
	if polls < 2 {
		t.Fatalf("expected polling to loop, got %d polls", polls)
	}
}

func TestAssemblyAITranscribeFileFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v2/upload":
			json.NewEncoder(w).Encode(map[string]string{"upload_url": "u"})
		case r.Method == http.MethodPost && r.URL.Path == "/v2/transcript":
			json.NewEncoder(w).Encode(Transcript{ID: "tr-2", Status: "queued"})
		default:
			json.NewEncoder(w).Encode(Transcript{ID: "tr-2", Status: "error", Error: "unsupported codec"})
		}
	}))
	defer srv.Close()

	client := NewAssemblyAIClient("stt-key")
	client.SetBaseURL(srv.URL)

	if _, err := client.TranscribeFile(context.Background(), strings.NewReader("x")); !errors.Is(err, ErrTranscriptFailed) {
		t.Fatalf("expected ErrTranscriptFailed, got %v", err)
	}
}

func TestRealtimeSessionEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "stt-key" {
			t.Fatalf("missing auth header, got %q", got)
		}
		if got := r.URL.Query().Get("sample_rate"); got != "16000" {
			t.Fatalf("unexpected sample rate %q", got)
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		defer conn.Close()

		conn.WriteJSON(map[string]any{"type": "Begin"})

		// expect one binary audio frame before speaking back
		mt, _, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.BinaryMessage {
			t.Fatalf("expected binary frame, got type %d", mt)
		}

		conn.WriteJSON(map[string]any{"type": "Turn", "transcript": "hello", "end_of_turn": false})
		conn.WriteJSON(map[string]any{"type": "Turn", "transcript": "hello world", "end_of_turn": true, "turn_is_formatted": true})
		conn.WriteJSON(map[string]any{"type": "Termination"})
	}))
	defer srv.Close()

	client := NewAssemblyAIClient("stt-key")
	client.SetStreamURL("ws" + strings.TrimPrefix(srv.URL, "http"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	session, err := client.StreamTranscribe(ctx, 16000)
	if err != nil {
		t.Fatalf("stream transcribe: %v", err)
	}
	if err := session.SendAudio([]byte{0, 1, 2, 3}); err != nil {
		t.Fatalf("send audio: %v", err)
	}

	var events []TranscriptEvent
	for ev := range session.Events() {
		events = append(events, ev)
	}
	if err := session.Err(); err != nil {
		t.Fatalf("session error: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(events), events)
	}
	if events[0].EndOfTurn || events[0].Text != "hello" {
		t.Fatalf("unexpected partial %+v", events[0])
	}
	if !events[1].EndOfTurn || events[1].Text != "hello world" {
		t.Fatalf("unexpected final %+v", events[1])
	}
}

func TestNormalizeVoices(t *testing.T) {
	raw := []Voice{
		{VoiceID: "en-US-ryan", DisplayName: "Ryan", Locale: "en_US", Gender: "Male"},
		{VoiceID: "en-US-ryan", DisplayName: "Ryan duplicate", Locale: "en_US", Gender: "Male"},
		{VoiceID: "en-US-natalie", DisplayName: "Natalie", Locale: "en-us", Gender: "Female", Styles: []string{"Conversational"}},
		{VoiceID: "", DisplayName: "broken"},
	}

	voices := NormalizeVoices(raw)
	if len(voices) != 2 {
		t.Fatalf("expected 2 voices, got %d", len(voices))
	}
	if voices[0].Name != "Natalie" || voices[1].Name != "Ryan" {
		t.Fatalf("expected name-sorted voices, got %+v", voices)
	}
	for _, v := range voices {
		if v.Language != "en-US" {
			t.Fatalf("expected normalized locale en-US, got %q", v.Language)
		}
	}
	if voices[1].Gender != "male" {
		t.Fatalf("expected lowercase gender, got %q", voices[1].Gender)
	}
}
