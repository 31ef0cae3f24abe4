// Package relay bridges browser WebSocket connections to the recognizer,
// the agent and the synthesizer. One connection carries one voice session:
// binary frames in, JSON events out.
package relay

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	speechHandler "github.com/kundanmehta01/murf-voice-agent/internal/handler/speech"
	agentService "github.com/kundanmehta01/murf-voice-agent/internal/service/agent"
	sessionService "github.com/kundanmehta01/murf-voice-agent/internal/service/session"
	speechService "github.com/kundanmehta01/murf-voice-agent/internal/service/speech"
)

const (
	readDeadline = 60 * time.Second
	pingInterval = 54 * time.Second

	// eofMarker is the text frame a client sends to finish its audio session.
	eofMarker = "EOF"
)

// Handler serves the WebSocket endpoints.
type Handler struct {
	agent    *agentService.Agent
	sessions *sessionService.Service
	speech   *speechService.Service
	upgrader websocket.Upgrader
}

func New(agent *agentService.Agent, sessions *sessionService.Service, speech *speechService.Service) *Handler {
	return &Handler{
		agent:    agent,
		sessions: sessions,
		speech:   speech,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleEcho)
	r.Get("/ws/audio", h.handleAudio)
}

// client wraps the browser connection with a write lock so the STT reader
// goroutine and the main loop never interleave frames.
type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) sendJSON(v any) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := c.conn.WriteJSON(v); err != nil {
		log.Printf("[relay] write failed: %v", err)
	}
}

func (c *client) sendError(message string) {
	c.sendJSON(map[string]string{"type": "error", "message": message})
}

// handleEcho is a connectivity check: every frame comes straight back.
func (h *Handler) handleEcho(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[relay] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		if err := conn.WriteMessage(mt, data); err != nil {
			return
		}
	}
}

// handleAudio runs the full voice loop: audio in, transcripts out, agent
// reply streamed as llm events, then synthesized audio chunks.
func (h *Handler) handleAudio(w http.ResponseWriter, r *http.Request) {
	sessionID := speechHandler.SessionID(r)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[relay] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[relay] audio session started session=%s", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	c := &client{conn: conn}
	go c.pingLoop(ctx)

	c.sendJSON(map[string]string{"type": "session_begin", "session_id": sessionID})

	relay := &audioRelay{
		handler:   h,
		client:    c,
		sessionID: sessionID,
	}
	relay.run(ctx)
}

// audioRelay owns one connection's recognizer session and turn pipeline.
// The recognizer session is shared between the frame loop, which forwards
// audio, and the transcripts goroutine, which is the only one allowed to
// replace it.
type audioRelay struct {
	handler   *Handler
	client    *client
	sessionID string

	mu       sync.Mutex
	stt      *speechService.RealtimeSession
	reopened bool
	closed   bool

	lastFinal string
}

func (r *audioRelay) session() *speechService.RealtimeSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stt
}

func (r *audioRelay) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *audioRelay) run(ctx context.Context) {
	if !r.openSTT(ctx) {
		return
	}

	sttDone := make(chan struct{})
	go func() {
		defer close(sttDone)
		r.consumeTranscripts(ctx)
	}()

	for {
		mt, data, err := r.client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("[relay] read error session=%s: %v", r.sessionID, err)
			}
			break
		}
		r.client.conn.SetReadDeadline(time.Now().Add(readDeadline))

		switch mt {
		case websocket.BinaryMessage:
			r.sendAudio(data)
		case websocket.TextMessage:
			if strings.TrimSpace(string(data)) == eofMarker {
				r.closeSTT()
				<-sttDone
				r.client.sendJSON(map[string]string{"type": "session_end", "session_id": r.sessionID})
				return
			}
		}
	}

	r.closeSTT()
	<-sttDone
}

// openSTT establishes the recognizer session, retrying once silently before
// telling the client voice input is unavailable.
func (r *audioRelay) openSTT(ctx context.Context) bool {
	session, err := r.handler.speech.StreamTranscribe(ctx, r.sessionID)
	if err == nil {
		r.stt = session
		return true
	}

	log.Printf("[relay] recognizer connect failed session=%s: %v", r.sessionID, err)
	session, err = r.handler.speech.StreamTranscribe(ctx, r.sessionID)
	if err != nil {
		log.Printf("[relay] recognizer reconnect failed session=%s: %v", r.sessionID, err)
		r.client.sendError("voice input unavailable")
		return false
	}
	r.reopened = true
	r.stt = session
	return true
}

// sendAudio forwards one browser frame. A write failure is only logged:
// the transcripts goroutine observes the broken stream and owns recovery.
func (r *audioRelay) sendAudio(data []byte) {
	stt := r.session()
	if stt == nil {
		return
	}
	if err := stt.SendAudio(data); err != nil {
		log.Printf("[relay] forward audio failed session=%s: %v", r.sessionID, err)
	}
}

// reopenSTT replaces a dead recognizer session, at most once per
// connection. Only the transcripts goroutine calls it.
func (r *audioRelay) reopenSTT(ctx context.Context) bool {
	r.mu.Lock()
	if r.closed || r.reopened {
		r.mu.Unlock()
		return false
	}
	r.reopened = true
	r.mu.Unlock()

	session, err := r.handler.speech.StreamTranscribe(ctx, r.sessionID)
	if err != nil {
		log.Printf("[relay] recognizer reopen failed session=%s: %v", r.sessionID, err)
		return false
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		session.Close()
		return false
	}
	r.stt = session
	r.mu.Unlock()
	return true
}

func (r *audioRelay) closeSTT() {
	r.mu.Lock()
	r.closed = true
	stt := r.stt
	r.mu.Unlock()

	if stt != nil {
		if err := stt.Close(); err != nil {
			log.Printf("[relay] recognizer close session=%s: %v", r.sessionID, err)
		}
	}
}

// consumeTranscripts forwards recognition events and runs the reply
// pipeline for each final transcript. Turns are processed one at a time.
// When a recognizer session ends on the provider side, cleanly or not, it
// is reopened once before the client is told voice input is gone.
func (r *audioRelay) consumeTranscripts(ctx context.Context) {
	for {
		stt := r.session()
		if stt == nil {
			return
		}

		for ev := range stt.Events() {
			r.client.sendJSON(map[string]any{
				"type":        "transcript",
				"text":        ev.Text,
				"is_final":    ev.EndOfTurn,
				"end_of_turn": ev.EndOfTurn,
			})

			if !ev.EndOfTurn {
				continue
			}
			if !r.acceptFinal(ev.Text) {
				continue
			}
			r.respondToTurn(ctx, ev.Text)
		}

		if r.isClosed() {
			return
		}

		if err := stt.Err(); err != nil {
			log.Printf("[relay] recognizer stream failed session=%s: %v", r.sessionID, err)
		} else {
			// clean provider-side closure, e.g. the inactivity cutoff
			log.Printf("[relay] recognizer stream ended session=%s", r.sessionID)
		}
		stt.Close()
		r.mu.Lock()
		if r.stt == stt {
			r.stt = nil
		}
		r.mu.Unlock()

		if !r.reopenSTT(ctx) {
			if !r.isClosed() {
				r.client.sendError("voice input unavailable")
			}
			return
		}
	}
}

// acceptFinal filters out echoes: whitespace, very short fragments and
// repeats of the previous final transcript.
func (r *audioRelay) acceptFinal(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if len(normalized) <= 2 {
		return false
	}
	if normalized == r.lastFinal {
		return false
	}
	r.lastFinal = normalized
	return true
}

// respondToTurn drives one turn: llm_start, chunks, llm_complete, then
// synthesized audio. Collaborator failures degrade to fallback text and the
// exchange still completes.
func (r *audioRelay) respondToTurn(ctx context.Context, userText string) {
	r.client.sendJSON(map[string]string{"type": "llm_start"})

	reply := r.handler.agent.RespondStream(ctx, r.sessionID, userText)

	full := reply.Text
	if reply.Stream != nil {
		full = r.drainModelStream(ctx, reply.Stream)
		r.handler.agent.RecordAssistantTurn(r.sessionID, full)
	} else if full != "" {
		r.client.sendJSON(map[string]string{"type": "llm_chunk", "text": full})
	}

	if full == "" {
		full = agentService.FallbackText
	}
	r.client.sendJSON(map[string]string{"type": "llm_complete", "full_response": full})

	r.speak(ctx, full, reply.VoiceID)
}

func (r *audioRelay) drainModelStream(ctx context.Context, stream *schema.StreamReader[*schema.Message]) string {
	defer stream.Close()

	var chunks []*schema.Message
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Printf("[relay] model stream recv failed session=%s: %v", r.sessionID, err)
			return agentService.FallbackText
		}
		if chunk == nil {
			continue
		}
		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			r.client.sendJSON(map[string]string{"type": "llm_chunk", "text": chunk.Content})
		}
	}

	merged, err := schema.ConcatMessages(chunks)
	if err != nil {
		log.Printf("[relay] concat model chunks failed session=%s: %v", r.sessionID, err)
		return agentService.FallbackText
	}
	return merged.Content
}

// speak synthesizes the reply and streams audio chunks to the client. A
// synthesis failure is reported but never ends the session.
func (r *audioRelay) speak(ctx context.Context, text, voiceID string) {
	session, err := r.handler.speech.StreamSynthesize(ctx, r.sessionID, text, voiceID)
	if err != nil {
		log.Printf("[relay] synthesis unavailable session=%s: %v", r.sessionID, err)
		r.client.sendError("speech synthesis unavailable")
		return
	}

	index := 0
	for chunk := range session.Chunks() {
		r.client.sendJSON(map[string]any{
			"type":         "tts_audio",
			"audio_base64": base64.StdEncoding.EncodeToString(chunk.Data),
			"chunk_index":  index,
			"final":        chunk.Final,
		})
		index++
	}

	if err := session.Err(); err != nil {
		log.Printf("[relay] synthesis stream failed session=%s: %v", r.sessionID, err)
		r.client.sendError("speech synthesis unavailable")
	}
}

func (c *client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
