package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrSTTNotConfigured = errors.New("speech-to-text is not configured")
	ErrTranscriptFailed = errors.New("transcription failed")
)

const (
	assemblyAIBaseURL   = "https://api.assemblyai.com"
	assemblyAIStreamURL = "wss://streaming.assemblyai.com/v3/ws"
)

// AssemblyAIClient covers both the realtime streaming API and the file
// transcription REST API.
type AssemblyAIClient struct {
	apiKey    string
	baseURL   string
	streamURL string
	httpc     *http.Client
	dialOpts  *DialOptions
}

func NewAssemblyAIClient(apiKey string) *AssemblyAIClient {
	return &AssemblyAIClient{
		apiKey:    apiKey,
		baseURL:   assemblyAIBaseURL,
		streamURL: assemblyAIStreamURL,
		httpc:     &http.Client{Timeout: 30 * time.Second},
		dialOpts:  DefaultDialOptions(),
	}
}

// SetBaseURL repoints the REST endpoints, for tests.
func (c *AssemblyAIClient) SetBaseURL(base string) { c.baseURL = strings.TrimRight(base, "/") }

// SetStreamURL repoints the realtime endpoint, for tests.
func (c *AssemblyAIClient) SetStreamURL(u string) { c.streamURL = u }

func (c *AssemblyAIClient) Enabled() bool { return c.apiKey != "" }

// TranscriptEvent is one partial or final recognition result from a
// realtime session.
type TranscriptEvent struct {
	Text      string
	EndOfTurn bool
	Formatted bool
}

// RealtimeSession is one live connection to the streaming recognizer.
// SendAudio may be called from one goroutine while Events is drained from
// another.
type RealtimeSession struct {
	conn    *websocket.Conn
	events  chan TranscriptEvent
	writeMu sync.Mutex
	errMu   sync.Mutex
	err     error
	done    chan struct{}
}

// StreamTranscribe opens a realtime recognition session sending 16-bit PCM
// at the given sample rate.
func (c *AssemblyAIClient) StreamTranscribe(ctx context.Context, sampleRate int) (*RealtimeSession, error) {
	if !c.Enabled() {
		return nil, ErrSTTNotConfigured
	}
	if sampleRate <= 0 {
		sampleRate = 16000
	}

	q := url.Values{}
	q.Set("sample_rate", fmt.Sprintf("%d", sampleRate))
	q.Set("format_turns", "true")

	header := http.Header{}
	header.Set("Authorization", c.apiKey)

	conn, err := DialWithRetry(ctx, c.streamURL+"?"+q.Encode(), header, c.dialOpts)
	if err != nil {
		return nil, fmt.Errorf("connect to recognizer: %w", err)
	}

	session := &RealtimeSession{
		conn:   conn,
		events: make(chan TranscriptEvent, 16),
		done:   make(chan struct{}),
	}
	go session.readLoop()

	return session, nil
}

type realtimeMessage struct {
	Type            string `json:"type"`
	Transcript      string `json:"transcript"`
	EndOfTurn       bool   `json:"end_of_turn"`
	TurnIsFormatted bool   `json:"turn_is_formatted"`
	Error           string `json:"error"`
}

func (s *RealtimeSession) readLoop() {
	defer close(s.events)
	defer close(s.done)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				s.setErr(err)
			}
			return
		}

		var msg realtimeMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("[stt] unreadable recognizer message: %v", err)
			continue
		}

		switch msg.Type {
		case "Begin":
			// session handshake, nothing to surface
		case "Turn":
			if msg.Transcript == "" {
				continue
			}
			s.events <- TranscriptEvent{
				Text:      msg.Transcript,
				EndOfTurn: msg.EndOfTurn,
				Formatted: msg.TurnIsFormatted,
			}
		case "Termination":
			return
		case "Error":
			s.setErr(fmt.Errorf("recognizer error: %s", msg.Error))
			return
		}
	}
}

func (s *RealtimeSession) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Err reports the first failure seen by the read loop.
func (s *RealtimeSession) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Events delivers recognition results until the session ends.
func (s *RealtimeSession) Events() <-chan TranscriptEvent { return s.events }

// SendAudio forwards one chunk of 16-bit PCM audio.
func (s *RealtimeSession) SendAudio(chunk []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	return nil
}

// Close asks the recognizer to terminate, waits briefly for the read loop to
// drain, then drops the connection.
func (s *RealtimeSession) Close() error {
	s.writeMu.Lock()
	s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Terminate"}`))
	s.writeMu.Unlock()

	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
	}

	if closeErr := s.conn.Close(); err == nil {
		err = closeErr
	}
	return err
}

// ---- file transcription ----

// Upload pushes raw audio bytes and returns the vendor's upload URL.
func (c *AssemblyAIClient) Upload(ctx context.Context, audio io.Reader) (string, error) {
	if !c.Enabled() {
		return "", ErrSTTNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/upload", audio)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	var resp struct {
		UploadURL string `json:"upload_url"`
	}
	if err := c.do(req, &resp); err != nil {
		return "", fmt.Errorf("upload audio: %w", err)
	}
	if resp.UploadURL == "" {
		return "", fmt.Errorf("upload audio: empty upload url")
	}
	return resp.UploadURL, nil
}

// Transcript is a completed file transcription.
type Transcript struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
}

// TranscribeFile uploads audio, requests a transcript and polls until the
// job settles.
func (c *AssemblyAIClient) TranscribeFile(ctx context.Context, audio io.Reader) (*Transcript, error) {
	uploadURL, err := c.Upload(ctx, audio)
	if err != nil {
		return nil, err
	}

	id, err := c.createTranscript(ctx, uploadURL)
	if err != nil {
		return nil, err
	}

	return c.pollTranscript(ctx, id)
}

func (c *AssemblyAIClient) createTranscript(ctx context.Context, audioURL string) (string, error) {
	payload, _ := json.Marshal(map[string]string{"audio_url": audioURL})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/transcript", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build transcript request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var resp Transcript
	if err := c.do(req, &resp); err != nil {
		return "", fmt.Errorf("create transcript: %w", err)
	}
	return resp.ID, nil
}

func (c *AssemblyAIClient) pollTranscript(ctx context.Context, id string) (*Transcript, error) {
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/transcript/"+id, nil)
		if err != nil {
			return nil, fmt.Errorf("build poll request: %w", err)
		}
		req.Header.Set("Authorization", c.apiKey)

		var tr Transcript
		if err := c.do(req, &tr); err != nil {
			return nil, fmt.Errorf("poll transcript: %w", err)
		}

		switch tr.Status {
		case "completed":
			return &tr, nil
		case "error":
			return nil, fmt.Errorf("%w: %s", ErrTranscriptFailed, tr.Error)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func (c *AssemblyAIClient) do(req *http.Request, out any) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, out)
}

// Probe makes an authenticated no-op request so callers can verify the key
// without transcribing anything.
func (c *AssemblyAIClient) Probe(ctx context.Context) error {
	if !c.Enabled() {
		return ErrSTTNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/transcript?limit=1", nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)

	var out json.RawMessage
	if err := c.do(req, &out); err != nil {
		return fmt.Errorf("probe: %w", err)
	}
	return nil
}
