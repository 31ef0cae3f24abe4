package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kundanmehta01/murf-voice-agent/pkg/utils"
)

var ErrTTSNotConfigured = errors.New("text-to-speech is not configured")

const (
	murfBaseURL   = "https://api.murf.ai"
	murfStreamURL = "wss://api.murf.ai/v1/speech/stream-input"

	// murfCharLimit is the per-request character ceiling of the generate
	// endpoint. Longer texts are chunked at sentence boundaries.
	murfCharLimit = 3000
)

// MurfClient synthesizes speech via Murf's REST and streaming APIs.
type MurfClient struct {
	apiKey    string
	baseURL   string
	streamURL string
	format    string
	httpc     *http.Client
	dialOpts  *DialOptions
}

func NewMurfClient(apiKey, format string) *MurfClient {
	if format == "" {
		format = "mp3"
	}
	return &MurfClient{
		apiKey:    apiKey,
		baseURL:   murfBaseURL,
		streamURL: murfStreamURL,
		format:    format,
		httpc:     &http.Client{Timeout: 60 * time.Second},
		dialOpts:  DefaultDialOptions(),
	}
}

// SetBaseURL repoints the REST endpoints, for tests.
func (c *MurfClient) SetBaseURL(base string) { c.baseURL = strings.TrimRight(base, "/") }

// SetStreamURL repoints the streaming endpoint, for tests.
func (c *MurfClient) SetStreamURL(u string) { c.streamURL = u }

func (c *MurfClient) Enabled() bool { return c.apiKey != "" }

// GeneratedAudio is the REST synthesis result for one text chunk.
type GeneratedAudio struct {
	AudioURL   string `json:"audio_url"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
}

type murfGenerateRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voiceId"`
	Format  string `json:"format"`
}

type murfGenerateResponse struct {
	AudioFile string `json:"audioFile"`
}

// Generate synthesizes speech for arbitrary-length text, splitting it into
// vendor-sized chunks and returning one audio URL per chunk.
func (c *MurfClient) Generate(ctx context.Context, text, voiceID string) ([]GeneratedAudio, error) {
	if !c.Enabled() {
		return nil, ErrTTSNotConfigured
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("nothing to synthesize")
	}

	chunks := utils.ChunkText(text, murfCharLimit)
	out := make([]GeneratedAudio, 0, len(chunks))
	for i, chunk := range chunks {
		audioURL, err := c.generateChunk(ctx, chunk, voiceID)
		if err != nil {
			return nil, fmt.Errorf("synthesize chunk %d: %w", i, err)
		}
		out = append(out, GeneratedAudio{AudioURL: audioURL, ChunkIndex: i, Text: chunk})
	}
	return out, nil
}

func (c *MurfClient) generateChunk(ctx context.Context, text, voiceID string) (string, error) {
	payload, _ := json.Marshal(murfGenerateRequest{Text: text, VoiceID: voiceID, Format: strings.ToUpper(c.format)})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/speech/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed murfGenerateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if parsed.AudioFile == "" {
		return "", fmt.Errorf("no audio file in response")
	}
	return parsed.AudioFile, nil
}

// Voice is one entry from the vendor's voice catalog.
type Voice struct {
	VoiceID     string   `json:"voiceId"`
	DisplayName string   `json:"displayName"`
	Locale      string   `json:"locale"`
	Gender      string   `json:"gender"`
	Styles      []string `json:"availableStyles"`
}

// Voices lists the synthesis voices available to the configured account.
func (c *MurfClient) Voices(ctx context.Context) ([]Voice, error) {
	if !c.Enabled() {
		return nil, ErrTTSNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/speech/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("build voices request: %w", err)
	}
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var voices []Voice
	if err := json.Unmarshal(body, &voices); err != nil {
		return nil, fmt.Errorf("decode voices: %w", err)
	}
	return voices, nil
}

// AudioChunk is one streamed synthesis fragment, already base64 decoded.
type AudioChunk struct {
	Data  []byte
	Final bool
}

// StreamSession is a live streaming synthesis connection.
type StreamSession struct {
	conn   *websocket.Conn
	chunks chan AudioChunk
	err    error
	done   chan struct{}
}

type murfVoiceConfig struct {
	VoiceID    string `json:"voiceId"`
	Style      string `json:"style,omitempty"`
	Rate       int    `json:"rate,omitempty"`
	Pitch      int    `json:"pitch,omitempty"`
	SampleRate int    `json:"sampleRate,omitempty"`
	Format     string `json:"format,omitempty"`
}

// StreamGenerate opens a streaming synthesis session for one utterance. The
// returned session delivers audio chunks in order until the final one.
func (c *MurfClient) StreamGenerate(ctx context.Context, text, voiceID string) (*StreamSession, error) {
	if !c.Enabled() {
		return nil, ErrTTSNotConfigured
	}

	header := http.Header{}
	header.Set("api-key", c.apiKey)

	conn, err := DialWithRetry(ctx, c.streamURL, header, c.dialOpts)
	if err != nil {
		return nil, fmt.Errorf("connect to synthesizer: %w", err)
	}

	// voice config goes first, then the text, then the end marker
	cfg := map[string]any{"voice_config": murfVoiceConfig{VoiceID: voiceID, Format: strings.ToUpper(c.format)}}
	if err := conn.WriteJSON(cfg); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send voice config: %w", err)
	}
	if err := conn.WriteJSON(map[string]string{"text": text}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send text: %w", err)
	}
	if err := conn.WriteJSON(map[string]bool{"end": true}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send end marker: %w", err)
	}

	session := &StreamSession{
		conn:   conn,
		chunks: make(chan AudioChunk, 8),
		done:   make(chan struct{}),
	}
	go session.readLoop()

	return session, nil
}

type murfStreamMessage struct {
	Audio string `json:"audio"`
	Final bool   `json:"final"`
	Error string `json:"error"`
}

func (s *StreamSession) readLoop() {
	defer close(s.chunks)
	defer close(s.done)
	defer s.conn.Close()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				s.err = err
			}
			return
		}

		var msg murfStreamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Error != "" {
			s.err = fmt.Errorf("synthesizer error: %s", msg.Error)
			return
		}
		if msg.Audio == "" {
			continue
		}

		decoded, err := base64.StdEncoding.DecodeString(msg.Audio)
		if err != nil {
			s.err = fmt.Errorf("decode audio chunk: %w", err)
			return
		}

		s.chunks <- AudioChunk{Data: decoded, Final: msg.Final}
		if msg.Final {
			return
		}
	}
}

// Chunks delivers decoded audio fragments until synthesis completes.
func (s *StreamSession) Chunks() <-chan AudioChunk { return s.chunks }

// Err reports the first failure seen by the read loop. Valid after Chunks is
// drained.
func (s *StreamSession) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}
