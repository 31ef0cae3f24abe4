package speech

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// DialOptions tunes the outbound vendor WebSocket connections.
type DialOptions struct {
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	MaxRetries       int
}

// DefaultDialOptions returns the settings used against AssemblyAI and Murf.
func DefaultDialOptions() *DialOptions {
	return &DialOptions{
		HandshakeTimeout: 15 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     15 * time.Second,
		PingInterval:     30 * time.Second,
		MaxRetries:       3,
	}
}

// DialWithRetry establishes a vendor WebSocket connection, retrying with a
// linear backoff. The returned connection has its read deadline refreshed on
// pongs and a ping loop running until ctx is done.
func DialWithRetry(ctx context.Context, url string, header http.Header, opts *DialOptions) (*websocket.Conn, error) {
	if opts == nil {
		opts = DefaultDialOptions()
	}

	var lastErr error
	for i := 0; i < opts.MaxRetries; i++ {
		conn, err := dial(ctx, url, header, opts)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		retryDelay := time.Duration(i+1) * time.Second
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}

	return nil, fmt.Errorf("failed to connect after %d retries, last error: %w", opts.MaxRetries, lastErr)
}

func dial(ctx context.Context, url string, header http.Header, opts *DialOptions) (*websocket.Conn, error) {
	dialer := &websocket.Dialer{
		HandshakeTimeout: opts.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(opts.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(opts.ReadTimeout))
		return nil
	})

	go pingLoop(ctx, conn, opts)

	return conn, nil
}

func pingLoop(ctx context.Context, conn *websocket.Conn, opts *DialOptions) {
	ticker := time.NewTicker(opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// IsRetryableError reports whether a vendor socket failure is worth one more
// connection attempt.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	return websocket.IsCloseError(err, websocket.CloseAbnormalClosure, websocket.CloseGoingAway)
}
