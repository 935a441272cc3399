package venue

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// RawHandler receives every inbound WS frame for the caller to parse and
// dispatch. Generalized from gateway/binance_ws_handler.go's
// OnRawMessage pattern.
type RawHandler interface {
	OnRawMessage(data []byte)
}

// WSClient owns a single combined-stream websocket connection. The reconnect
// loop and its backoff live in cmd/marketmaker, and book merging in the feed
// package (FeedIngestor); this type only owns the transport, matching how
// gateway/binance_ws_real.go separates dialing from book-merge logic.
type WSClient struct {
	BaseEndpoint string
	Dialer       *websocket.Dialer
	conn         *websocket.Conn
}

func NewWSClient(baseEndpoint string) *WSClient {
	return &WSClient{
		BaseEndpoint: baseEndpoint,
		Dialer:       websocket.DefaultDialer,
	}
}

// Connect dials the combined stream for the given channel names.
func (c *WSClient) Connect(ctx context.Context, streams []string) error {
	url := c.BaseEndpoint
	for i, s := range streams {
		sep := "?streams="
		if i > 0 {
			sep = "&"
		}
		url += sep + s
	}
	conn, _, err := c.Dialer.DialContext(ctx, url, nil)
	if err != nil {
		return Wrap(KindTransient, "websocket dial failed", err)
	}
	c.conn = conn
	return nil
}

// Close closes the underlying connection, if any.
func (c *WSClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Run reads frames until the connection closes or ctx is cancelled,
// dispatching each to handler. Returns a Transient error on unexpected
// closure so the caller's reconnect loop can back off and retry.
func (c *WSClient) Run(ctx context.Context, handler RawHandler) error {
	if c.conn == nil {
		return Wrap(KindInvariant, "Run called before Connect", nil)
	}
	done := make(chan error, 1)
	go func() {
		for {
			_, msg, err := c.conn.ReadMessage()
			if err != nil {
				done <- Wrap(KindTransient, "websocket read failed", err)
				return
			}
			handler.OnRawMessage(msg)
		}
	}()
	select {
	case <-ctx.Done():
		_ = c.Close()
		return nil
	case err := <-done:
		return err
	}
}

// Heartbeat sends a ping every interval until ctx is cancelled or the
// connection errors.
func (c *WSClient) Heartbeat(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if c.conn == nil {
				return Wrap(KindInvariant, "heartbeat on nil connection", nil)
			}
			deadline := time.Now().Add(5 * time.Second)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return Wrap(KindTransient, "heartbeat ping failed", err)
			}
		}
	}
}

// BackoffDuration implements the 100ms*2^n, capped at 30s reconnect policy.
func BackoffDuration(attempt int) time.Duration {
	base := 100 * time.Millisecond
	d := base * time.Duration(1<<uint(attempt))
	capped := 30 * time.Second
	if d > capped || d <= 0 {
		return capped
	}
	return d
}
