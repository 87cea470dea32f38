// Package wstransport implements transport.Endpoint over a websocket duplex,
// one connection per connector: dial, read-deadline, ping keepalive, and
// exponential-backoff reconnect, carrying the bot's own Request/LiveEventExt
// envelope (see wire.go).
package wstransport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"livebot/internal/transport"
	"livebot/pkg/types"
)

const (
	pingInterval     = 50 * time.Second
	readTimeout      = 90 * time.Second
	writeTimeout     = 10 * time.Second
	maxReconnectWait = 30 * time.Second
	eventBufSize     = 256
)

// Endpoint is a websocket connection to one connector process, satisfying
// transport.Endpoint. Run must be started in its own goroutine before the
// endpoint is handed to a Multiplexer; it reconnects with backoff until ctx
// is cancelled or Close is called.
type Endpoint struct {
	name string
	url  string

	logger *slog.Logger

	connMu sync.Mutex
	conn   *websocket.Conn

	eventCh chan types.LiveEventExt

	closeOnce sync.Once
	closed    chan struct{}
}

// New creates an endpoint that will dial url when Run starts.
func New(name, url string, logger *slog.Logger) *Endpoint {
	if logger == nil {
		logger = slog.Default()
	}
	return &Endpoint{
		name:    name,
		url:     url,
		logger:  logger.With("component", "wstransport", "connector", name),
		eventCh: make(chan types.LiveEventExt, eventBufSize),
		closed:  make(chan struct{}),
	}
}

// Name implements transport.Endpoint.
func (e *Endpoint) Name() string { return e.name }

// Run dials the connector and reconnects with exponential backoff (capped at
// maxReconnectWait) until ctx is cancelled or Close is called. It blocks;
// callers run it in its own goroutine.
func (e *Endpoint) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		err := e.connectAndRead(ctx)
		select {
		case <-e.closed:
			return transport.ErrInterrupted
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		e.logger.Warn("connector websocket disconnected, reconnecting", "error", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.closed:
			return transport.ErrInterrupted
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

func (e *Endpoint) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, e.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	e.connMu.Lock()
	e.conn = conn
	e.connMu.Unlock()
	defer func() {
		e.connMu.Lock()
		if e.conn == conn {
			e.conn = nil
		}
		e.connMu.Unlock()
		conn.Close()
	}()

	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go e.pingLoop(pingCtx, conn)

	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if err := e.dispatchMessage(msg); err != nil {
			e.logger.Warn("dropping unparsable frame", "error", err)
		}
	}
}

func (e *Endpoint) dispatchMessage(msg []byte) error {
	var w wireEventExt
	if err := json.Unmarshal(msg, &w); err != nil {
		return err
	}
	ev, err := decodeEventExt(w)
	if err != nil {
		return err
	}

	select {
	case e.eventCh <- ev:
	default:
		e.logger.Warn("event channel full, dropping event")
	}
	return nil
}

func (e *Endpoint) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.connMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			e.connMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Publish implements transport.Endpoint.
func (e *Endpoint) Publish(ctx context.Context, botID uint64, req types.Request) error {
	kind, data, err := encodeRequest(req)
	if err != nil {
		return err
	}
	env := wireEnvelope{BotID: botID, Kind: kind, Data: data}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}

	e.connMu.Lock()
	conn := e.conn
	e.connMu.Unlock()
	if conn == nil {
		return fmt.Errorf("wstransport: %s not connected", e.name)
	}

	e.connMu.Lock()
	defer e.connMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// RecvOne implements transport.Endpoint.
func (e *Endpoint) RecvOne(ctx context.Context, botID uint64, deadline time.Duration) (types.LiveEventExt, error) {
	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case ev := <-e.eventCh:
		return ev, nil
	case <-e.closed:
		return types.LiveEventExt{}, transport.ErrInterrupted
	case <-ctx.Done():
		return types.LiveEventExt{}, ctx.Err()
	case <-timer.C:
		return types.LiveEventExt{}, transport.ErrTimeout
	}
}

// Close implements transport.Endpoint. Idempotent.
func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() {
		close(e.closed)
		e.connMu.Lock()
		if e.conn != nil {
			e.conn.Close()
		}
		e.connMu.Unlock()
	})
	return nil
}

var _ transport.Endpoint = (*Endpoint)(nil)
