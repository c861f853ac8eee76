// Package transport maintains the persistent websocket connection to the
// brain service, reconnecting with exponential backoff on any failure.
package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ErrNotConnected is returned by Send while the connection is down. Callers
// drop the frame; envelopes are never queued locally.
var ErrNotConnected = errors.New("transport not connected")

// State is the connection lifecycle state, owned solely by the transport.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateBackoff
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// Config holds the transport tunables. Zero values fall back to defaults.
type Config struct {
	URL              string
	BaseDelay        time.Duration // first reconnect delay, default 1s
	MaxDelay         time.Duration // backoff cap, default 60s
	PingInterval     time.Duration // keep-alive ping period, default 30s
	PingGrace        time.Duration // extra slack before a missing pong kills the connection, default 3s
	WriteTimeout     time.Duration // per-frame write deadline, default 10s
	HandshakeTimeout time.Duration // dial timeout, default 10s
}

func (c *Config) applyDefaults() {
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 60 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.PingGrace <= 0 {
		c.PingGrace = 3 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
}

// Transport owns one logical connection to the brain service.
type Transport struct {
	cfg Config
	log zerolog.Logger

	state   atomic.Int32
	inbound chan []byte

	writeMu sync.Mutex
	connMu  sync.Mutex
	conn    *websocket.Conn
}

func New(cfg Config, log zerolog.Logger) *Transport {
	cfg.applyDefaults()
	return &Transport{
		cfg:     cfg,
		log:     log.With().Str("component", "transport").Logger(),
		inbound: make(chan []byte, 100),
	}
}

// State reports the current connection state.
func (t *Transport) State() State {
	return State(t.state.Load())
}

// Inbound returns the stream of raw frames read from the brain. The stream
// survives reconnects; it only ends when Run returns.
func (t *Transport) Inbound() <-chan []byte {
	return t.inbound
}

// Send writes one frame. It fails with ErrNotConnected while the connection
// is down so the caller can log and drop rather than block.
func (t *Transport) Send(ctx context.Context, payload []byte) error {
	t.connMu.Lock()
	conn := t.conn
	t.connMu.Unlock()
	if conn == nil || t.State() != StateConnected {
		return ErrNotConnected
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return err
	}
	return nil
}

// Run dials and re-dials the brain until ctx is cancelled. There is no
// give-up: this is an operational service, not a one-shot client. On each
// successful connect the backoff delay resets to base.
func (t *Transport) Run(ctx context.Context) {
	bo := newBackoff(t.cfg.BaseDelay, t.cfg.MaxDelay)
	defer t.state.Store(int32(StateDisconnected))
	defer close(t.inbound)

	for {
		if ctx.Err() != nil {
			return
		}

		t.state.Store(int32(StateConnecting))
		conn, err := t.dial(ctx)
		if err != nil {
			delay := bo.Next()
			t.state.Store(int32(StateBackoff))
			t.log.Warn().Err(err).Dur("retry_in", delay).Msg("connect to brain failed")
			if !sleepCtx(ctx, delay) {
				return
			}
			continue
		}

		bo.Reset()
		t.setConn(conn)
		t.state.Store(int32(StateConnected))
		t.log.Info().Str("url", t.cfg.URL).Msg("connected to brain")

		err = t.readPump(ctx, conn)
		t.setConn(nil)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}

		delay := bo.Next()
		t.state.Store(int32(StateBackoff))
		t.log.Warn().Err(err).Dur("retry_in", delay).Msg("connection to brain lost")
		if !sleepCtx(ctx, delay) {
			return
		}
	}
}

func (t *Transport) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := &websocket.Dialer{HandshakeTimeout: t.cfg.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, t.cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

func (t *Transport) setConn(conn *websocket.Conn) {
	t.connMu.Lock()
	t.conn = conn
	t.connMu.Unlock()
}

// readPump reads frames until the connection fails. A missing pong past
// interval+grace expires the read deadline, which surfaces as a read error
// and triggers reconnection.
func (t *Transport) readPump(ctx context.Context, conn *websocket.Conn) error {
	readWait := t.cfg.PingInterval + t.cfg.PingGrace
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go t.pingLoop(pingCtx, conn)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		select {
		case t.inbound <- payload:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (t *Transport) pingLoop(ctx context.Context, conn *websocket.Conn) {
	tick := time.NewTicker(t.cfg.PingInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			t.writeMu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			t.writeMu.Unlock()
			if err != nil {
				// The read pump will observe the broken connection.
				t.log.Debug().Err(err).Msg("keep-alive ping failed")
				_ = conn.Close()
				return
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
