// Package signal is the client side of the relay connection: one websocket
// per session carrying the colon-separated text protocol.
package signal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
)

const (
	defaultWriteDeadline = 5 * time.Second
	defaultCloseTimeout  = 2 * time.Second
	eventBuffer          = 64
)

type Config struct {
	URL              string
	HandshakeTimeout time.Duration
	PingPeriod       time.Duration
	ReadLimit        int64
	SendBuffer       int
}

// Connector dials the relay. It implements core.Connector.
type Connector struct {
	cfg    Config
	dialer *websocket.Dialer
}

func NewConnector(cfg Config) *Connector {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 32
	}
	if cfg.PingPeriod <= 0 {
		cfg.PingPeriod = 54 * time.Second
	}
	return &Connector{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
	}
}

// Connect opens the channel and queues register:<selfID> as its first frame.
func (c *Connector) Connect(ctx context.Context, selfID domain.UserID) (core.SignalChannel, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Error().Err(err).Str("module", "signal").Str("url", c.cfg.URL).Msg("dial failed")
		return nil, fmt.Errorf("%w: dial %s: %v", domain.ErrConnectionLost, c.cfg.URL, err)
	}

	ch := newChannel(conn, selfID, c.cfg)
	if err := ch.Send(protocol.Register{UserID: selfID}); err != nil {
		_ = conn.Close()
		return nil, err
	}
	go ch.writePump()
	go ch.readPump()
	log.Info().Str("module", "signal").Str("self", string(selfID)).Str("url", c.cfg.URL).Msg("connected")
	return ch, nil
}

// Channel implements core.SignalChannel. Only the write pump writes to conn.
type Channel struct {
	conn       *websocket.Conn
	self       domain.UserID
	send       chan []byte
	events     chan core.SignalEvent
	quit       chan struct{}
	readerDone chan struct{}
	writerDone chan struct{}

	pingPeriod time.Duration
	pongWait   time.Duration
	readLimit  int64

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

func newChannel(conn *websocket.Conn, self domain.UserID, cfg Config) *Channel {
	return &Channel{
		conn:       conn,
		self:       self,
		send:       make(chan []byte, cfg.SendBuffer),
		events:     make(chan core.SignalEvent, eventBuffer),
		quit:       make(chan struct{}),
		readerDone: make(chan struct{}),
		writerDone: make(chan struct{}),
		pingPeriod: cfg.PingPeriod,
		pongWait:   cfg.PingPeriod * 10 / 9,
		readLimit:  cfg.ReadLimit,
	}
}

func (c *Channel) Events() <-chan core.SignalEvent { return c.events }

// Send queues f without waiting for the network.
func (c *Channel) Send(f protocol.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return domain.ErrChannelClosed
	}
	select {
	case c.send <- []byte(protocol.Encode(f)):
		return nil
	default:
		return domain.ErrBackpressure
	}
}

// Close flushes queued frames, sends a close message and drops the socket.
// The Events stream ends with a Disconnected event carrying a nil error.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.quit)

		select {
		case <-c.writerDone:
		case <-time.After(defaultCloseTimeout):
			log.Warn().Str("module", "signal").Str("self", string(c.self)).Msg("close timed out")
		}
		if err := c.conn.Close(); err != nil {
			log.Debug().Err(err).Str("module", "signal").Msg("conn close")
		}
	})
	return nil
}

// markClosed reports whether Close had already been requested.
func (c *Channel) markClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	byUs := c.closed
	c.closed = true
	return byUs
}

func (c *Channel) readPump() {
	var readErr error
	defer func() {
		close(c.readerDone)
		ev := core.SignalEvent{Disconnected: true}
		if !c.markClosed() {
			ev.Err = fmt.Errorf("%w: %v", domain.ErrConnectionLost, readErr)
			log.Warn().Err(readErr).Str("module", "signal").Str("self", string(c.self)).Msg("connection lost")
			_ = c.conn.Close()
		} else {
			log.Info().Str("module", "signal").Str("self", string(c.self)).Msg("disconnected")
		}
		c.events <- ev
		close(c.events)
	}()

	if c.readLimit > 0 {
		c.conn.SetReadLimit(c.readLimit)
	}
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(c.pongWait)) }
	c.conn.SetPongHandler(func(string) error { return extend() })
	if readErr = extend(); readErr != nil {
		return
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			readErr = err
			return
		}
		_ = extend()
		for _, line := range protocol.Split(string(data)) {
			f, err := protocol.Parse(line)
			if err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("dropping frame")
				continue
			}
			c.events <- core.SignalEvent{Frame: f}
		}
	}
}

func (c *Channel) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.writerDone)
	}()

	for {
		select {
		case <-c.readerDone:
			return
		case <-c.quit:
			c.flush()
			c.writeClose()
			return
		case data := <-c.send:
			if err := c.write(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				_ = c.conn.Close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump ping error")
				_ = c.conn.Close()
				return
			}
		}
	}
}

func (c *Channel) write(mt int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(defaultWriteDeadline)); err != nil {
		return err
	}
	return c.conn.WriteMessage(mt, data)
}

// flush writes whatever was queued before Close.
func (c *Channel) flush() {
	for {
		select {
		case data := <-c.send:
			if err := c.write(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Channel) writeClose() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	err := c.write(websocket.CloseMessage, msg)
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		log.Debug().Err(err).Str("module", "signal").Msg("write close message")
	}
}
