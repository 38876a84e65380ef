package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io-go-parser/packet"
	sioparser "github.com/zishang520/socket.io-go-parser/v2/parser"

	"github.com/talentvibe/tui/internal/obs"
)

const handshakeTimeout = 10 * time.Second

// ErrChannelClosed is returned by Connect after Close.
var ErrChannelClosed = errors.New("progress channel closed")

// Handler receives progress events one at a time, in arrival order.
type Handler func(ProgressEvent)

// Channel is a server-push source of progress events. Connect opens it and
// Close tears it down; after Close returns the handler is never invoked again.
// A dropped connection ends delivery silently.
type Channel interface {
	Connect(ctx context.Context) error
	Close() error
}

// EventChannel receives progress_update events over a Socket.IO websocket.
type EventChannel struct {
	baseURL string
	handler Handler
	logger  *logrus.Logger
	dialer  *websocket.Dialer

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	done   chan struct{}
}

// NewEventChannel creates a channel for the server at baseURL.
func NewEventChannel(baseURL string, handler Handler, logger *logrus.Logger) *EventChannel {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &EventChannel{
		baseURL: baseURL,
		handler: handler,
		logger:  logger,
		dialer:  &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
	}
}

// Connect dials the server, completes the Engine.IO and Socket.IO handshakes
// and starts delivering events in the background.
func (c *EventChannel) Connect(ctx context.Context) error {
	wsURL, err := websocketURL(c.baseURL)
	if err != nil {
		return err
	}

	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}

	sid, err := handshake(conn)
	if err != nil {
		conn.Close()
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrChannelClosed
	}
	c.conn = conn
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{"url": wsURL, "sid": sid}).Info("channel.connected")
	go c.loop(conn, done)
	return nil
}

// Close disconnects and waits for the read loop to stop.
func (c *EventChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn, done := c.conn, c.done
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := conn.Close()
	<-done
	c.logger.Info("channel.closed")
	return err
}

func handshake(conn *websocket.Conn) (string, error) {
	if err := conn.SetReadDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		return "", err
	}
	_, frame, err := conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("read open packet: %w", err)
	}
	p, err := decodeFrame(frame)
	if err != nil {
		return "", err
	}
	h, err := decodeOpen(p)
	if err != nil {
		return "", err
	}
	frames, err := messageFrames(&sioparser.Packet{Type: sioparser.CONNECT, Nsp: "/"})
	if err != nil {
		return "", err
	}
	for _, f := range frames {
		if err := conn.WriteMessage(websocket.TextMessage, f); err != nil {
			return "", fmt.Errorf("send connect: %w", err)
		}
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return "", err
	}
	return h.SID, nil
}

// loop reads frames until the connection ends. Socket.IO packets are decoded
// synchronously on this goroutine, so events reach the handler in arrival order.
func (c *EventChannel) loop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	decoder := sioparser.NewDecoder()
	defer decoder.Destroy()
	ended := false
	_ = decoder.On("decoded", func(args ...any) {
		if len(args) == 0 {
			return
		}
		if p, ok := args[0].(*sioparser.Packet); ok {
			ended = c.onPacket(p) || ended
		}
	})

	for !ended {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if !c.isClosed() {
				c.logger.WithError(err).Warn("channel.dropped")
			}
			return
		}
		p, err := decodeFrame(frame)
		if err != nil {
			c.logger.WithError(err).Debug("channel.bad_packet")
			continue
		}

		switch p.Type {
		case packet.PING:
			pong, err := encodeFrame(&packet.Packet{Type: packet.PONG})
			if err == nil {
				err = conn.WriteMessage(websocket.TextMessage, pong)
			}
			if err != nil {
				c.logger.WithError(err).Warn("channel.pong_failed")
			}
		case packet.CLOSE:
			c.logger.Info("channel.server_closed")
			return
		case packet.MESSAGE:
			if err := decoder.Add(p.Data); err != nil {
				c.logger.WithError(err).Debug("channel.bad_message")
			}
		}
	}
}

// onPacket handles one Socket.IO packet and reports whether the session ended.
func (c *EventChannel) onPacket(p *sioparser.Packet) bool {
	switch p.Type {
	case sioparser.CONNECT:
		c.logger.Debug("channel.namespace_joined")
	case sioparser.EVENT:
		c.dispatch(p)
	case sioparser.DISCONNECT:
		c.logger.Info("channel.server_disconnect")
		return true
	case sioparser.CONNECT_ERROR:
		c.logger.WithField("payload", p.Data).Warn("channel.connect_error")
		return true
	}
	return false
}

func (c *EventChannel) dispatch(p *sioparser.Packet) {
	name, args, ok := eventArgs(p)
	if !ok {
		c.logger.Debug("channel.bad_event")
		return
	}
	if name != ProgressEventName || len(args) == 0 {
		return
	}
	ev, err := decodeProgress(args[0])
	if err != nil {
		c.logger.WithError(err).Debug("channel.bad_progress")
		return
	}
	if c.isClosed() {
		return
	}
	obs.RecordProgressEvent(string(ev.Category))
	c.handler(ev)
}

func (c *EventChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
