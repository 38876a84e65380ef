package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/talentvibe/tui/internal/obs"
)

// DefaultNATSSubject carries progress payloads when the NATS transport is used.
const DefaultNATSSubject = "talentvibe.progress"

// NATSChannel receives progress payloads published on a NATS subject.
type NATSChannel struct {
	url     string
	subject string
	handler Handler
	logger  *logrus.Logger

	mu       sync.Mutex
	nc       *nats.Conn
	sub      *nats.Subscription
	closed   bool
	inflight sync.WaitGroup
}

// NewNATSChannel creates a channel subscribed to subject on the server at url.
func NewNATSChannel(url, subject string, handler Handler, logger *logrus.Logger) *NATSChannel {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if subject == "" {
		subject = DefaultNATSSubject
	}
	return &NATSChannel{
		url:     url,
		subject: subject,
		handler: handler,
		logger:  logger,
	}
}

// Connect opens the NATS connection and subscribes. Reconnection is disabled:
// a lost server ends delivery.
func (c *NATSChannel) Connect(ctx context.Context) error {
	opts := []nats.Option{
		nats.Name("talentvibe-tui"),
		nats.NoReconnect(),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				c.logger.WithError(err).Warn("nats.dropped")
			}
		}),
	}
	if deadline, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Timeout(time.Until(deadline)))
	}

	nc, err := nats.Connect(c.url, opts...)
	if err != nil {
		return fmt.Errorf("connect nats %s: %w", c.url, err)
	}

	sub, err := nc.Subscribe(c.subject, c.onMsg)
	if err != nil {
		nc.Close()
		return fmt.Errorf("subscribe %s: %w", c.subject, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = sub.Unsubscribe()
		nc.Close()
		return ErrChannelClosed
	}
	c.nc, c.sub = nc, sub
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{"url": c.url, "subject": c.subject}).Info("nats.subscribed")
	return nil
}

// Close unsubscribes, closes the connection and waits for an in-flight
// handler call to return.
func (c *NATSChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	nc, sub := c.nc, c.sub
	c.mu.Unlock()

	var err error
	if sub != nil {
		err = sub.Unsubscribe()
	}
	if nc != nil {
		nc.Close()
	}
	c.inflight.Wait()
	return err
}

func (c *NATSChannel) onMsg(m *nats.Msg) {
	ev, err := decodeProgress(m.Data)
	if err != nil {
		c.logger.WithError(err).Debug("nats.bad_progress")
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.inflight.Add(1)
	c.mu.Unlock()
	defer c.inflight.Done()

	obs.RecordProgressEvent(string(ev.Category))
	c.handler(ev)
}
