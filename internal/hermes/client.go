package hermes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Client is a thin JSON publish/subscribe wrapper over a NATS connection.
type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	nc, err := nats.Connect(url, append(opts, nats.Name("labguard"))...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	logger.Info("nats connected", "url", nc.ConnectedUrlRedacted())

	return &Client{conn: nc, logger: logger}, nil
}

const queueGroup = "labguard"

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("hermes client closed")

func (c *Client) Publish(subject string, data any) error {
	if c.conn == nil || c.conn.IsClosed() {
		return ErrClosed
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

// Subscribe registers handler in the labguard queue group.
func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.QueueSubscribe(subject, queueGroup, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

// Unsubscribe stops delivery on every subscription while leaving the
// connection open for Publish.
func (c *Client) Unsubscribe() {
	for _, sub := range c.subs {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			c.logger.Warn("unsubscribe failed", "subject", sub.Subject, "error", err)
		}
	}
	c.subs = nil
}

func (c *Client) Close() {
	c.Unsubscribe()
	c.conn.Close()
}

// Connected reports whether the underlying connection is currently up.
func (c *Client) Connected() bool {
	return c.conn != nil && c.conn.IsConnected()
}
