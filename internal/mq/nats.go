package mq

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/bibliotheque/apiserver/config"
)

// NATSClient publishes loan events on core NATS subjects named after the
// channel. Attributes travel as message headers. Core NATS has no
// redelivery, so a handler error is logged and the message dropped.
type NATSClient struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewNATSClient connects to cfg.URL.
func NewNATSClient(cfg config.NATSConfig) (*NATSClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("nats url is required")
	}

	opts := []nats.Option{nats.MaxReconnects(cfg.MaxReconnects)}
	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}
	if cfg.ReconnectWait > 0 {
		opts = append(opts, nats.ReconnectWait(cfg.ReconnectWait))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, err
	}
	return &NATSClient{conn: conn, logger: slog.Default()}, nil
}

// Publish sends data on the subject named channel and flushes it to the server.
func (n *NATSClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	msg := nats.NewMsg(channel)
	msg.Data = data
	for key, value := range attrs {
		msg.Header.Set(key, value)
	}

	messageID := attrs["eventId"]
	if messageID == "" {
		messageID = uuid.NewString()
	}
	msg.Header.Set(nats.MsgIdHdr, messageID)

	if err := n.conn.PublishMsg(msg); err != nil {
		return "", err
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return "", err
	}
	return messageID, nil
}

// Subscribe delivers messages on the subject named channel until ctx is done.
func (n *NATSClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	sub, err := n.conn.Subscribe(channel, natsHandler(ctx, handler, n.logger))
	if err != nil {
		return err
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()

	<-ctx.Done()
	return ctx.Err()
}

// Close drains pending messages and closes the connection.
func (n *NATSClient) Close() error {
	return n.conn.Drain()
}

func natsHandler(ctx context.Context, handler Handler, logger *slog.Logger) nats.MsgHandler {
	return func(msg *nats.Msg) {
		m := natsMessage(msg)
		if err := handler(ctx, m); err != nil {
			logger.Warn("nats handler failed",
				slog.String("subject", msg.Subject),
				slog.String("message_id", m.ID),
				slog.Any("error", err),
			)
		}
	}
}

func natsMessage(msg *nats.Msg) Message {
	var attrs map[string]string
	if len(msg.Header) > 0 {
		attrs = make(map[string]string, len(msg.Header))
		for key := range msg.Header {
			if key == nats.MsgIdHdr {
				continue
			}
			attrs[key] = msg.Header.Get(key)
		}
	}
	return Message{
		ID:         msg.Header.Get(nats.MsgIdHdr),
		Data:       msg.Data,
		Attributes: attrs,
	}
}
