// Package mq publishes and consumes loan events over a pluggable broker.
package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bibliotheque/apiserver/config"
)

// Supported values of MQ_BACKEND.
const (
	BackendNone     = ""
	BackendRabbitMQ = "rabbitmq"
	BackendPubSub   = "pubsub"
	BackendNATS     = "nats"
)

// ErrDisabled is returned by NewFromConfig when no broker is configured.
var ErrDisabled = errors.New("message queue disabled")

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ wraps a backend with a stable API.
type MQ struct {
	backend Backend
	name    string
}

// New constructs an MQ wrapper for the provided backend.
func New(name string, backend Backend) *MQ {
	return &MQ{backend: backend, name: name}
}

// NewFromConfig connects to the broker selected by cfg.Backend. It returns
// ErrDisabled when cfg.Backend is empty.
func NewFromConfig(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Backend))

	var (
		backend Backend
		err     error
	)
	switch name {
	case BackendNone:
		return nil, ErrDisabled
	case BackendRabbitMQ:
		backend, err = NewRabbitMQClient(cfg.RabbitMQ)
	case BackendPubSub:
		backend, err = NewPubSubClient(ctx, cfg.PubSub)
	case BackendNATS:
		backend, err = NewNATSClient(cfg.NATS)
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", name, err)
	}
	return New(name, backend), nil
}

// Name returns the backend name.
func (m *MQ) Name() string {
	return m.name
}

// Publish sends a message to the named channel.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("mq channel is required")
	}
	return m.backend.Publish(ctx, channel, data, attrs)
}

// Subscribe consumes messages from the named channel until ctx is done.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("mq channel is required")
	}
	return m.backend.Subscribe(ctx, channel, handler)
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}
