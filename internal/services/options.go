package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/bibliotheque/apiserver/internal/metrics"
)

// EventPublisher sends loan events to a broker. mq.MQ satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// Option configures a service.
type Option func(*settings)

type settings struct {
	now           func() time.Time
	logger        *slog.Logger
	events        EventPublisher
	eventsChannel string
	metrics       *metrics.Lending
}

func newSettings(opts []Option) settings {
	s := settings{
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithClock overrides the time source used for loan dates and classification.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEvents publishes loan events on channel through publisher.
func WithEvents(publisher EventPublisher, channel string) Option {
	return func(s *settings) {
		s.events = publisher
		s.eventsChannel = channel
	}
}

// WithMetrics records lending counters.
func WithMetrics(m *metrics.Lending) Option {
	return func(s *settings) {
		s.metrics = m
	}
}
