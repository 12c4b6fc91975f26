package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bibliotheque/apiserver/internal/lending"
	"github.com/bibliotheque/apiserver/internal/metrics"
	"github.com/bibliotheque/apiserver/types"
)

// ReminderService publishes a loan.overdue event for every overdue loan.
// It never writes to the store.
type ReminderService struct {
	loans   LoanLister
	events  EventPublisher
	channel string
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Lending
}

func NewReminderService(loans LoanLister, opts ...Option) (*ReminderService, error) {
	s := newSettings(opts)
	if s.events == nil {
		return nil, errors.New("reminders need an event publisher")
	}
	return &ReminderService{
		loans:   loans,
		events:  s.events,
		channel: s.eventsChannel,
		now:     s.now,
		logger:  s.logger,
		metrics: s.metrics,
	}, nil
}

// RunOnce scans overdue loans and publishes one reminder each. It returns
// the number of reminders sent; a failed publish is logged and skipped.
func (s *ReminderService) RunOnce(ctx context.Context) (int, error) {
	now := s.now()
	open := true
	loans, err := s.loans.List(ctx, types.LoanQuery{Open: &open, DueBefore: &now})
	if err != nil {
		return 0, fmt.Errorf("list overdue loans: %w", err)
	}
	s.metrics.SetOverdueLoans(len(loans))

	sent := 0
	for _, loan := range loans {
		event := types.LoanEvent{
			ID:          uuid.NewString(),
			Type:        types.LoanEventOverdue,
			LoanID:      loan.ID,
			UserID:      loan.UserID,
			BookID:      loan.BookID,
			DueAt:       loan.DueAt,
			DaysOverdue: lending.DaysOverdue(loan.DueAt, now),
			OccurredAt:  now,
		}
		if err := publishEvent(ctx, s.events, s.channel, event); err != nil {
			s.metrics.EventPublishFailed()
			s.logger.Warn("send overdue reminder", slog.Int("loan_id", loan.ID), slog.Any("error", err))
			continue
		}
		s.metrics.ReminderSent()
		sent++
	}
	s.logger.Info("overdue reminders sent", slog.Int("overdue", len(loans)), slog.Int("sent", sent))
	return sent, nil
}

// Run calls RunOnce immediately and then every interval until ctx is done.
func (s *ReminderService) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("reminder interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("reminder scan failed", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
