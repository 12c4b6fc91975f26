package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bibliotheque/apiserver/internal/lending"
	"github.com/bibliotheque/apiserver/internal/metrics"
	"github.com/bibliotheque/apiserver/internal/store"
	"github.com/bibliotheque/apiserver/types"
)

// LoanRepository defines persistence operations for loans. CreateChecked
// must verify the lending preconditions atomically with the insert.
type LoanRepository interface {
	CreateChecked(ctx context.Context, loan types.Loan) (types.Loan, error)
	MarkReturned(ctx context.Context, id int, at time.Time) (types.Loan, error)
	GetByID(ctx context.Context, id int) (types.LoanDetails, error)
	List(ctx context.Context, q types.LoanQuery) ([]types.LoanDetails, error)
}

// LoanService manages the loan lifecycle: lending a copy, taking it back
// and listing loans classified against the current time.
type LoanService struct {
	repo          LoanRepository
	now           func() time.Time
	logger        *slog.Logger
	events        EventPublisher
	eventsChannel string
	metrics       *metrics.Lending
}

func NewLoanService(repo LoanRepository, opts ...Option) *LoanService {
	s := newSettings(opts)
	return &LoanService{
		repo:          repo,
		now:           s.now,
		logger:        s.logger,
		events:        s.events,
		eventsChannel: s.eventsChannel,
		metrics:       s.metrics,
	}
}

// Create lends one copy of a book to a member.
func (s *LoanService) Create(ctx context.Context, req types.CreateLoanRequest) (types.Loan, error) {
	if req.UserID <= 0 {
		return types.Loan{}, lending.Invalid("utilisateurId", "utilisateurId is required")
	}
	if req.BookID <= 0 {
		return types.Loan{}, lending.Invalid("livreId", "livreId is required")
	}

	now := s.now()
	loan, err := s.repo.CreateChecked(ctx, types.Loan{
		UserID:   req.UserID,
		BookID:   req.BookID,
		LoanedAt: now,
		DueAt:    lending.DueDate(now, lending.LoanDays(req.DurationDays)),
	})
	if err != nil {
		translated := loanError(err, req)
		if reason := rejectionReason(err); reason != "" {
			s.metrics.LoanRejected(reason)
			s.logger.Info("loan rejected",
				slog.Int("user_id", req.UserID),
				slog.Int("book_id", req.BookID),
				slog.String("reason", reason),
			)
		}
		return types.Loan{}, translated
	}

	s.metrics.LoanCreated()
	s.logger.Info("loan created",
		slog.Int("loan_id", loan.ID),
		slog.Int("user_id", loan.UserID),
		slog.Int("book_id", loan.BookID),
		slog.Time("due_at", loan.DueAt),
	)
	s.publish(ctx, types.LoanEventCreated, loan, now)
	return lending.Classified(loan, now), nil
}

// Return closes an open loan. A loan can be returned once.
func (s *LoanService) Return(ctx context.Context, id int) (types.Loan, error) {
	now := s.now()
	loan, err := s.repo.MarkReturned(ctx, id, now)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return types.Loan{}, &lending.NotFoundError{Entity: "loan", ID: id}
		case errors.Is(err, store.ErrAlreadyReturned):
			return types.Loan{}, lending.AlreadyReturned("this loan has already been returned")
		default:
			return types.Loan{}, fmt.Errorf("return loan: %w", err)
		}
	}

	s.metrics.LoanReturned()
	s.logger.Info("loan returned", slog.Int("loan_id", loan.ID), slog.Int("book_id", loan.BookID))
	s.publish(ctx, types.LoanEventReturned, loan, now)
	return lending.Classified(loan, now), nil
}

func (s *LoanService) GetByID(ctx context.Context, id int) (types.LoanDetails, error) {
	details, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.LoanDetails{}, &lending.NotFoundError{Entity: "loan", ID: id}
		}
		return types.LoanDetails{}, fmt.Errorf("get loan: %w", err)
	}
	return lending.Describe(details, s.now()), nil
}

// List returns the loans selected by filter, newest first. Overdue and
// active scopes are resolved against the current time on every call.
func (s *LoanService) List(ctx context.Context, filter types.LoanFilter) ([]types.LoanDetails, error) {
	now := s.now()
	q, err := loanQuery(filter, now)
	if err != nil {
		return nil, err
	}

	loans, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	for i := range loans {
		loans[i] = lending.Describe(loans[i], now)
	}
	return loans, nil
}

// ParseLoanScope accepts the scope names used by the API, including the
// French route names. An empty value selects every loan.
func ParseLoanScope(raw string) (types.LoanScope, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "all", "tous":
		return types.LoanScopeAll, nil
	case "open", "en-cours":
		return types.LoanScopeOpen, nil
	case "active":
		return types.LoanScopeActive, nil
	case "overdue", "en-retard":
		return types.LoanScopeOverdue, nil
	case "history", "historique", "returned":
		return types.LoanScopeHistory, nil
	default:
		return "", lending.Invalid("statut", "unknown loan status %q", raw)
	}
}

func loanQuery(filter types.LoanFilter, now time.Time) (types.LoanQuery, error) {
	q := types.LoanQuery{UserID: filter.UserID, BookID: filter.BookID}
	open, closed := true, false

	switch filter.Scope {
	case "", types.LoanScopeAll:
	case types.LoanScopeOpen:
		q.Open = &open
	case types.LoanScopeActive:
		q.Open = &open
		q.DueNotBefore = &now
	case types.LoanScopeOverdue:
		q.Open = &open
		q.DueBefore = &now
	case types.LoanScopeHistory:
		q.Open = &closed
	default:
		return types.LoanQuery{}, lending.Invalid("statut", "unknown loan status %q", filter.Scope)
	}
	return q, nil
}

func (s *LoanService) publish(ctx context.Context, typ types.LoanEventType, loan types.Loan, at time.Time) {
	if s.events == nil {
		return
	}
	event := types.LoanEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		LoanID:     loan.ID,
		UserID:     loan.UserID,
		BookID:     loan.BookID,
		DueAt:      loan.DueAt,
		OccurredAt: at,
	}
	if err := publishEvent(ctx, s.events, s.eventsChannel, event); err != nil {
		s.metrics.EventPublishFailed()
		s.logger.Warn("publish loan event",
			slog.String("type", string(typ)),
			slog.Int("loan_id", loan.ID),
			slog.Any("error", err),
		)
	}
}

func publishEvent(ctx context.Context, publisher EventPublisher, channel string, event types.LoanEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	attrs := map[string]string{
		"type":    string(event.Type),
		"eventId": event.ID,
	}
	if _, err := publisher.Publish(ctx, channel, data, attrs); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, store.ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, store.ErrBookNotFound):
		return "book_not_found"
	case errors.Is(err, store.ErrUserInactive):
		return "user_inactive"
	case errors.Is(err, store.ErrUserHasOpenLoan):
		return "user_has_open_loan"
	case errors.Is(err, store.ErrNoCopiesLeft):
		return "no_copies_left"
	default:
		return ""
	}
}

func loanError(err error, req types.CreateLoanRequest) error {
	switch {
	case errors.Is(err, store.ErrUserNotFound):
		return &lending.NotFoundError{Entity: "user", ID: req.UserID}
	case errors.Is(err, store.ErrBookNotFound):
		return &lending.NotFoundError{Entity: "book", ID: req.BookID}
	case errors.Is(err, store.ErrUserInactive):
		return lending.Conflict("this user account is inactive and cannot borrow books")
	case errors.Is(err, store.ErrUserHasOpenLoan):
		return lending.Conflict("user already has a loan in progress; it must be returned first")
	case errors.Is(err, store.ErrNoCopiesLeft):
		return lending.Unavailable("no copy of this book is available")
	default:
		return fmt.Errorf("create loan: %w", err)
	}
}
