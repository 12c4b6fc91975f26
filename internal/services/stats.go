package services

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/bibliotheque/apiserver/internal/lending"
	"github.com/bibliotheque/apiserver/internal/metrics"
	"github.com/bibliotheque/apiserver/types"
)

// ErrStatsUnavailable is returned by Dashboard when no statistic could be computed.
var ErrStatsUnavailable = errors.New("statistics unavailable")

// Statistic names reported in DashboardStats.Unavailable.
const (
	StatTotalUsers     = "totalUsers"
	StatTotalBooks     = "totalBooks"
	StatAvailableBooks = "availableBooks"
	StatCurrentLoans   = "currentLoans"
	StatOverdueLoans   = "overdueLoans"
)

type UserLister interface {
	List(ctx context.Context) ([]types.User, error)
}

type BookLister interface {
	List(ctx context.Context, search string) ([]types.Book, error)
}

type LoanLister interface {
	List(ctx context.Context, q types.LoanQuery) ([]types.LoanDetails, error)
}

type OpenCounter interface {
	OpenCountsByBook(ctx context.Context) (map[int]int, error)
}

// StatsService computes the dashboard counters.
type StatsService struct {
	users   UserLister
	books   BookLister
	counts  OpenCounter
	loans   LoanLister
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Lending
}

func NewStatsService(users UserLister, books BookLister, counts OpenCounter, loans LoanLister, opts ...Option) *StatsService {
	s := newSettings(opts)
	return &StatsService{
		users:   users,
		books:   books,
		counts:  counts,
		loans:   loans,
		now:     s.now,
		logger:  s.logger,
		metrics: s.metrics,
	}
}

type statFetch struct {
	name  string
	fetch func(ctx context.Context) (int, error)
	dest  *int
}

// Dashboard runs the five counts concurrently. A count whose source fails
// stays at zero and is listed in Unavailable; the others are still
// reported. ErrStatsUnavailable is returned only when every count failed.
func (s *StatsService) Dashboard(ctx context.Context) (types.DashboardStats, error) {
	now := s.now()
	var stats types.DashboardStats

	fetches := []statFetch{
		{name: StatTotalUsers, dest: &stats.TotalUsers, fetch: s.countUsers},
		{name: StatTotalBooks, dest: &stats.TotalBooks, fetch: s.countBooks},
		{name: StatAvailableBooks, dest: &stats.AvailableBooks, fetch: s.countAvailableBooks},
		{name: StatCurrentLoans, dest: &stats.CurrentLoans, fetch: func(ctx context.Context) (int, error) {
			return s.countOpenLoans(ctx, types.LoanQuery{DueNotBefore: &now})
		}},
		{name: StatOverdueLoans, dest: &stats.OverdueLoans, fetch: func(ctx context.Context) (int, error) {
			return s.countOpenLoans(ctx, types.LoanQuery{DueBefore: &now})
		}},
	}

	errs := make([]error, len(fetches))
	var wg sync.WaitGroup
	for i, f := range fetches {
		wg.Add(1)
		go func(i int, f statFetch) {
			defer wg.Done()
			n, err := f.fetch(ctx)
			if err != nil {
				errs[i] = err
				return
			}
			*f.dest = n
		}(i, f)
	}
	wg.Wait()

	for i, err := range errs {
		if err == nil {
			continue
		}
		stats.Unavailable = append(stats.Unavailable, fetches[i].name)
		s.logger.Error("dashboard statistic unavailable",
			slog.String("stat", fetches[i].name),
			slog.Any("error", err),
		)
	}
	if len(stats.Unavailable) == len(fetches) {
		return stats, ErrStatsUnavailable
	}
	if !slices.Contains(stats.Unavailable, StatOverdueLoans) {
		s.metrics.SetOverdueLoans(stats.OverdueLoans)
	}
	return stats, nil
}

func (s *StatsService) countUsers(ctx context.Context) (int, error) {
	users, err := s.users.List(ctx)
	return len(users), err
}

func (s *StatsService) countBooks(ctx context.Context) (int, error) {
	books, err := s.books.List(ctx, "")
	return len(books), err
}

func (s *StatsService) countAvailableBooks(ctx context.Context) (int, error) {
	books, err := s.books.List(ctx, "")
	if err != nil {
		return 0, err
	}
	counts, err := s.counts.OpenCountsByBook(ctx)
	if err != nil {
		return 0, err
	}
	available := 0
	for _, book := range lending.AnnotateAll(books, counts) {
		if book.Available {
			available++
		}
	}
	return available, nil
}

func (s *StatsService) countOpenLoans(ctx context.Context, q types.LoanQuery) (int, error) {
	open := true
	q.Open = &open
	loans, err := s.loans.List(ctx, q)
	return len(loans), err
}
