package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibliotheque/apiserver/internal/lending"
	"github.com/bibliotheque/apiserver/internal/metrics"
	"github.com/bibliotheque/apiserver/internal/services"
	"github.com/bibliotheque/apiserver/types"
)

func TestCreateLoanDefaultsToFourteenDays(t *testing.T) {
	f := newFixture(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	user := f.user(t, "camille@example.org")
	book := f.book(t, "978-2-07-061275-8", 1)

	loan := f.lend(t, user.ID, book.ID)

	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), loan.DueAt)
	assert.Equal(t, types.LoanActive, loan.Status)
	assert.Nil(t, loan.ReturnedAt)

	f.clock.Set(time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC))
	details, err := f.loans.GetByID(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.Equal(t, types.LoanOverdue, details.Status)
	require.NotNil(t, details.DaysOverdue)
	assert.Equal(t, 5, *details.DaysOverdue)
}

func TestCreateLoanClampsDuration(t *testing.T) {
	tests := []struct {
		name      string
		requested *int
		wantDays  int
	}{
		{name: "default", requested: nil, wantDays: 14},
		{name: "within range", requested: intPtr(7), wantDays: 7},
		{name: "below minimum", requested: intPtr(0), wantDays: 1},
		{name: "above maximum", requested: intPtr(90), wantDays: 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := date(2024, 3, 1)
			f := newFixture(t, start)
			user := f.user(t, "camille@example.org")
			book := f.book(t, "9782070612758", 1)

			loan, err := f.loans.Create(context.Background(), types.CreateLoanRequest{
				UserID:       user.ID,
				BookID:       book.ID,
				DurationDays: tt.requested,
			})
			require.NoError(t, err)
			assert.Equal(t, start.AddDate(0, 0, tt.wantDays), loan.DueAt)
		})
	}
}

func TestCreateLoanRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2024, 1, 1))
	user := f.user(t, "camille@example.org")
	other := f.user(t, "louis@example.org")
	book := f.book(t, "9782070612758", 1)
	second := f.book(t, "9782253004226", 1)

	f.lend(t, user.ID, book.ID)

	_, err := f.loans.Create(ctx, types.CreateLoanRequest{UserID: user.ID, BookID: second.ID})
	assert.ErrorIs(t, err, lending.ErrConflict)
	assert.Equal(t, "user already has a loan in progress; it must be returned first", err.Error())

	_, err = f.loans.Create(ctx, types.CreateLoanRequest{UserID: other.ID, BookID: book.ID})
	assert.ErrorIs(t, err, lending.ErrUnavailable)

	_, err = f.loans.Create(ctx, types.CreateLoanRequest{UserID: 999, BookID: book.ID})
	var notFound *lending.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "user", notFound.Entity)

	_, err = f.loans.Create(ctx, types.CreateLoanRequest{UserID: other.ID, BookID: 999})
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "book", notFound.Entity)

	_, err = f.loans.Create(ctx, types.CreateLoanRequest{BookID: book.ID})
	assert.ErrorIs(t, err, lending.ErrValidation)

	_, err = f.users.Update(ctx, other.ID, types.UpdateUserRequest{Active: boolPtr(false)})
	require.NoError(t, err)
	_, err = f.loans.Create(ctx, types.CreateLoanRequest{UserID: other.ID, BookID: second.ID})
	assert.ErrorIs(t, err, lending.ErrConflict)

	loans, err := f.loans.List(ctx, types.LoanFilter{Scope: types.LoanScopeAll})
	require.NoError(t, err)
	assert.Len(t, loans, 1, "rejected requests must not write")
}

func TestUnavailableBookWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2024, 1, 1))
	first := f.user(t, "a@example.org")
	second := f.user(t, "b@example.org")
	book := f.book(t, "9782070612758", 1)
	f.lend(t, first.ID, book.ID)

	before, err := f.books.GetByID(ctx, book.ID)
	require.NoError(t, err)
	require.Equal(t, 0, before.AvailableCopies)

	_, err = f.loans.Create(ctx, types.CreateLoanRequest{UserID: second.ID, BookID: book.ID})
	require.ErrorIs(t, err, lending.ErrUnavailable)

	after, err := f.books.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	mine, err := f.loans.List(ctx, types.LoanFilter{UserID: second.ID})
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestReturnLoan(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2024, 1, 1))
	user := f.user(t, "camille@example.org")
	book := f.book(t, "9782070612758", 2)
	loan := f.lend(t, user.ID, book.ID)

	before, err := f.books.GetByID(ctx, book.ID)
	require.NoError(t, err)

	f.clock.Set(date(2024, 1, 4))
	returned, err := f.loans.Return(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, types.LoanReturned, returned.Status)
	require.NotNil(t, returned.ReturnedAt)
	assert.Equal(t, date(2024, 1, 4), *returned.ReturnedAt)

	after, err := f.books.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, before.AvailableCopies+1, after.AvailableCopies)

	_, err = f.loans.Return(ctx, loan.ID)
	assert.ErrorIs(t, err, lending.ErrAlreadyReturned)

	again, err := f.books.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, after.AvailableCopies, again.AvailableCopies)

	_, err = f.loans.Return(ctx, 999)
	assert.ErrorIs(t, err, lending.ErrNotFound)

	details, err := f.loans.GetByID(ctx, loan.ID)
	require.NoError(t, err)
	require.NotNil(t, details.DurationDays)
	assert.Equal(t, 3, *details.DurationDays)
	assert.Nil(t, details.DaysRemaining)
}

func TestTwoCopyScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2024, 1, 1))
	a := f.user(t, "a@example.org")
	b := f.user(t, "b@example.org")
	c := f.user(t, "c@example.org")
	book := f.book(t, "9782070612758", 2)

	loanA := f.lend(t, a.ID, book.ID)
	f.lend(t, b.ID, book.ID)

	_, err := f.loans.Create(ctx, types.CreateLoanRequest{UserID: c.ID, BookID: book.ID})
	require.ErrorIs(t, err, lending.ErrUnavailable)

	_, err = f.loans.Return(ctx, loanA.ID)
	require.NoError(t, err)

	f.lend(t, c.ID, book.ID)

	annotated, err := f.books.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, annotated.LoanedCopies)
	assert.Equal(t, 0, annotated.AvailableCopies)
	assert.False(t, annotated.Available)
}

func TestListScopesFollowTheClock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2024, 1, 1))
	early := f.user(t, "early@example.org")
	late := f.user(t, "late@example.org")
	done := f.user(t, "done@example.org")
	book := f.book(t, "9782070612758", 3)

	_, err := f.loans.Create(ctx, types.CreateLoanRequest{UserID: early.ID, BookID: book.ID, DurationDays: intPtr(3)})
	require.NoError(t, err)
	_, err = f.loans.Create(ctx, types.CreateLoanRequest{UserID: late.ID, BookID: book.ID, DurationDays: intPtr(20)})
	require.NoError(t, err)
	returned := f.lend(t, done.ID, book.ID)
	_, err = f.loans.Return(ctx, returned.ID)
	require.NoError(t, err)

	count := func(scope types.LoanScope) int {
		loans, err := f.loans.List(ctx, types.LoanFilter{Scope: scope})
		require.NoError(t, err)
		return len(loans)
	}

	assert.Equal(t, 3, count(types.LoanScopeAll))
	assert.Equal(t, 2, count(types.LoanScopeOpen))
	assert.Equal(t, 2, count(types.LoanScopeActive))
	assert.Equal(t, 0, count(types.LoanScopeOverdue))
	assert.Equal(t, 1, count(types.LoanScopeHistory))

	f.clock.Set(date(2024, 1, 10))

	assert.Equal(t, 2, count(types.LoanScopeOpen))
	assert.Equal(t, 1, count(types.LoanScopeActive))
	assert.Equal(t, 1, count(types.LoanScopeOverdue))
	assert.Equal(t, 1, count(types.LoanScopeHistory))

	overdue, err := f.loans.List(ctx, types.LoanFilter{Scope: types.LoanScopeOverdue})
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, early.ID, overdue[0].UserID)
	assert.Equal(t, types.LoanOverdue, overdue[0].Status)
	assert.Equal(t, "early@example.org", overdue[0].User.Email)
	require.NotNil(t, overdue[0].DaysOverdue)
	assert.Equal(t, 6, *overdue[0].DaysOverdue)

	mine, err := f.loans.List(ctx, types.LoanFilter{UserID: done.ID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, types.LoanReturned, mine[0].Status)
}

func TestParseLoanScope(t *testing.T) {
	tests := map[string]types.LoanScope{
		"":           types.LoanScopeAll,
		"all":        types.LoanScopeAll,
		"open":       types.LoanScopeOpen,
		"en-cours":   types.LoanScopeOpen,
		"ACTIVE":     types.LoanScopeActive,
		"overdue":    types.LoanScopeOverdue,
		"en-retard":  types.LoanScopeOverdue,
		"historique": types.LoanScopeHistory,
		"RETURNED":   types.LoanScopeHistory,
	}
	for raw, want := range tests {
		got, err := services.ParseLoanScope(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := services.ParseLoanScope("lost")
	assert.ErrorIs(t, err, lending.ErrValidation)
}

func TestLoanEventsArePublished(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2024, 1, 1))
	user := f.user(t, "camille@example.org")
	book := f.book(t, "9782070612758", 1)

	loan := f.lend(t, user.ID, book.ID)
	_, err := f.loans.Return(ctx, loan.ID)
	require.NoError(t, err)

	events := f.events.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "biblio.loans", events[0].Channel)
	assert.Equal(t, types.LoanEventCreated, events[0].Event.Type)
	assert.Equal(t, loan.ID, events[0].Event.LoanID)
	assert.Equal(t, string(types.LoanEventCreated), events[0].Attrs["type"])
	assert.NotEmpty(t, events[0].Event.ID)
	assert.Equal(t, types.LoanEventReturned, events[1].Event.Type)
	assert.NotEqual(t, events[0].Event.ID, events[1].Event.ID)
}

func TestLoanSurvivesPublishFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2024, 1, 1))
	user := f.user(t, "camille@example.org")
	book := f.book(t, "9782070612758", 1)

	reg := prometheus.NewRegistry()
	m := metrics.NewLending(reg)
	pub := &recordingPublisher{err: errors.New("broker unreachable")}
	loans := services.NewLoanService(f.store.Loans(),
		services.WithClock(f.clock.Now),
		services.WithEvents(pub, "biblio.loans"),
		services.WithMetrics(m),
	)

	loan, err := loans.Create(ctx, types.CreateLoanRequest{UserID: user.ID, BookID: book.ID})
	require.NoError(t, err)
	assert.NotZero(t, loan.ID)

	_, err = loans.Create(ctx, types.CreateLoanRequest{UserID: user.ID, BookID: book.ID})
	require.Error(t, err)

	count, err := testutil.GatherAndCount(reg, "biblio_loans_created_total", "biblio_loan_rejections_total", "biblio_event_publish_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func boolPtr(v bool) *bool { return &v }
