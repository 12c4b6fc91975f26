package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bibliotheque/apiserver/internal/services"
	"github.com/bibliotheque/apiserver/internal/store/memstore"
	"github.com/bibliotheque/apiserver/types"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *clock { return &clock{now: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type published struct {
	Channel string
	Event   types.LoanEvent
	Attrs   map[string]string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	var event types.LoanEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return "", err
	}
	p.events = append(p.events, published{Channel: channel, Event: event, Attrs: attrs})
	return event.ID, nil
}

func (p *recordingPublisher) Events() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.events...)
}

var errBackendDown = errors.New("backend down")

type fixture struct {
	store  *memstore.Store
	clock  *clock
	events *recordingPublisher
	users  *services.UserService
	books  *services.BookService
	loans  *services.LoanService
}

func newFixture(t *testing.T, start time.Time) *fixture {
	t.Helper()
	st := memstore.New()
	c := newClock(start)
	pub := &recordingPublisher{}
	opts := []services.Option{
		services.WithClock(c.Now),
		services.WithEvents(pub, "biblio.loans"),
	}
	return &fixture{
		store:  st,
		clock:  c,
		events: pub,
		users:  services.NewUserService(st.Users(), opts...),
		books:  services.NewBookService(st.Books(), st.Loans(), opts...),
		loans:  services.NewLoanService(st.Loans(), opts...),
	}
}

func (f *fixture) user(t *testing.T, email string) types.User {
	t.Helper()
	user, err := f.users.Create(context.Background(), types.CreateUserRequest{
		LastName:  "Durand",
		FirstName: "Camille",
		Email:     email,
	})
	require.NoError(t, err)
	return user
}

func (f *fixture) book(t *testing.T, isbn string, copies int) types.Book {
	t.Helper()
	book, err := f.books.Create(context.Background(), types.CreateBookRequest{
		Title:           "Le Petit Prince",
		Author:          "Antoine de Saint-Exupéry",
		ISBN:            isbn,
		PublicationYear: 1943,
		Genre:           "Conte",
		Copies:          copies,
	})
	require.NoError(t, err)
	return book
}

func (f *fixture) lend(t *testing.T, userID, bookID int) types.Loan {
	t.Helper()
	loan, err := f.loans.Create(context.Background(), types.CreateLoanRequest{UserID: userID, BookID: bookID})
	require.NoError(t, err)
	return loan
}

func intPtr(v int) *int { return &v }

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 10, 0, 0, 0, time.UTC)
}
