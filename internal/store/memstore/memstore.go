// Package memstore is an in-memory Entity Store with the same contracts as
// the postgres repositories. A single mutex serializes writers, which makes
// the loan check-and-insert atomic.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bibliotheque/apiserver/internal/lending"
	"github.com/bibliotheque/apiserver/internal/store"
	"github.com/bibliotheque/apiserver/types"
)

// Store holds members, books and loans in memory.
type Store struct {
	mu sync.RWMutex

	users map[int]types.User
	books map[int]types.Book
	loans map[int]types.Loan

	nextUserID int
	nextBookID int
	nextLoanID int
}

func New() *Store {
	return &Store{
		users: make(map[int]types.User),
		books: make(map[int]types.Book),
		loans: make(map[int]types.Loan),
	}
}

// Users returns a view of the store satisfying the user repository contract.
func (s *Store) Users() *Users { return &Users{s: s} }

// Books returns a view of the store satisfying the book repository contract.
func (s *Store) Books() *Books { return &Books{s: s} }

// Loans returns a view of the store satisfying the loan repository contract.
func (s *Store) Loans() *Loans { return &Loans{s: s} }

type Users struct{ s *Store }

func (r *Users) List(ctx context.Context) ([]types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	users := make([]types.User, 0, len(r.s.users))
	for _, user := range r.s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *Users) GetByID(ctx context.Context, id int) (types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	user, ok := r.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *Users) GetByEmail(ctx context.Context, email string) (types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if user, ok := r.s.userByEmail(email); ok {
		return user, nil
	}
	return types.User{}, store.ErrNotFound
}

func (r *Users) Create(ctx context.Context, user types.User) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, taken := r.s.userByEmail(user.Email); taken {
		return types.User{}, store.ErrDuplicate
	}
	if user.RegisteredAt.IsZero() {
		user.RegisteredAt = time.Now()
	}
	r.s.nextUserID++
	user.ID = r.s.nextUserID
	r.s.users[user.ID] = user
	return user, nil
}

func (r *Users) Update(ctx context.Context, user types.User) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.users[user.ID]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	if other, taken := r.s.userByEmail(user.Email); taken && other.ID != user.ID {
		return types.User{}, store.ErrDuplicate
	}
	user.RegisteredAt = current.RegisteredAt
	r.s.users[user.ID] = user
	return user, nil
}

func (r *Users) Delete(ctx context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[id]; !ok {
		return store.ErrNotFound
	}
	for _, loan := range r.s.loans {
		if loan.UserID == id {
			return store.ErrInUse
		}
	}
	delete(r.s.users, id)
	return nil
}

type Books struct{ s *Store }

func (r *Books) List(ctx context.Context, search string) ([]types.Book, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(search))
	books := make([]types.Book, 0, len(r.s.books))
	for _, book := range r.s.books {
		if needle == "" || matchesBook(book, needle) {
			books = append(books, book)
		}
	}
	sort.Slice(books, func(i, j int) bool {
		if books[i].Title != books[j].Title {
			return books[i].Title < books[j].Title
		}
		return books[i].ID < books[j].ID
	})
	return books, nil
}

func (r *Books) GetByID(ctx context.Context, id int) (types.Book, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	book, ok := r.s.books[id]
	if !ok {
		return types.Book{}, store.ErrNotFound
	}
	return book, nil
}

func (r *Books) Create(ctx context.Context, book types.Book) (types.Book, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.isbnTaken(book.ISBN, 0) {
		return types.Book{}, store.ErrDuplicate
	}
	if book.AddedAt.IsZero() {
		book.AddedAt = time.Now()
	}
	r.s.nextBookID++
	book.ID = r.s.nextBookID
	r.s.books[book.ID] = book
	return book, nil
}

func (r *Books) Update(ctx context.Context, book types.Book) (types.Book, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.books[book.ID]
	if !ok {
		return types.Book{}, store.ErrNotFound
	}
	if r.s.isbnTaken(book.ISBN, book.ID) {
		return types.Book{}, store.ErrDuplicate
	}
	if book.Copies < r.s.openForBook(book.ID) {
		return types.Book{}, store.ErrCopiesBelowLoaned
	}
	book.AddedAt = current.AddedAt
	r.s.books[book.ID] = book
	return book, nil
}

func (r *Books) Delete(ctx context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.books[id]; !ok {
		return store.ErrNotFound
	}
	for _, loan := range r.s.loans {
		if loan.BookID == id {
			return store.ErrInUse
		}
	}
	delete(r.s.books, id)
	return nil
}

type Loans struct{ s *Store }

func (r *Loans) CreateChecked(ctx context.Context, loan types.Loan) (types.Loan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[loan.UserID]
	if !ok {
		return types.Loan{}, store.ErrUserNotFound
	}
	if !user.Active {
		return types.Loan{}, store.ErrUserInactive
	}
	book, ok := r.s.books[loan.BookID]
	if !ok {
		return types.Loan{}, store.ErrBookNotFound
	}
	for _, existing := range r.s.loans {
		if existing.UserID == loan.UserID && existing.IsOpen() {
			return types.Loan{}, store.ErrUserHasOpenLoan
		}
	}
	if !lending.Borrowable(book.Copies, r.s.openForBook(book.ID)) {
		return types.Loan{}, store.ErrNoCopiesLeft
	}

	r.s.nextLoanID++
	loan.ID = r.s.nextLoanID
	loan.ReturnedAt = nil
	loan.Status = types.LoanActive
	r.s.loans[loan.ID] = loan
	return loan, nil
}

func (r *Loans) MarkReturned(ctx context.Context, id int, at time.Time) (types.Loan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	loan, ok := r.s.loans[id]
	if !ok {
		return types.Loan{}, store.ErrNotFound
	}
	if !loan.IsOpen() {
		return types.Loan{}, store.ErrAlreadyReturned
	}
	returnedAt := at
	loan.ReturnedAt = &returnedAt
	loan.Status = types.LoanReturned
	r.s.loans[id] = loan
	return loan, nil
}

func (r *Loans) GetByID(ctx context.Context, id int) (types.LoanDetails, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	loan, ok := r.s.loans[id]
	if !ok {
		return types.LoanDetails{}, store.ErrNotFound
	}
	return r.s.details(loan), nil
}

func (r *Loans) List(ctx context.Context, q types.LoanQuery) ([]types.LoanDetails, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	loans := make([]types.LoanDetails, 0)
	for _, loan := range r.s.loans {
		if matchesLoan(loan, q) {
			loans = append(loans, r.s.details(loan))
		}
	}
	sort.Slice(loans, func(i, j int) bool {
		if !loans[i].LoanedAt.Equal(loans[j].LoanedAt) {
			return loans[i].LoanedAt.After(loans[j].LoanedAt)
		}
		return loans[i].ID > loans[j].ID
	})
	return loans, nil
}

func (r *Loans) OpenCountsByBook(ctx context.Context) (map[int]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return lending.CountOpen(r.s.allLoans()), nil
}

func (r *Loans) OpenCountForBook(ctx context.Context, bookID int) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.s.openForBook(bookID), nil
}

func (s *Store) userByEmail(email string) (types.User, bool) {
	email = strings.TrimSpace(email)
	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			return user, true
		}
	}
	return types.User{}, false
}

func (s *Store) isbnTaken(isbn string, exceptID int) bool {
	for _, book := range s.books {
		if book.ID != exceptID && book.ISBN == isbn {
			return true
		}
	}
	return false
}

func (s *Store) openForBook(bookID int) int {
	return lending.CountOpen(s.allLoans())[bookID]
}

func (s *Store) allLoans() []types.Loan {
	loans := make([]types.Loan, 0, len(s.loans))
	for _, loan := range s.loans {
		loans = append(loans, loan)
	}
	return loans
}

func (s *Store) details(loan types.Loan) types.LoanDetails {
	if loan.ReturnedAt != nil {
		returnedAt := *loan.ReturnedAt
		loan.ReturnedAt = &returnedAt
	}
	user := s.users[loan.UserID]
	book := s.books[loan.BookID]
	return types.LoanDetails{
		Loan: loan,
		User: types.LoanUserSummary{
			LastName:  user.LastName,
			FirstName: user.FirstName,
			Email:     user.Email,
		},
		Book: types.LoanBookSummary{
			Title:  book.Title,
			Author: book.Author,
			ISBN:   book.ISBN,
			Copies: book.Copies,
		},
	}
}

func matchesBook(book types.Book, needle string) bool {
	for _, field := range []string{book.Title, book.Author, book.Genre, book.ISBN} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func matchesLoan(loan types.Loan, q types.LoanQuery) bool {
	if q.UserID != 0 && loan.UserID != q.UserID {
		return false
	}
	if q.BookID != 0 && loan.BookID != q.BookID {
		return false
	}
	if q.Open != nil && loan.IsOpen() != *q.Open {
		return false
	}
	if q.DueBefore != nil && !loan.DueAt.Before(*q.DueBefore) {
		return false
	}
	if q.DueNotBefore != nil && loan.DueAt.Before(*q.DueNotBefore) {
		return false
	}
	return true
}
