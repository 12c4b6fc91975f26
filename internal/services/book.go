package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bibliotheque/apiserver/internal/lending"
	"github.com/bibliotheque/apiserver/internal/store"
	"github.com/bibliotheque/apiserver/types"
)

// BookRepository defines persistence operations for books.
type BookRepository interface {
	List(ctx context.Context, search string) ([]types.Book, error)
	GetByID(ctx context.Context, id int) (types.Book, error)
	Create(ctx context.Context, book types.Book) (types.Book, error)
	Update(ctx context.Context, book types.Book) (types.Book, error)
	Delete(ctx context.Context, id int) error
}

// OpenLoanCounter reports how many copies are currently out.
type OpenLoanCounter interface {
	OpenCountsByBook(ctx context.Context) (map[int]int, error)
	OpenCountForBook(ctx context.Context, bookID int) (int, error)
}

// BookService encapsulates catalogue use-cases. Every book it returns is
// annotated with its loaned and available copies.
type BookService struct {
	repo   BookRepository
	loans  OpenLoanCounter
	now    func() time.Time
	logger *slog.Logger
}

func NewBookService(repo BookRepository, loans OpenLoanCounter, opts ...Option) *BookService {
	s := newSettings(opts)
	return &BookService{repo: repo, loans: loans, now: s.now, logger: s.logger}
}

func (s *BookService) List(ctx context.Context, filter types.BookFilter) ([]types.Book, error) {
	books, err := s.repo.List(ctx, filter.Search)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	counts, err := s.loans.OpenCountsByBook(ctx)
	if err != nil {
		return nil, fmt.Errorf("count open loans: %w", err)
	}

	annotated := lending.AnnotateAll(books, counts)
	if !filter.AvailableOnly {
		return annotated, nil
	}
	available := make([]types.Book, 0, len(annotated))
	for _, book := range annotated {
		if book.Available {
			available = append(available, book)
		}
	}
	return available, nil
}

func (s *BookService) GetByID(ctx context.Context, id int) (types.Book, error) {
	book, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.Book{}, bookError(err, id)
	}
	return s.annotate(ctx, book)
}

func (s *BookService) Create(ctx context.Context, req types.CreateBookRequest) (types.Book, error) {
	book := types.Book{
		Title:           req.Title,
		Author:          req.Author,
		ISBN:            req.ISBN,
		PublicationYear: req.PublicationYear,
		Genre:           req.Genre,
		Description:     req.Description,
		Copies:          req.Copies,
		AddedAt:         s.now(),
	}
	book, err := s.validate(book)
	if err != nil {
		return types.Book{}, err
	}

	created, err := s.repo.Create(ctx, book)
	if err != nil {
		return types.Book{}, bookError(err, 0)
	}
	s.logger.Info("book added", slog.Int("book_id", created.ID), slog.String("isbn", created.ISBN))
	return lending.Annotate(created, 0), nil
}

// Update applies a partial update. The copy count cannot drop below the
// number of copies currently on loan.
func (s *BookService) Update(ctx context.Context, id int, req types.UpdateBookRequest) (types.Book, error) {
	book, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.Book{}, bookError(err, id)
	}

	if req.Title != nil {
		book.Title = *req.Title
	}
	if req.Author != nil {
		book.Author = *req.Author
	}
	if req.ISBN != nil {
		book.ISBN = *req.ISBN
	}
	if req.PublicationYear != nil {
		book.PublicationYear = *req.PublicationYear
	}
	if req.Genre != nil {
		book.Genre = *req.Genre
	}
	if req.Description != nil {
		book.Description = *req.Description
	}
	if req.Copies != nil {
		book.Copies = *req.Copies
	}
	if book, err = s.validate(book); err != nil {
		return types.Book{}, err
	}

	updated, err := s.repo.Update(ctx, book)
	if err != nil {
		return types.Book{}, bookError(err, id)
	}
	return s.annotate(ctx, updated)
}

// Delete removes a book with no loans on record.
func (s *BookService) Delete(ctx context.Context, id int) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return bookError(err, id)
	}
	return nil
}

func (s *BookService) annotate(ctx context.Context, book types.Book) (types.Book, error) {
	loaned, err := s.loans.OpenCountForBook(ctx, book.ID)
	if err != nil {
		return types.Book{}, fmt.Errorf("count open loans: %w", err)
	}
	return lending.Annotate(book, loaned), nil
}

func (s *BookService) validate(book types.Book) (types.Book, error) {
	var err error
	if book.Title, err = required("titre", book.Title); err != nil {
		return book, err
	}
	if book.Author, err = required("auteur", book.Author); err != nil {
		return book, err
	}
	if book.Genre, err = required("genre", book.Genre); err != nil {
		return book, err
	}
	if book.ISBN, err = normalizeISBN(book.ISBN); err != nil {
		return book, err
	}
	if err := validatePublicationYear(book.PublicationYear, s.now()); err != nil {
		return book, err
	}
	if err := validateCopies(book.Copies); err != nil {
		return book, err
	}
	return book, nil
}

func bookError(err error, id int) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return &lending.NotFoundError{Entity: "book", ID: id}
	case errors.Is(err, store.ErrDuplicate):
		return lending.Invalid("isbn", "a book with this isbn already exists")
	case errors.Is(err, store.ErrInUse):
		return lending.Conflict("this book has loans on record and cannot be deleted")
	case errors.Is(err, store.ErrCopiesBelowLoaned):
		return lending.Conflict("the number of copies cannot be lower than the copies currently on loan")
	default:
		return fmt.Errorf("book store: %w", err)
	}
}
