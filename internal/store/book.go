package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/bibliotheque/apiserver/types"
)

const bookColumns = `id, title, author, isbn, publication_year, genre, description, copies, added_at`

// BookRepository handles persistence for books. Availability is never
// stored; see LoanRepository.OpenCountsByBook.
type BookRepository struct {
	db *sql.DB
}

func NewBookRepository(db *sql.DB) *BookRepository {
	return &BookRepository{db: db}
}

// List returns books ordered by title. A non-empty search matches title,
// author, genre or ISBN case-insensitively.
func (r *BookRepository) List(ctx context.Context, search string) ([]types.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books`
	var args []any
	if search = strings.TrimSpace(search); search != "" {
		query += `
		WHERE title ILIKE $1
		   OR author ILIKE $1
		   OR genre ILIKE $1
		   OR isbn ILIKE $1`
		args = append(args, containsPattern(search))
	}
	query += ` ORDER BY title, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := make([]types.Book, 0)
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return books, nil
}

func (r *BookRepository) GetByID(ctx context.Context, id int) (types.Book, error) {
	const query = `SELECT ` + bookColumns + ` FROM books WHERE id = $1`
	book, err := scanBook(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Book{}, ErrNotFound
		}
		return types.Book{}, err
	}
	return book, nil
}

func (r *BookRepository) Create(ctx context.Context, book types.Book) (types.Book, error) {
	if book.AddedAt.IsZero() {
		book.AddedAt = time.Now()
	}

	const query = `
		INSERT INTO books (title, author, isbn, publication_year, genre, description, copies, added_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		book.Title,
		book.Author,
		book.ISBN,
		book.PublicationYear,
		book.Genre,
		book.Description,
		book.Copies,
		book.AddedAt,
	).Scan(&book.ID); err != nil {
		return types.Book{}, translate(err)
	}
	return book, nil
}

// Update writes the mutable book fields. The book row is locked while the
// open loans are counted, so a concurrent loan cannot slip in between the
// check and the write.
func (r *BookRepository) Update(ctx context.Context, book types.Book) (types.Book, error) {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var addedAt time.Time
		err := tx.QueryRowContext(ctx, `SELECT added_at FROM books WHERE id = $1 FOR UPDATE`, book.ID).Scan(&addedAt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		var loaned int
		if err := tx.QueryRowContext(ctx, countOpenForBook, book.ID).Scan(&loaned); err != nil {
			return err
		}
		if book.Copies < loaned {
			return ErrCopiesBelowLoaned
		}

		const query = `
			UPDATE books
			SET title = $1,
				author = $2,
				isbn = $3,
				publication_year = $4,
				genre = $5,
				description = $6,
				copies = $7
			WHERE id = $8`
		if _, err := tx.ExecContext(
			ctx,
			query,
			book.Title,
			book.Author,
			book.ISBN,
			book.PublicationYear,
			book.Genre,
			book.Description,
			book.Copies,
			book.ID,
		); err != nil {
			return translate(err)
		}
		book.AddedAt = addedAt
		return nil
	})
	if err != nil {
		return types.Book{}, err
	}
	return book, nil
}

func (r *BookRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM books WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return translate(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanBook(row rowScanner) (types.Book, error) {
	var book types.Book
	err := row.Scan(
		&book.ID,
		&book.Title,
		&book.Author,
		&book.ISBN,
		&book.PublicationYear,
		&book.Genre,
		&book.Description,
		&book.Copies,
		&book.AddedAt,
	)
	return book, err
}
