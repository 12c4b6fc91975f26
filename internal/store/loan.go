package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bibliotheque/apiserver/internal/lending"
	"github.com/bibliotheque/apiserver/types"
)

const (
	loanColumns = `l.id, l.user_id, l.book_id, l.loaned_at, l.due_at, l.returned_at, l.status`

	loanDetailsSelect = `
		SELECT ` + loanColumns + `,
		       u.last_name, u.first_name, u.email,
		       b.title, b.author, b.isbn, b.copies
		FROM loans l
		JOIN users u ON u.id = l.user_id
		JOIN books b ON b.id = l.book_id`

	countOpenForBook = `SELECT COUNT(1) FROM loans WHERE book_id = $1 AND returned_at IS NULL`
	countOpenForUser = `SELECT COUNT(1) FROM loans WHERE user_id = $1 AND returned_at IS NULL`
)

// LoanRepository handles persistence for loans. Loans are never deleted.
type LoanRepository struct {
	db *sql.DB
}

func NewLoanRepository(db *sql.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

// CreateChecked inserts loan after verifying, in the same transaction, that
// the member exists and is active, that the member has no open loan and
// that the book has a free copy. The member and book rows stay locked until
// commit, so two concurrent requests cannot both take the last copy.
func (r *LoanRepository) CreateChecked(ctx context.Context, loan types.Loan) (types.Loan, error) {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var active bool
		err := tx.QueryRowContext(ctx, `SELECT active FROM users WHERE id = $1 FOR UPDATE`, loan.UserID).Scan(&active)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUserNotFound
			}
			return err
		}
		if !active {
			return ErrUserInactive
		}

		var copies int
		err = tx.QueryRowContext(ctx, `SELECT copies FROM books WHERE id = $1 FOR UPDATE`, loan.BookID).Scan(&copies)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrBookNotFound
			}
			return err
		}

		var userOpen int
		if err := tx.QueryRowContext(ctx, countOpenForUser, loan.UserID).Scan(&userOpen); err != nil {
			return err
		}
		if userOpen > 0 {
			return ErrUserHasOpenLoan
		}

		var loaned int
		if err := tx.QueryRowContext(ctx, countOpenForBook, loan.BookID).Scan(&loaned); err != nil {
			return err
		}
		if !lending.Borrowable(copies, loaned) {
			return ErrNoCopiesLeft
		}

		loan.ReturnedAt = nil
		loan.Status = types.LoanActive
		const insert = `
			INSERT INTO loans (user_id, book_id, loaned_at, due_at, returned_at, status)
			VALUES ($1, $2, $3, $4, NULL, $5)
			RETURNING id`
		if err := tx.QueryRowContext(
			ctx,
			insert,
			loan.UserID,
			loan.BookID,
			loan.LoanedAt,
			loan.DueAt,
			loan.Status,
		).Scan(&loan.ID); err != nil {
			return translate(err)
		}
		return nil
	})
	if err != nil {
		return types.Loan{}, err
	}
	return loan, nil
}

// MarkReturned closes an open loan at the given instant. Closing an already
// closed loan fails with ErrAlreadyReturned and changes nothing.
func (r *LoanRepository) MarkReturned(ctx context.Context, id int, at time.Time) (types.Loan, error) {
	const query = `
		UPDATE loans l
		SET returned_at = $1,
			status = $2
		WHERE l.id = $3 AND l.returned_at IS NULL
		RETURNING ` + loanColumns
	loan, err := scanLoan(r.db.QueryRowContext(ctx, query, at, types.LoanReturned, id))
	if err == nil {
		return loan, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return types.Loan{}, err
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM loans WHERE id = $1)`, id).Scan(&exists); err != nil {
		return types.Loan{}, err
	}
	if exists {
		return types.Loan{}, ErrAlreadyReturned
	}
	return types.Loan{}, ErrNotFound
}

func (r *LoanRepository) GetByID(ctx context.Context, id int) (types.LoanDetails, error) {
	query := loanDetailsSelect + ` WHERE l.id = $1`
	details, err := scanLoanDetails(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.LoanDetails{}, ErrNotFound
		}
		return types.LoanDetails{}, err
	}
	return details, nil
}

// List returns loans joined with member and book summaries, newest first.
func (r *LoanRepository) List(ctx context.Context, q types.LoanQuery) ([]types.LoanDetails, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.UserID != 0 {
		conds = append(conds, "l.user_id = "+arg(q.UserID))
	}
	if q.BookID != 0 {
		conds = append(conds, "l.book_id = "+arg(q.BookID))
	}
	if q.Open != nil {
		if *q.Open {
			conds = append(conds, "l.returned_at IS NULL")
		} else {
			conds = append(conds, "l.returned_at IS NOT NULL")
		}
	}
	if q.DueBefore != nil {
		conds = append(conds, "l.due_at < "+arg(*q.DueBefore))
	}
	if q.DueNotBefore != nil {
		conds = append(conds, "l.due_at >= "+arg(*q.DueNotBefore))
	}

	query := loanDetailsSelect
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY l.loaned_at DESC, l.id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	loans := make([]types.LoanDetails, 0)
	for rows.Next() {
		details, err := scanLoanDetails(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, details)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return loans, nil
}

// OpenCountsByBook returns the number of open loans per book ID. Books
// without open loans are absent from the map.
func (r *LoanRepository) OpenCountsByBook(ctx context.Context) (map[int]int, error) {
	const query = `
		SELECT book_id, COUNT(1)
		FROM loans
		WHERE returned_at IS NULL
		GROUP BY book_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var bookID, count int
		if err := rows.Scan(&bookID, &count); err != nil {
			return nil, err
		}
		counts[bookID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// OpenCountForBook returns the number of open loans on one book.
func (r *LoanRepository) OpenCountForBook(ctx context.Context, bookID int) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, countOpenForBook, bookID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanLoan(row rowScanner) (types.Loan, error) {
	var loan types.Loan
	var returnedAt sql.NullTime
	err := row.Scan(
		&loan.ID,
		&loan.UserID,
		&loan.BookID,
		&loan.LoanedAt,
		&loan.DueAt,
		&returnedAt,
		&loan.Status,
	)
	if returnedAt.Valid {
		loan.ReturnedAt = &returnedAt.Time
	}
	return loan, err
}

func scanLoanDetails(row rowScanner) (types.LoanDetails, error) {
	var details types.LoanDetails
	var returnedAt sql.NullTime
	err := row.Scan(
		&details.ID,
		&details.UserID,
		&details.BookID,
		&details.LoanedAt,
		&details.DueAt,
		&returnedAt,
		&details.Status,
		&details.User.LastName,
		&details.User.FirstName,
		&details.User.Email,
		&details.Book.Title,
		&details.Book.Author,
		&details.Book.ISBN,
		&details.Book.Copies,
	)
	if returnedAt.Valid {
		details.ReturnedAt = &returnedAt.Time
	}
	return details, err
}
