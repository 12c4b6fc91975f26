package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Loan records one member borrowing one copy of one book for a bounded period.
// Loans are never deleted; returned loans form the lending history.
type Loan struct {
	// ID is the unique identifier of the loan.
	ID int `json:"id" db:"id"`

	// UserID references the borrowing member.
	UserID int `json:"utilisateurId" db:"user_id"`

	// BookID references the borrowed book.
	BookID int `json:"livreId" db:"book_id"`

	// LoanedAt is the timestamp when the copy left the library.
	LoanedAt time.Time `json:"dateEmprunt" db:"loaned_at"`

	// DueAt is the timestamp by which the copy must be returned.
	DueAt time.Time `json:"dateRetourPrevu" db:"due_at"`

	// ReturnedAt is the actual return timestamp, nil while the loan is open.
	ReturnedAt *time.Time `json:"dateRetourEffectif,omitempty" db:"returned_at"`

	// Status is the classification of the loan. Only ACTIVE and RETURNED
	// are persisted; OVERDUE is derived from DueAt on every read.
	Status LoanStatus `json:"statut" db:"status"`
}

// IsOpen reports whether the loan still ties up a copy.
func (l Loan) IsOpen() bool {
	return l.ReturnedAt == nil
}

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

// Supported loan statuses.
const (
	// LoanActive indicates the copy is out and not yet due.
	LoanActive LoanStatus = "ACTIVE"

	// LoanOverdue indicates the copy is out and its due date has passed.
	LoanOverdue LoanStatus = "OVERDUE"

	// LoanReturned indicates the copy has been given back. Terminal.
	LoanReturned LoanStatus = "RETURNED"
)

// LoanUserSummary is the subset of member fields shown alongside a loan.
type LoanUserSummary struct {
	LastName  string `json:"nom"`
	FirstName string `json:"prenom"`
	Email     string `json:"email"`
}

// LoanBookSummary is the subset of book fields shown alongside a loan.
type LoanBookSummary struct {
	Title  string `json:"titre"`
	Author string `json:"auteur"`
	ISBN   string `json:"isbn"`
	Copies int    `json:"nombreExemplaires"`
}

// LoanDetails is a loan joined with member and book summaries, plus the
// day counts displayed in loan listings.
type LoanDetails struct {
	Loan

	// User summarizes the borrowing member.
	User LoanUserSummary `json:"utilisateur"`

	// Book summarizes the borrowed book.
	Book LoanBookSummary `json:"livre"`

	// DaysRemaining is the number of days until the due date, rounded up.
	// It is negative when the loan is overdue and nil once returned.
	DaysRemaining *int `json:"joursRestants,omitempty"`

	// DaysOverdue is the number of whole days past the due date.
	// It is set only for overdue loans.
	DaysOverdue *int `json:"joursRetard,omitempty"`

	// DurationDays is the number of days the copy was out, rounded up.
	// It is set only for returned loans.
	DurationDays *int `json:"dureeJours,omitempty"`
}

// CreateLoanRequest is the payload accepted when lending a copy.
type CreateLoanRequest struct {
	UserID int `json:"utilisateurId"`
	BookID int `json:"livreId"`

	// DurationDays is the requested loan length in days. Nil selects the
	// default length; other values are clamped to the allowed range.
	DurationDays *int `json:"dureeEmprunt,omitempty"`
}

// UnmarshalJSON accepts utilisateurId and livreId as JSON numbers or as
// numeric strings, which is how the browser client posts select values.
// An empty string or null leaves the id at zero.
func (r *CreateLoanRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		UserID       flexibleID `json:"utilisateurId"`
		BookID       flexibleID `json:"livreId"`
		DurationDays *int       `json:"dureeEmprunt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = CreateLoanRequest{
		UserID:       int(raw.UserID),
		BookID:       int(raw.BookID),
		DurationDays: raw.DurationDays,
	}
	return nil
}

type flexibleID int

func (id *flexibleID) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	if unquoted, err := strconv.Unquote(text); err == nil {
		text = strings.TrimSpace(unquoted)
	}
	if text == "" || text == "null" {
		*id = 0
		return nil
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return fmt.Errorf("id must be an integer, got %s", data)
	}
	*id = flexibleID(n)
	return nil
}

// LoanScope selects which loans a listing returns.
type LoanScope string

// Supported loan scopes.
const (
	// LoanScopeAll returns every loan.
	LoanScopeAll LoanScope = "all"

	// LoanScopeOpen returns loans not yet returned, active or overdue.
	LoanScopeOpen LoanScope = "open"

	// LoanScopeActive returns open loans that are not yet due.
	LoanScopeActive LoanScope = "active"

	// LoanScopeOverdue returns open loans past their due date.
	LoanScopeOverdue LoanScope = "overdue"

	// LoanScopeHistory returns returned loans.
	LoanScopeHistory LoanScope = "history"
)

// LoanFilter narrows a loan listing.
type LoanFilter struct {
	Scope LoanScope

	// UserID restricts the listing to one member when non-zero.
	UserID int

	// BookID restricts the listing to one book when non-zero.
	BookID int
}

// LoanQuery is the persistence-level form of LoanFilter. Open nil matches
// open and returned loans. DueBefore keeps loans due strictly before the
// instant; DueNotBefore keeps loans due at or after it.
type LoanQuery struct {
	UserID       int
	BookID       int
	Open         *bool
	DueBefore    *time.Time
	DueNotBefore *time.Time
}
