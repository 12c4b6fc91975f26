package types

import "time"

// Book represents a title held by the library.
// A title owns a number of copies; each active or overdue loan ties up one copy.
type Book struct {
	// ID is the unique identifier of the book.
	ID int `json:"id" db:"id"`

	// Title is the book's title.
	Title string `json:"titre" db:"title"`

	// Author is the book's author.
	Author string `json:"auteur" db:"author"`

	// ISBN is the normalized ISBN-10 or ISBN-13, unique across books.
	ISBN string `json:"isbn" db:"isbn"`

	// PublicationYear is the year the edition was published.
	PublicationYear int `json:"anneePublication" db:"publication_year"`

	// Genre is a free-form classification (e.g., "Roman", "Science").
	Genre string `json:"genre" db:"genre"`

	// Description is an optional summary.
	Description string `json:"description,omitempty" db:"description"`

	// Copies is the total number of copies owned. It is the ceiling on
	// simultaneous open loans of this title and is always at least 1.
	Copies int `json:"nombreExemplaires" db:"copies"`

	// AddedAt is the timestamp when the book was added to the catalogue.
	AddedAt time.Time `json:"dateAjout" db:"added_at"`

	// LoanedCopies is the number of copies currently tied to an open loan.
	// It is derived at read time and never persisted.
	LoanedCopies int `json:"exemplairesEmpruntes" db:"-"`

	// AvailableCopies is Copies minus LoanedCopies, never negative.
	// It is derived at read time and never persisted.
	AvailableCopies int `json:"exemplairesDisponibles" db:"-"`

	// Available reports whether at least one copy can be borrowed.
	Available bool `json:"disponible" db:"-"`
}

// CreateBookRequest is the payload accepted when adding a book.
type CreateBookRequest struct {
	Title           string `json:"titre"`
	Author          string `json:"auteur"`
	ISBN            string `json:"isbn"`
	PublicationYear int    `json:"anneePublication"`
	Genre           string `json:"genre"`
	Description     string `json:"description,omitempty"`
	Copies          int    `json:"nombreExemplaires"`
}

// UpdateBookRequest carries a partial update. Nil fields are left unchanged.
type UpdateBookRequest struct {
	Title           *string `json:"titre,omitempty"`
	Author          *string `json:"auteur,omitempty"`
	ISBN            *string `json:"isbn,omitempty"`
	PublicationYear *int    `json:"anneePublication,omitempty"`
	Genre           *string `json:"genre,omitempty"`
	Description     *string `json:"description,omitempty"`
	Copies          *int    `json:"nombreExemplaires,omitempty"`
}

// BookFilter narrows a book listing.
type BookFilter struct {
	// Search matches title, author, genre or ISBN, case-insensitively.
	Search string

	// AvailableOnly keeps books with at least one free copy.
	AvailableOnly bool
}
