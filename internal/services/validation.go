package services

import (
	"net/mail"
	"strings"
	"time"

	"github.com/bibliotheque/apiserver/internal/lending"
)

var isbnStripper = strings.NewReplacer("-", "", " ", "")

func required(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", lending.Invalid(field, "%s is required", field)
	}
	return value, nil
}

func normalizeEmail(raw string) (string, error) {
	email, err := required("email", raw)
	if err != nil {
		return "", err
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", lending.Invalid("email", "email %q is not a valid address", email)
	}
	return strings.ToLower(email), nil
}

// normalizeISBN strips separators and checks the ISBN-10 / ISBN-13 shape.
func normalizeISBN(raw string) (string, error) {
	isbn := strings.ToUpper(isbnStripper.Replace(strings.TrimSpace(raw)))
	if isbn == "" {
		return "", lending.Invalid("isbn", "isbn is required")
	}
	switch len(isbn) {
	case 10:
		if allDigits(isbn[:9]) && (allDigits(isbn[9:]) || isbn[9] == 'X') {
			return isbn, nil
		}
	case 13:
		if allDigits(isbn) {
			return isbn, nil
		}
	}
	return "", lending.Invalid("isbn", "isbn %q must have 10 or 13 digits", raw)
}

func validatePublicationYear(year int, now time.Time) error {
	if year < 1 || year > now.Year()+1 {
		return lending.Invalid("anneePublication", "publication year %d is out of range", year)
	}
	return nil
}

func validateCopies(copies int) error {
	if copies < 1 {
		return lending.Invalid("nombreExemplaires", "a book needs at least one copy")
	}
	return nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
