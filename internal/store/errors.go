package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

var (
	// ErrUserNotFound and ErrBookNotFound tell apart the two references a
	// loan carries. Both match ErrNotFound.
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
	ErrBookNotFound = fmt.Errorf("book %w", ErrNotFound)

	// ErrDuplicate is returned when a unique column (email, ISBN) is already taken.
	ErrDuplicate = errors.New("duplicate key")

	// ErrInUse is returned when deleting a record that loans still reference.
	ErrInUse = errors.New("record is referenced by loans")

	// ErrUserInactive is returned when lending to a deactivated member.
	ErrUserInactive = errors.New("user is inactive")

	// ErrUserHasOpenLoan is returned when the member already has an open loan.
	ErrUserHasOpenLoan = errors.New("user has an open loan")

	// ErrNoCopiesLeft is returned when every copy of the book is out.
	ErrNoCopiesLeft = errors.New("no copies left")

	// ErrAlreadyReturned is returned when closing a loan that is already closed.
	ErrAlreadyReturned = errors.New("loan already returned")

	// ErrCopiesBelowLoaned is returned when a book update would leave fewer
	// copies than are currently on loan.
	ErrCopiesBelowLoaned = errors.New("copies below loaned count")
)
