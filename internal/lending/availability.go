package lending

import "github.com/bibliotheque/apiserver/types"

// CountOpen returns, per book ID, how many of loans are still open
// (ACTIVE or OVERDUE).
func CountOpen(loans []types.Loan) map[int]int {
	counts := make(map[int]int)
	for _, loan := range loans {
		if loan.IsOpen() {
			counts[loan.BookID]++
		}
	}
	return counts
}

// Annotate fills the derived availability fields of book from the number
// of open loans on it.
func Annotate(book types.Book, loaned int) types.Book {
	if loaned < 0 {
		loaned = 0
	}
	book.LoanedCopies = loaned
	book.AvailableCopies = free(book.Copies, loaned)
	book.Available = book.AvailableCopies > 0
	return book
}

// AnnotateAll annotates each book using counts keyed by book ID, as
// returned by CountOpen.
func AnnotateAll(books []types.Book, counts map[int]int) []types.Book {
	annotated := make([]types.Book, 0, len(books))
	for _, book := range books {
		annotated = append(annotated, Annotate(book, counts[book.ID]))
	}
	return annotated
}

// Borrowable reports whether a copy of a book with the given number of
// copies and open loans can be lent.
func Borrowable(copies, loaned int) bool {
	return free(copies, loaned) > 0
}

func free(copies, loaned int) int {
	if available := copies - loaned; available > 0 {
		return available
	}
	return 0
}
