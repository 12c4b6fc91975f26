package lending

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bibliotheque/apiserver/types"
)

func TestCountOpen(t *testing.T) {
	returned := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	counts := CountOpen([]types.Loan{
		{BookID: 1},
		{BookID: 1, DueAt: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
		{BookID: 1, ReturnedAt: &returned},
		{BookID: 2},
	})
	assert.Equal(t, map[int]int{1: 2, 2: 1}, counts)
}

func TestAnnotateNeverNegative(t *testing.T) {
	annotated := Annotate(types.Book{ID: 7, Copies: 1}, 2)
	assert.Equal(t, 2, annotated.LoanedCopies)
	assert.Equal(t, 0, annotated.AvailableCopies)
	assert.False(t, annotated.Available)
}

func TestAnnotateAll(t *testing.T) {
	returned := time.Now()
	books := []types.Book{{ID: 1, Copies: 2}, {ID: 2, Copies: 1}, {ID: 3, Copies: 4}}
	counts := CountOpen([]types.Loan{
		{BookID: 1}, {BookID: 1}, {BookID: 2}, {BookID: 3, ReturnedAt: &returned},
	})

	got := AnnotateAll(books, counts)

	assert.Equal(t, []int{2, 1, 0}, []int{got[0].LoanedCopies, got[1].LoanedCopies, got[2].LoanedCopies})
	assert.Equal(t, []bool{false, false, true}, []bool{got[0].Available, got[1].Available, got[2].Available})
	assert.Equal(t, 4, got[2].AvailableCopies)
}

func TestBorrowable(t *testing.T) {
	assert.True(t, Borrowable(2, 1))
	assert.False(t, Borrowable(2, 2))
	assert.False(t, Borrowable(1, 5))
}
