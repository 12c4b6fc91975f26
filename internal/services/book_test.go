package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibliotheque/apiserver/internal/lending"
	"github.com/bibliotheque/apiserver/types"
)

func TestCreateBookValidation(t *testing.T) {
	valid := types.CreateBookRequest{
		Title:           "Germinal",
		Author:          "Émile Zola",
		ISBN:            "2-07-036024-X",
		PublicationYear: 1885,
		Genre:           "Roman",
		Copies:          2,
	}

	tests := []struct {
		name   string
		mutate func(*types.CreateBookRequest)
		field  string
	}{
		{name: "missing title", mutate: func(r *types.CreateBookRequest) { r.Title = "  " }, field: "titre"},
		{name: "missing author", mutate: func(r *types.CreateBookRequest) { r.Author = "" }, field: "auteur"},
		{name: "bad isbn", mutate: func(r *types.CreateBookRequest) { r.ISBN = "12345" }, field: "isbn"},
		{name: "future year", mutate: func(r *types.CreateBookRequest) { r.PublicationYear = 2100 }, field: "anneePublication"},
		{name: "no copies", mutate: func(r *types.CreateBookRequest) { r.Copies = 0 }, field: "nombreExemplaires"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, date(2024, 1, 1))
			req := valid
			tt.mutate(&req)

			_, err := f.books.Create(context.Background(), req)
			var validation *lending.ValidationError
			require.ErrorAs(t, err, &validation)
			assert.Equal(t, tt.field, validation.Field)
		})
	}

	t.Run("valid", func(t *testing.T) {
		f := newFixture(t, date(2024, 1, 1))
		book, err := f.books.Create(context.Background(), valid)
		require.NoError(t, err)
		assert.Equal(t, "207036024X", book.ISBN)
		assert.Equal(t, 2, book.AvailableCopies)
		assert.True(t, book.Available)
		assert.Equal(t, date(2024, 1, 1), book.AddedAt)
	})
}

func TestDuplicateISBN(t *testing.T) {
	f := newFixture(t, date(2024, 1, 1))
	f.book(t, "9782070612758", 1)

	_, err := f.books.Create(context.Background(), types.CreateBookRequest{
		Title:           "Autre",
		Author:          "Autre",
		ISBN:            "978-2070612758",
		PublicationYear: 2000,
		Genre:           "Essai",
		Copies:          1,
	})
	assert.ErrorIs(t, err, lending.ErrValidation)
}

func TestListBooksFilters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2024, 1, 1))
	user := f.user(t, "camille@example.org")
	taken := f.book(t, "9782070612758", 1)
	free, err := f.books.Create(ctx, types.CreateBookRequest{
		Title:           "Notre-Dame de Paris",
		Author:          "Victor Hugo",
		ISBN:            "9782253009689",
		PublicationYear: 1831,
		Genre:           "Roman historique",
		Copies:          2,
	})
	require.NoError(t, err)
	f.lend(t, user.ID, taken.ID)

	all, err := f.books.List(ctx, types.BookFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	available, err := f.books.List(ctx, types.BookFilter{AvailableOnly: true})
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, free.ID, available[0].ID)
	assert.Equal(t, 2, available[0].AvailableCopies)

	hugo, err := f.books.List(ctx, types.BookFilter{Search: "hugo"})
	require.NoError(t, err)
	require.Len(t, hugo, 1)
	assert.Equal(t, free.ID, hugo[0].ID)

	none, err := f.books.List(ctx, types.BookFilter{Search: "prince", AvailableOnly: true})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUpdateBookCopies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2024, 1, 1))
	a := f.user(t, "a@example.org")
	b := f.user(t, "b@example.org")
	book := f.book(t, "9782070612758", 3)
	f.lend(t, a.ID, book.ID)
	f.lend(t, b.ID, book.ID)

	_, err := f.books.Update(ctx, book.ID, types.UpdateBookRequest{Copies: intPtr(1)})
	assert.ErrorIs(t, err, lending.ErrConflict)

	updated, err := f.books.Update(ctx, book.ID, types.UpdateBookRequest{Copies: intPtr(2)})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Copies)
	assert.Equal(t, 2, updated.LoanedCopies)
	assert.Equal(t, 0, updated.AvailableCopies)
	assert.False(t, updated.Available)

	_, err = f.books.Update(ctx, 999, types.UpdateBookRequest{Copies: intPtr(2)})
	assert.ErrorIs(t, err, lending.ErrNotFound)
}

func TestDeleteBookWithLoans(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, date(2024, 1, 1))
	user := f.user(t, "camille@example.org")
	lent := f.book(t, "9782070612758", 1)
	unused := f.book(t, "9782253009689", 1)
	loan := f.lend(t, user.ID, lent.ID)
	_, err := f.loans.Return(ctx, loan.ID)
	require.NoError(t, err)

	err = f.books.Delete(ctx, lent.ID)
	assert.ErrorIs(t, err, lending.ErrConflict, "historical loans keep the book")

	require.NoError(t, f.books.Delete(ctx, unused.ID))
	_, err = f.books.GetByID(ctx, unused.ID)
	assert.ErrorIs(t, err, lending.ErrNotFound)
}
