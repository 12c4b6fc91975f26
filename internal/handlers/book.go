package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bibliotheque/apiserver/internal/services"
	"github.com/bibliotheque/apiserver/types"
)

// BookHandler provides HTTP handlers for the catalogue.
type BookHandler struct {
	bookService *services.BookService
	logger      *slog.Logger
}

func NewBookHandler(bookService *services.BookService, logger *slog.Logger) *BookHandler {
	return &BookHandler{bookService: bookService, logger: logger}
}

// BookRouter registers catalogue routes on the given router.
func BookRouter(r chi.Router, bookService *services.BookService, logger *slog.Logger) {
	handler := NewBookHandler(bookService, logger)

	r.Get("/", handler.ListBooks)
	r.Post("/", handler.CreateBook)
	r.Route("/{bookID}", func(r chi.Router) {
		r.Get("/", handler.GetBook)
		r.Put("/", handler.UpdateBook)
		r.Delete("/", handler.DeleteBook)
	})
}

// ListBooks supports ?search= over title, author, genre and ISBN and
// ?disponible=true to keep books with a free copy.
func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	availableOnly, err := parseBool(r, "disponible")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	books, err := h.bookService.List(r.Context(), types.BookFilter{
		Search:        strings.TrimSpace(r.URL.Query().Get("search")),
		AvailableOnly: availableOnly,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err, "list books")
		return
	}
	writeJSON(w, http.StatusOK, books)
}

func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "bookID", "book")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	book, err := h.bookService.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "fetch book")
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (h *BookHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var req types.CreateBookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	book, err := h.bookService.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "create book")
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (h *BookHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "bookID", "book")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req types.UpdateBookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	book, err := h.bookService.Update(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "update book")
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (h *BookHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "bookID", "book")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.bookService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, h.logger, err, "delete book")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
