package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bibliotheque/apiserver/internal/services"
	"github.com/bibliotheque/apiserver/types"
)

// LoanHandler provides HTTP handlers for loans.
type LoanHandler struct {
	loanService *services.LoanService
	logger      *slog.Logger
}

func NewLoanHandler(loanService *services.LoanService, logger *slog.Logger) *LoanHandler {
	return &LoanHandler{loanService: loanService, logger: logger}
}

// LoanRouter registers loan routes on the given router.
func LoanRouter(r chi.Router, loanService *services.LoanService, logger *slog.Logger) {
	handler := NewLoanHandler(loanService, logger)

	r.Get("/", handler.ListLoans)
	r.Post("/", handler.CreateLoan)
	r.Get("/en-cours", handler.listScope(types.LoanScopeOpen))
	r.Get("/en-retard", handler.listScope(types.LoanScopeOverdue))
	r.Get("/historique", handler.listScope(types.LoanScopeHistory))
	r.Route("/{loanID}", func(r chi.Router) {
		r.Get("/", handler.GetLoan)
		r.Patch("/retour", handler.ReturnLoan)
	})
}

// ListLoans supports ?statut=, ?utilisateurId= and ?livreId=.
func (h *LoanHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	scope, err := services.ParseLoanScope(r.URL.Query().Get("statut"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.list(w, r, scope)
}

func (h *LoanHandler) listScope(scope types.LoanScope) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.list(w, r, scope)
	}
}

func (h *LoanHandler) list(w http.ResponseWriter, r *http.Request, scope types.LoanScope) {
	userID, err := parseOptionalID(r, "utilisateurId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bookID, err := parseOptionalID(r, "livreId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	loans, err := h.loanService.List(r.Context(), types.LoanFilter{Scope: scope, UserID: userID, BookID: bookID})
	if err != nil {
		writeServiceError(w, r, h.logger, err, "list loans")
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "loanID", "loan")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	loan, err := h.loanService.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "fetch loan")
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req types.CreateLoanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	loan, err := h.loanService.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "create loan")
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

func (h *LoanHandler) ReturnLoan(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "loanID", "loan")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	loan, err := h.loanService.Return(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "return loan")
		return
	}
	writeJSON(w, http.StatusOK, loan)
}
