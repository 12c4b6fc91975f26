package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bibliotheque/apiserver/internal/services"
	"github.com/bibliotheque/apiserver/types"
)

// UserHandler provides HTTP handlers for members.
type UserHandler struct {
	userService *services.UserService
	loanService *services.LoanService
	logger      *slog.Logger
}

func NewUserHandler(userService *services.UserService, loanService *services.LoanService, logger *slog.Logger) *UserHandler {
	return &UserHandler{userService: userService, loanService: loanService, logger: logger}
}

// UserRouter registers member routes on the given router.
func UserRouter(r chi.Router, userService *services.UserService, loanService *services.LoanService, logger *slog.Logger) {
	handler := NewUserHandler(userService, loanService, logger)

	r.Get("/", handler.ListUsers)
	r.Post("/", handler.CreateUser)
	r.Route("/{userID}", func(r chi.Router) {
		r.Get("/", handler.GetUser)
		r.Put("/", handler.UpdateUser)
		r.Delete("/", handler.DeleteUser)
		r.Get("/emprunts", handler.ListUserLoans)
	})
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "list users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "userID", "user")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "fetch user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req types.CreateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "create user")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "userID", "user")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req types.UpdateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.Update(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "update user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "userID", "user")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.userService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, h.logger, err, "delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListUserLoans returns every loan of one member, whatever its status.
func (h *UserHandler) ListUserLoans(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "userID", "user")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.userService.GetByID(r.Context(), id); err != nil {
		writeServiceError(w, r, h.logger, err, "fetch user")
		return
	}
	loans, err := h.loanService.List(r.Context(), types.LoanFilter{Scope: types.LoanScopeAll, UserID: id})
	if err != nil {
		writeServiceError(w, r, h.logger, err, "list loans")
		return
	}
	writeJSON(w, http.StatusOK, loans)
}
