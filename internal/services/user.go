package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bibliotheque/apiserver/internal/lending"
	"github.com/bibliotheque/apiserver/internal/store"
	"github.com/bibliotheque/apiserver/types"
)

// UserRepository defines persistence operations for members.
type UserRepository interface {
	List(ctx context.Context) ([]types.User, error)
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int) error
}

// UserService encapsulates member use-cases.
type UserService struct {
	repo   UserRepository
	now    func() time.Time
	logger *slog.Logger
}

func NewUserService(repo UserRepository, opts ...Option) *UserService {
	s := newSettings(opts)
	return &UserService{repo: repo, now: s.now, logger: s.logger}
}

func (s *UserService) List(ctx context.Context) ([]types.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, userError(err, id)
	}
	return user, nil
}

// Create registers a new, active member.
func (s *UserService) Create(ctx context.Context, req types.CreateUserRequest) (types.User, error) {
	lastName, err := required("nom", req.LastName)
	if err != nil {
		return types.User{}, err
	}
	firstName, err := required("prenom", req.FirstName)
	if err != nil {
		return types.User{}, err
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return types.User{}, err
	}
	if err := s.ensureEmailFree(ctx, email, 0); err != nil {
		return types.User{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		LastName:     lastName,
		FirstName:    firstName,
		Email:        email,
		RegisteredAt: s.now(),
		Active:       true,
	})
	if err != nil {
		return types.User{}, userError(err, 0)
	}
	s.logger.Info("user registered", slog.Int("user_id", user.ID))
	return user, nil
}

// Update applies a partial update. Deactivating a member keeps their loans.
func (s *UserService) Update(ctx context.Context, id int, req types.UpdateUserRequest) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, userError(err, id)
	}

	if req.LastName != nil {
		if user.LastName, err = required("nom", *req.LastName); err != nil {
			return types.User{}, err
		}
	}
	if req.FirstName != nil {
		if user.FirstName, err = required("prenom", *req.FirstName); err != nil {
			return types.User{}, err
		}
	}
	if req.Email != nil {
		email, err := normalizeEmail(*req.Email)
		if err != nil {
			return types.User{}, err
		}
		if err := s.ensureEmailFree(ctx, email, id); err != nil {
			return types.User{}, err
		}
		user.Email = email
	}
	if req.Active != nil {
		user.Active = *req.Active
	}

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return types.User{}, userError(err, id)
	}
	return updated, nil
}

// Delete removes a member with no loans on record.
func (s *UserService) Delete(ctx context.Context, id int) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return userError(err, id)
	}
	return nil
}

func (s *UserService) ensureEmailFree(ctx context.Context, email string, selfID int) error {
	existing, err := s.repo.GetByEmail(ctx, email)
	switch {
	case err == nil && existing.ID != selfID:
		return emailTaken(email)
	case err == nil, errors.Is(err, store.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("check email: %w", err)
	}
}

func emailTaken(email string) error {
	return lending.Invalid("email", "email %q is already registered", email)
}

func userError(err error, id int) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return &lending.NotFoundError{Entity: "user", ID: id}
	case errors.Is(err, store.ErrDuplicate):
		return lending.Invalid("email", "email is already registered")
	case errors.Is(err, store.ErrInUse):
		return lending.Conflict("this user has loans on record and cannot be deleted; deactivate the account instead")
	default:
		return fmt.Errorf("user store: %w", err)
	}
}
