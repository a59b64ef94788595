package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/policy"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// UserService implements admin-only user management with the same audit
// discipline as ticket mutations.
type UserService struct {
	store      repository.Store
	bcryptCost int
}

// NewUserService constructs the service.
func NewUserService(store repository.Store, bcryptCost int) *UserService {
	return &UserService{store: store, bcryptCost: bcryptCost}
}

// UserCreateInput describes admin user creation.
type UserCreateInput struct {
	Name     string
	Email    string
	Phone    *string
	Password string
	Role     domain.Role
}

// UserPatch describes a partial user update.
type UserPatch struct {
	Name     *string
	Email    *string
	Phone    *string
	Password *string
	Role     *domain.Role
}

// List returns all accounts.
func (s *UserService) List(ctx context.Context, principal domain.Principal, limit, offset int) ([]domain.User, error) {
	if err := s.guard(principal); err != nil {
		return nil, err
	}
	users, err := s.store.Repos().Users.List(ctx, repository.UserFilter{Limit: limit, Offset: offset})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// Get fetches one account.
func (s *UserService) Get(ctx context.Context, principal domain.Principal, userID string) (*domain.User, error) {
	if err := s.guard(principal); err != nil {
		return nil, err
	}
	user, err := s.store.Repos().Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// Create adds an account with an explicit role.
func (s *UserService) Create(ctx context.Context, principal domain.Principal, input UserCreateInput) (*domain.User, error) {
	if err := s.guard(principal); err != nil {
		return nil, err
	}
	if input.Name == "" || input.Email == "" || input.Password == "" {
		return nil, apperrors.NewValidationError("name, email and password are required", nil)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	user := &domain.User{
		Name:         input.Name,
		Email:        input.Email,
		Phone:        input.Phone,
		PasswordHash: hash,
		Role:         input.Role,
	}

	err = s.store.InTx(ctx, func(r repository.Repositories) error {
		if err := r.Users.Create(ctx, user); err != nil {
			return err
		}
		return r.Audits.Create(ctx, &domain.AuditRecord{
			Action:  domain.AuditActionUserCreate,
			ActorID: principal.ID,
			Details: fmt.Sprintf("User %s created with role %s", user.ID, user.Role),
		})
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// Update applies a partial patch to an account.
func (s *UserService) Update(ctx context.Context, principal domain.Principal, userID string, patch UserPatch) (*domain.User, error) {
	if err := s.guard(principal); err != nil {
		return nil, err
	}

	var user *domain.User
	err := s.store.InTx(ctx, func(r repository.Repositories) error {
		var err error
		user, err = r.Users.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("user", map[string]any{"user_id": userID})
			}
			return err
		}
		if patch.Name != nil {
			user.Name = *patch.Name
		}
		if patch.Email != nil {
			user.Email = *patch.Email
		}
		if patch.Phone != nil {
			user.Phone = patch.Phone
		}
		if patch.Role != nil {
			user.Role = *patch.Role
		}
		if patch.Password != nil {
			hash, err := auth.HashPassword(*patch.Password, s.bcryptCost)
			if err != nil {
				return err
			}
			user.PasswordHash = hash
		}
		if err := r.Users.Update(ctx, user); err != nil {
			return err
		}
		return r.Audits.Create(ctx, &domain.AuditRecord{
			Action:  domain.AuditActionUserUpdate,
			ActorID: principal.ID,
			Details: fmt.Sprintf("User %s updated", user.ID),
		})
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// Delete removes an account.
func (s *UserService) Delete(ctx context.Context, principal domain.Principal, userID string) error {
	if err := s.guard(principal); err != nil {
		return err
	}
	err := s.store.InTx(ctx, func(r repository.Repositories) error {
		user, err := r.Users.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("user", map[string]any{"user_id": userID})
			}
			return err
		}
		if err := r.Users.Delete(ctx, user.ID); err != nil {
			return err
		}
		return r.Audits.Create(ctx, &domain.AuditRecord{
			Action:  domain.AuditActionUserDelete,
			ActorID: principal.ID,
			Details: fmt.Sprintf("User %s (%s) deleted", user.ID, user.Email),
		})
	})
	if err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

func (s *UserService) guard(principal domain.Principal) error {
	if !policy.CanPerform(principal.Role, domain.ActionUserCRUD, nil, principal.ID) {
		return apperrors.NewForbidden("only admins may manage users")
	}
	return nil
}
