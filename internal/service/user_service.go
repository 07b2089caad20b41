package service

import (
	"context"
	"errors"
	"strings"

	"disasterwatch/api/internal/apperr"
	"disasterwatch/api/internal/models"
	"disasterwatch/api/internal/repository"
	"disasterwatch/api/internal/security"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// UserService manages accounts. No route uses it yet.
type UserService struct {
	users *repository.UserRepository
	hash  func(string) ([]byte, error)
}

func NewUserService(users *repository.UserRepository) *UserService {
	return &UserService{users: users, hash: security.HashPassword}
}

func (s *UserService) Create(ctx context.Context, username, password string) (models.User, error) {
	const op = "UserService.Create"

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return models.User{}, apperr.E(apperr.CodeInvalidArgument, op, "username and password required", nil)
	}

	hash, err := s.hash(password)
	if err != nil {
		return models.User{}, apperr.E(apperr.CodeInternal, op, "hash password", err)
	}

	user, err := s.users.Create(ctx, models.NewUser{Username: username, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return models.User{}, apperr.E(apperr.CodeInvalidArgument, op, "username already registered", err)
		}
		return models.User{}, apperr.E(apperr.CodeInternal, op, "save user", err)
	}
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	return user, userLookupErr("UserService.Get", err)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (models.User, error) {
	user, err := s.users.FindByUsername(ctx, username)
	return user, userLookupErr("UserService.GetByUsername", err)
}

// Verify checks a password against the stored hash. Unknown users and
// wrong passwords yield the same error.
func (s *UserService) Verify(ctx context.Context, username, password string) (models.User, error) {
	const op = "UserService.Verify"

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, apperr.E(apperr.CodeInvalidArgument, op, "invalid credentials", ErrInvalidCredentials)
		}
		return models.User{}, apperr.E(apperr.CodeInternal, op, "load user", err)
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return models.User{}, apperr.E(apperr.CodeInternal, op, "verify password", err)
	}
	if !ok {
		return models.User{}, apperr.E(apperr.CodeInvalidArgument, op, "invalid credentials", ErrInvalidCredentials)
	}
	return user, nil
}

func userLookupErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrUserNotFound):
		return apperr.E(apperr.CodeNotFound, op, "user not found", err)
	default:
		return apperr.E(apperr.CodeInternal, op, "load user", err)
	}
}
