// Package auth verifies operator credentials, issues JWTs and provisions
// operator accounts.
package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"mailroom/internal/apperr"
	"mailroom/internal/model"
	"mailroom/internal/repository"
	"mailroom/pkg/rbac"
	"mailroom/pkg/util"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrUnknownRole        = errors.New("unknown role")
)

type Service struct {
	userRepo  *repository.UserRepository
	jwtSecret string
}

func NewService(userRepo *repository.UserRepository, jwtSecret string) *Service {
	return &Service{
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
	}
}

// Login checks user credentials and returns a JWT. Disabled accounts are
// rejected with the same error as a wrong password.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if !u.IsActive {
		return "", ErrInvalidCredentials
	}
	if !checkPassword(password, u.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	token, err := util.GenerateJWT(u.ID, u.Role, s.jwtSecret)
	if err != nil {
		return "", err
	}
	return token, nil
}

// CreateUser provisions an operator account with the given role. The
// account starts active.
func (s *Service) CreateUser(ctx context.Context, email, password, role string) (*model.User, error) {
	if len(password) < 8 {
		return nil, ErrWeakPassword
	}
	if role != rbac.RoleUser && role != rbac.RoleAdmin {
		return nil, ErrUnknownRole
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		if apperr.IsDuplicateKey(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return u, nil
}
