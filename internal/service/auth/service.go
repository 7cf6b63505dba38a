package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/partaj/referral-api/internal/model"
	"github.com/partaj/referral-api/internal/repository"
	"github.com/partaj/referral-api/pkg/auth"
	apperrors "github.com/partaj/referral-api/pkg/errors"
	"github.com/partaj/referral-api/pkg/security"
)

// Service authenticates users and issues tokens.
type Service struct {
	users  repository.UserRepository
	jwt    auth.JWTService
	hasher security.PasswordHasher
}

func NewService(users repository.UserRepository, jwt auth.JWTService, hasher security.PasswordHasher) *Service {
	return &Service{
		users:  users,
		jwt:    jwt,
		hasher: hasher,
	}
}

// TokenPair is an access token and its refresh companion.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Login verifies credentials and issues a token pair.
func (s *Service) Login(ctx context.Context, emailAddr, password string) (*TokenPair, *model.User, error) {
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		return nil, nil, apperrors.Unauthorized(fmt.Errorf("unknown user"))
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, nil, apperrors.Unauthorized(fmt.Errorf("bad credentials"))
	}

	pair, err := s.issue(user)
	if err != nil {
		return nil, nil, err
	}
	return pair, user, nil
}

// Refresh exchanges a refresh token for a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, apperrors.Unauthorized(fmt.Errorf("unknown user"))
	}
	return s.issue(user)
}

// Validate resolves the user behind an access token.
func (s *Service) Validate(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.jwt.ValidateToken(token)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}
	user, err := s.users.Get(ctx, claims.UserID)
	if err != nil {
		return nil, apperrors.Unauthorized(fmt.Errorf("unknown user"))
	}
	return user, nil
}

// Register creates a user account with a hashed password.
func (s *Service) Register(ctx context.Context, firstName, lastName, emailAddr, password string) (*model.User, error) {
	if _, err := s.users.GetByEmail(ctx, emailAddr); err == nil {
		return nil, apperrors.Conflict("email is already registered")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperrors.BadRequest("invalid password", err)
	}

	user := &model.User{
		FirstName:    firstName,
		LastName:     lastName,
		Email:        emailAddr,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetUser loads a user by id.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NotFound("user", err)
	}
	return user, nil
}

func (s *Service) issue(user *model.User) (*TokenPair, error) {
	access, err := s.jwt.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refresh, err := s.jwt.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
