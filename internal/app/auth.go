/**
 * @description
 * User registration and token issuance. Passwords are hashed with bcrypt;
 * access tokens are HS256 JWTs carrying the username as subject plus the
 * user id, expiring after the configured number of minutes.
 *
 * @dependencies
 * - golang.org/x/crypto/bcrypt: Password hashing.
 * - github.com/golang-jwt/jwt/v5: Token signing and verification.
 */

package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mannykwaning/banking-app/internal/domain"
	"github.com/mannykwaning/banking-app/internal/store"
)

const minPasswordLength = 8

// Register creates a new user with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, &domain.ErrValidation{Field: "username", Message: "must not be empty"}
	}
	if len(req.Password) < minPasswordLength {
		return nil, &domain.ErrValidation{Field: "password", Message: "must be at least 8 characters"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, &domain.ErrPersistence{Op: "password hashing", Err: err}
	}

	user, err := s.repo.CreateUser(ctx, &domain.User{
		Username:     username,
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: string(hash),
		IsActive:     true,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateUsername) {
			return nil, &domain.ErrConflict{Message: "username already exists"}
		}
		return nil, &domain.ErrPersistence{Op: "user creation", Err: err}
	}
	s.logger.Info("user registered", zap.Int64("user_id", user.ID))
	return user, nil
}

// Login verifies credentials and returns a signed access token. Invalid
// username and invalid password produce the same error so the endpoint does
// not leak which usernames exist.
func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.Token, error) {
	user, err := s.repo.FindUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, &domain.ErrUnauthorized{Message: "invalid username or password"}
		}
		return nil, &domain.ErrPersistence{Op: "user lookup", Err: err}
	}
	if !user.IsActive {
		return nil, &domain.ErrUnauthorized{Message: "account is disabled"}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid username or password"}
	}

	token, err := s.signToken(user)
	if err != nil {
		return nil, &domain.ErrPersistence{Op: "token signing", Err: err}
	}
	return &domain.Token{AccessToken: token, TokenType: "bearer"}, nil
}

// GetUserByUsername fetches a user profile.
func (s *Service) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.repo.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, &domain.ErrNotFound{Resource: "user", ID: username}
		}
		return nil, &domain.ErrPersistence{Op: "user lookup", Err: err}
	}
	return user, nil
}

func (s *Service) signToken(user *domain.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      user.Username,
		"user_id":  user.ID,
		"is_admin": user.IsAdmin,
		"iat":      now.Unix(),
		"exp":      now.Add(time.Duration(s.cfg.TokenExpiryMinutes) * time.Minute).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}
