package app

import (
	"context"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/mannykwaning/banking-app/internal/domain"
	"github.com/mannykwaning/banking-app/internal/store"
)

type authRepoStub struct {
	store.Repository

	users map[string]*domain.User
}

func (s *authRepoStub) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	if _, exists := s.users[user.Username]; exists {
		return nil, store.ErrDuplicateUsername
	}
	created := *user
	created.ID = int64(len(s.users) + 1)
	s.users[user.Username] = &created
	return &created, nil
}

func (s *authRepoStub) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, ok := s.users[username]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return user, nil
}

func TestRegisterAndLogin_Roundtrip(t *testing.T) {
	repo := &authRepoStub{users: map[string]*domain.User{}}
	svc := newTestService(t, repo)

	user, err := svc.Register(context.Background(), domain.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("expected registration to succeed, got %v", err)
	}
	if user.PasswordHash == "correct-horse" {
		t.Fatal("expected the password to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct-horse")); err != nil {
		t.Fatalf("stored hash does not verify the password: %v", err)
	}
	if !user.IsActive {
		t.Fatal("expected new users to be active")
	}

	token, err := svc.Login(context.Background(), domain.LoginRequest{Username: "alice", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("expected login to succeed, got %v", err)
	}
	if token.TokenType != "bearer" || token.AccessToken == "" {
		t.Fatalf("unexpected token response: %+v", token)
	}
}

func TestLogin_TokenClaims(t *testing.T) {
	repo := &authRepoStub{users: map[string]*domain.User{}}
	svc := newTestService(t, repo)

	if _, err := svc.Register(context.Background(), domain.RegisterRequest{Username: "admin", Password: "super-secret-pass"}); err != nil {
		t.Fatalf("registration failed: %v", err)
	}
	repo.users["admin"].IsAdmin = true

	token, err := svc.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "super-secret-pass"})
	if err != nil {
		t.Fatalf("expected login to succeed, got %v", err)
	}

	parsed, err := jwt.Parse(token.AccessToken, func(t *jwt.Token) (interface{}, error) {
		return []byte(testConfig().JWTSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		t.Fatalf("failed to parse issued token: %v", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatal("expected map claims")
	}
	if claims["sub"] != "admin" {
		t.Fatalf("expected subject admin, got %v", claims["sub"])
	}
	if claims["is_admin"] != true {
		t.Fatalf("expected admin claim, got %v", claims["is_admin"])
	}
	if _, ok := claims["exp"].(float64); !ok {
		t.Fatal("expected an expiry claim")
	}
}

func TestLogin_WrongPasswordAndUnknownUserLookAlike(t *testing.T) {
	repo := &authRepoStub{users: map[string]*domain.User{}}
	svc := newTestService(t, repo)

	if _, err := svc.Register(context.Background(), domain.RegisterRequest{Username: "alice", Password: "correct-horse"}); err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	_, errWrongPassword := svc.Login(context.Background(), domain.LoginRequest{Username: "alice", Password: "battery-staple"})
	_, errUnknownUser := svc.Login(context.Background(), domain.LoginRequest{Username: "mallory", Password: "battery-staple"})

	var unauthorized *domain.ErrUnauthorized
	if !errors.As(errWrongPassword, &unauthorized) {
		t.Fatalf("expected ErrUnauthorized for a wrong password, got %v", errWrongPassword)
	}
	wrongPasswordMessage := unauthorized.Message
	if !errors.As(errUnknownUser, &unauthorized) {
		t.Fatalf("expected ErrUnauthorized for an unknown user, got %v", errUnknownUser)
	}
	if unauthorized.Message != wrongPasswordMessage {
		t.Fatal("expected identical errors for wrong password and unknown user")
	}
}

func TestLogin_DisabledUserRejected(t *testing.T) {
	repo := &authRepoStub{users: map[string]*domain.User{}}
	svc := newTestService(t, repo)

	if _, err := svc.Register(context.Background(), domain.RegisterRequest{Username: "alice", Password: "correct-horse"}); err != nil {
		t.Fatalf("registration failed: %v", err)
	}
	repo.users["alice"].IsActive = false

	_, err := svc.Login(context.Background(), domain.LoginRequest{Username: "alice", Password: "correct-horse"})
	var unauthorized *domain.ErrUnauthorized
	if !errors.As(err, &unauthorized) {
		t.Fatalf("expected ErrUnauthorized for a disabled user, got %v", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	repo := &authRepoStub{users: map[string]*domain.User{}}
	svc := newTestService(t, repo)

	_, err := svc.Register(context.Background(), domain.RegisterRequest{Username: "  ", Password: "long-enough"})
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) || validation.Field != "username" {
		t.Fatalf("expected username validation error, got %v", err)
	}

	_, err = svc.Register(context.Background(), domain.RegisterRequest{Username: "alice", Password: "short"})
	if !errors.As(err, &validation) || validation.Field != "password" {
		t.Fatalf("expected password validation error, got %v", err)
	}
}

func TestGetUserByUsername(t *testing.T) {
	repo := &authRepoStub{users: map[string]*domain.User{}}
	svc := newTestService(t, repo)

	if _, err := svc.Register(context.Background(), domain.RegisterRequest{Username: "alice", Password: "correct-horse"}); err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	user, err := svc.GetUserByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("expected lookup to succeed, got %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("unexpected user %+v", user)
	}

	_, err = svc.GetUserByUsername(context.Background(), "mallory")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound for an unknown user, got %v", err)
	}
}

func TestRegister_DuplicateUsernameConflicts(t *testing.T) {
	repo := &authRepoStub{users: map[string]*domain.User{}}
	svc := newTestService(t, repo)

	if _, err := svc.Register(context.Background(), domain.RegisterRequest{Username: "alice", Password: "correct-horse"}); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	_, err := svc.Register(context.Background(), domain.RegisterRequest{Username: "alice", Password: "correct-horse"})
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ErrConflict for a duplicate username, got %v", err)
	}
}
