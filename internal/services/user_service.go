package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"despesas/internal/auth"
	"despesas/internal/core"
	"despesas/internal/storage"
)

const minPasswordLength = 6

// RegisterInput is a sign-up request. RegisterPassword must match the
// server's registration password.
type RegisterInput struct {
	Name             string
	Email            string
	Password         string
	RegisterPassword string
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      core.User
}

// UserService manages accounts and sessions.
type UserService struct {
	users            storage.UserStore
	tokens           *auth.Tokens
	registerPassword string
}

// NewUserService returns a service that refuses every registration when
// registerPassword is empty.
func NewUserService(users storage.UserStore, tokens *auth.Tokens, registerPassword string) *UserService {
	return &UserService{users: users, tokens: tokens, registerPassword: registerPassword}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (core.User, error) {
	if in.RegisterPassword == "" {
		return core.User{}, fmt.Errorf("%w: registration password is required", core.ErrValidation)
	}
	if s.registerPassword == "" || in.RegisterPassword != s.registerPassword {
		return core.User{}, fmt.Errorf("%w: wrong registration password", core.ErrUnauthorized)
	}

	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if err := validateCredentials(name, email, in.Password); err != nil {
		return core.User{}, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return core.User{}, err
	}
	u := core.User{Name: name, Email: email, PasswordHash: hash, Role: core.RoleUser}
	if err := s.users.CreateUser(ctx, &u); err != nil {
		return core.User{}, err
	}

	slog.InfoContext(ctx, "User registered", "user_id", u.ID)
	return u, nil
}

// Login checks the credentials and issues a token. An unknown email and a
// wrong password fail the same way.
func (s *UserService) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return Session{}, fmt.Errorf("%w: invalid credentials", core.ErrUnauthorized)
		}
		return Session{}, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return Session{}, fmt.Errorf("%w: invalid credentials", core.ErrUnauthorized)
	}

	token, expires, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: expires, User: u}, nil
}

// Authenticate verifies a token and returns its claims.
func (s *UserService) Authenticate(token string) (*auth.Claims, error) {
	return s.tokens.Verify(token)
}

// Exists reports whether the user behind a token still exists.
func (s *UserService) Exists(ctx context.Context, userID string) (bool, error) {
	_, err := s.users.GetUserByID(ctx, userID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, core.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *UserService) Profile(ctx context.Context, userID string) (core.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

// EnsureUser creates the account or, when the email is taken, resets its
// name and password.
func (s *UserService) EnsureUser(ctx context.Context, name, email, password string) (core.User, error) {
	email = normalizeEmail(email)
	if err := validateCredentials(name, email, password); err != nil {
		return core.User{}, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return core.User{}, err
	}

	u, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, core.ErrNotFound):
		u = core.User{Name: name, Email: email, PasswordHash: hash, Role: core.RoleUser}
		if err := s.users.CreateUser(ctx, &u); err != nil {
			return core.User{}, err
		}
		return u, nil
	case err != nil:
		return core.User{}, err
	}

	u.Name = name
	u.PasswordHash = hash
	if err := s.users.UpdateUser(ctx, &u); err != nil {
		return core.User{}, err
	}
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCredentials(name, email, password string) error {
	if len([]rune(name)) < 2 {
		return core.ErrNameTooShort
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: invalid email", core.ErrValidation)
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must have at least %d characters", core.ErrValidation, minPasswordLength)
	}
	return nil
}
