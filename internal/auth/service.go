package auth

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/shelf/internal/store"
)

var (
	// ErrMissingCredentials is returned when username or password is empty.
	ErrMissingCredentials = errors.New("username and password are required")

	// ErrUserExists is returned when registering a taken username.
	ErrUserExists = errors.New("username already exists")

	// ErrInvalidCredentials is returned for an unknown user or wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// UserStore persists users.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (store.User, error)
	UserByName(ctx context.Context, username string) (store.User, error)
}

// Service registers and logs in users.
type Service struct {
	users  UserStore
	issuer *Issuer
	cost   int
	logger *slog.Logger
}

// NewService creates a Service.
func NewService(users UserStore, issuer *Issuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, issuer: issuer, cost: bcrypt.DefaultCost, logger: logger}
}

// WithCost sets the bcrypt cost, for tests.
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

// Issuer returns the token issuer.
func (s *Service) Issuer() *Issuer {
	return s.issuer
}

// Register creates a user and returns a token for it.
func (s *Service) Register(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", ErrMissingCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", errors.Wrap(err, "hashing password")
	}

	u, err := s.users.CreateUser(ctx, username, string(hash))
	if errors.Is(err, store.ErrUserExists) {
		return "", ErrUserExists
	}
	if err != nil {
		return "", errors.Wrap(err, "creating user")
	}

	s.logger.InfoContext(ctx, "registered user", "user_id", u.ID, "username", u.Username)
	return s.issuer.Sign(Identity{ID: u.ID, Username: u.Username})
}

// Login checks credentials and returns a fresh token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.users.UserByName(ctx, strings.TrimSpace(username))
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", errors.Wrap(err, "finding user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.issuer.Sign(Identity{ID: u.ID, Username: u.Username})
}
