package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"account-service/internal/domain"
	"account-service/internal/repository"
)

// RegisterInput carries the fields submitted at registration. An Age of zero counts as missing.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Age      int
}

// AuthResult is returned by successful registration and login. User never carries a password hash.
type AuthResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// AuthConfig configures password hashing and token signing.
type AuthConfig struct {
	Token        TokenConfig
	PasswordCost int
}

// AuthService registers and authenticates users and manages their session tokens.
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*AuthResult, error)
	CreateUser(ctx context.Context, input RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	IssueToken(user *domain.User) (string, time.Time, error)
	ValidateToken(token string) (string, error)
}

type authService struct {
	users  repository.UserRepository
	hasher *PasswordHasher
	tokens *TokenManager
	logger *logrus.Logger
}

func NewAuthService(users repository.UserRepository, cfg AuthConfig, logger *logrus.Logger) (AuthService, error) {
	hasher, err := NewPasswordHasher(cfg.PasswordCost)
	if err != nil {
		return nil, err
	}
	tokens, err := NewTokenManager(cfg.Token)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &authService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
	}, nil
}

func (s *authService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	user, err := s.CreateUser(ctx, input)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.IssueToken(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *authService) CreateUser(ctx context.Context, input RegisterInput) (*domain.User, error) {
	name := strings.TrimSpace(input.Name)
	email := domain.NormalizeEmail(input.Email)

	var missing []string
	if name == "" {
		missing = append(missing, "name")
	}
	if email == "" {
		missing = append(missing, "email")
	}
	if input.Password == "" {
		missing = append(missing, "password")
	}
	if input.Age == 0 {
		missing = append(missing, "age")
	}
	if len(missing) > 0 {
		return nil, domain.Missing(missing...)
	}

	if err := checkPassword(input.Password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Age:          input.Age,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.WithField("user_id", user.ID).Info("user registered")
	return user.Sanitized(), nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.hasher.Burn(password)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !s.hasher.Verify(user.PasswordHash, password) {
		return nil, domain.ErrInvalidCredentials
	}

	token, expiresAt, err := s.IssueToken(user)
	if err != nil {
		return nil, err
	}

	s.logger.WithField("user_id", user.ID).Debug("user logged in")
	return &AuthResult{User: user.Sanitized(), Token: token, ExpiresAt: expiresAt}, nil
}

func (s *authService) IssueToken(user *domain.User) (string, time.Time, error) {
	if user == nil {
		return "", time.Time{}, errors.New("issue token: nil user")
	}
	return s.tokens.Issue(user.ID)
}

func (s *authService) ValidateToken(token string) (string, error) {
	subject, err := s.tokens.Parse(token)
	if err != nil {
		s.logger.WithError(err).Debug("token rejected")
		return "", domain.ErrInvalidCredentials
	}
	return subject, nil
}

func checkPassword(password string) error {
	switch {
	case utf8.RuneCountInString(password) < MinPasswordLength:
		verr := &domain.ValidationError{}
		verr.Add("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
		return verr
	case len(password) > MaxPasswordLength:
		verr := &domain.ValidationError{}
		verr.Add("password", fmt.Sprintf("must be at most %d bytes", MaxPasswordLength))
		return verr
	}
	return nil
}
