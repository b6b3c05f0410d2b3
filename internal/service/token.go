package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultTokenTTL    = 24 * time.Hour
	DefaultTokenIssuer = "account-service"
)

var errEmptySubject = errors.New("token has no subject")

// TokenConfig configures session token signing. Secret is required and fixed for the process lifetime.
type TokenConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
	// Now overrides the clock; nil uses time.Now.
	Now func() time.Time
}

// TokenManager issues and verifies stateless HS256 session tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

func NewTokenManager(cfg TokenConfig) (*TokenManager, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("token secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTokenTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultTokenIssuer
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := &TokenManager{
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		now:    cfg.Now,
	}
	m.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	return m, nil
}

func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a token for the given subject and returns it with its expiry.
func (m *TokenManager) Issue(subject string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errEmptySubject
	}

	issuedAt := jwt.NewNumericDate(m.now())
	expiresAt := jwt.NewNumericDate(issuedAt.Add(m.ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    m.issuer,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt.Time.UTC(), nil
}

// Parse verifies signature, issuer and expiry and returns the subject. Errors keep their cause.
func (m *TokenManager) Parse(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := m.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", jwt.ErrTokenSignatureInvalid
	}
	if claims.Subject == "" {
		return "", errEmptySubject
	}
	return claims.Subject, nil
}
