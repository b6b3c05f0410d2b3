package service

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultPasswordCost is the bcrypt work factor used for stored passwords.
	DefaultPasswordCost = 12
	// MinPasswordLength is the shortest accepted plaintext password.
	MinPasswordLength = 6
	// MaxPasswordLength is the bcrypt input limit in bytes.
	MaxPasswordLength = 72
)

// PasswordHasher hashes and verifies passwords with bcrypt. Each hash embeds its own salt and cost.
type PasswordHasher struct {
	cost int

	dummyOnce sync.Once
	dummy     []byte
}

// NewPasswordHasher returns a hasher for the given cost; zero selects DefaultPasswordCost.
func NewPasswordHasher(cost int) (*PasswordHasher, error) {
	if cost == 0 {
		cost = DefaultPasswordCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &PasswordHasher{cost: cost}, nil
}

func (h *PasswordHasher) Cost() int {
	return h.cost
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether password matches hash using bcrypt's constant-time comparison.
func (h *PasswordHasher) Verify(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Burn spends the same work as Verify against a throwaway hash. Login calls it for
// unknown emails so both failure paths take comparable time.
func (h *PasswordHasher) Burn(password string) {
	h.dummyOnce.Do(func() {
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), h.cost)
	})
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
}
