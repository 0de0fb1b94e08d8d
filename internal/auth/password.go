package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const DefaultBcryptCost = 10

// Hasher turns passwords into salted one-way digests and verifies them.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) bool
}

// BcryptHasher implements [Hasher] with bcrypt.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher returns a hasher with the given cost, falling back to [DefaultBcryptCost]
// when cost is out of bcrypt's range.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{Cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(digest), nil
}

func (h *BcryptHasher) Verify(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}
