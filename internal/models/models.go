package models

import (
	"fmt"
	"strings"

	"github.com/desertthunder/setlist/internal/shared"
	"golang.org/x/oauth2"
)

const (
	MinUsernameLength = 3
	MinPasswordLength = 6
	// bcrypt input limit, in bytes
	MaxPasswordLength = 72
)

// Identity is the resolved caller of a request.
//
// Spotify is nil when the user has not linked a Spotify account.
type Identity struct {
	UserID   string
	Username string
	Spotify  *oauth2.Token
}

// Empty reports whether no user has been resolved.
func (i Identity) Empty() bool {
	return i.UserID == ""
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidatePassword checks the password length bounds.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", shared.ErrInvalidInput, MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("%w: password must be at most %d bytes", shared.ErrInvalidInput, MaxPasswordLength)
	}
	return nil
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", shared.ErrInvalidInput, field)
	}
	return nil
}
