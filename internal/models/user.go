package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/setlist/internal/shared"
)

// User is a registered account.
//
// PlaylistIDs is a denormalized list of owned playlist ids kept in step with the
// playlists collection by the playlist service.
type User struct {
	ID           string    `json:"id" bson:"_id"`
	Username     string    `json:"username" bson:"username"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"password"`
	PlaylistIDs  []string  `json:"playlists" bson:"playlists"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"`
}

// PublicUser is the redacted view of a [User] returned to clients.
type PublicUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Playlists []string  `json:"playlists"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewUser builds a user with normalized username and email and no playlists.
func NewUser(username, email, passwordHash string) *User {
	now := time.Now().UTC()
	return &User{
		Username:     strings.TrimSpace(username),
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		PlaylistIDs:  []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Validate checks the username and email rules.
func (u *User) Validate() error {
	if len(strings.TrimSpace(u.Username)) < MinUsernameLength {
		return fmt.Errorf("%w: username must be at least %d characters", shared.ErrInvalidInput, MinUsernameLength)
	}
	if err := required("email", u.Email); err != nil {
		return err
	}
	if !strings.Contains(u.Email, "@") {
		return fmt.Errorf("%w: email %q is not valid", shared.ErrInvalidInput, u.Email)
	}
	return nil
}

// Public returns the redacted view of the user.
func (u *User) Public() PublicUser {
	playlists := u.PlaylistIDs
	if playlists == nil {
		playlists = []string{}
	}
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Playlists: playlists,
		CreatedAt: u.CreatedAt,
	}
}

// HasPlaylist reports whether id is in the user's playlist references.
func (u *User) HasPlaylist(id string) bool {
	for _, pid := range u.PlaylistIDs {
		if pid == id {
			return true
		}
	}
	return false
}
