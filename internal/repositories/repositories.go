// package repositories provides persistence for users, playlists and linked Spotify tokens.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/shared"
	"github.com/mattn/go-sqlite3"
	"golang.org/x/oauth2"
)

// UserStore persists [models.User] documents.
//
// Username and email are unique across all users; violations return [shared.ErrConflict].
type UserStore interface {
	// Create assigns an id to user and inserts it.
	Create(ctx context.Context, user *models.User) error
	Get(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// Exists reports whether a user holds the username or the email.
	Exists(ctx context.Context, username, email string) (bool, error)
	List(ctx context.Context) ([]*models.User, error)
	// AddPlaylistRef appends playlistID to the user's references if it is not already present.
	AddPlaylistRef(ctx context.Context, userID, playlistID string) error
	// RemovePlaylistRef removes playlistID from the user's references. Removing an absent id is not an error.
	RemovePlaylistRef(ctx context.Context, userID, playlistID string) error
}

// PlaylistStore persists [models.Playlist] documents.
//
// Every lookup is scoped by owner: a playlist owned by someone else is indistinguishable
// from one that does not exist, and both return [shared.ErrNotFound].
type PlaylistStore interface {
	// Create assigns an id to playlist and inserts it.
	Create(ctx context.Context, playlist *models.Playlist) error
	Get(ctx context.Context, id, owner string) (*models.Playlist, error)
	// ListByOwner returns the owner's playlists in creation order.
	ListByOwner(ctx context.Context, owner string) ([]*models.Playlist, error)
	Delete(ctx context.Context, id, owner string) error
	// Mutate loads the playlist, applies fn and writes the result back as one atomic
	// read-modify-write of that document. Nothing is written when fn returns an error.
	Mutate(ctx context.Context, id, owner string, fn func(*models.Playlist) error) (*models.Playlist, error)
}

// TokenStore keeps the Spotify OAuth token linked to each user.
type TokenStore interface {
	Save(ctx context.Context, userID string, token *oauth2.Token) error
	// Get returns [shared.ErrNotFound] when the user has no linked token.
	Get(ctx context.Context, userID string) (*oauth2.Token, error)
	Delete(ctx context.Context, userID string) error
}

// NextSequence atomically increments and returns the next sequence number for the given table.
//
// Sequence numbers give a stable creation order independent of ids and clock resolution.
func NextSequence(ctx context.Context, db *sql.DB, table string) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequenceTable := table + "_sequence"

	_, err = tx.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET value = value + 1 WHERE id = 1", sequenceTable))
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}

	var sequence int
	err = tx.QueryRowContext(ctx, fmt.Sprintf("SELECT value FROM %s WHERE id = 1", sequenceTable)).Scan(&sequence)
	if err != nil {
		return 0, fmt.Errorf("failed to get sequence value: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sequence transaction: %w", err)
	}

	return sequence, nil
}

// withTx runs fn inside a transaction. The DSN built by [shared.NewDatabase] makes this a
// BEGIN IMMEDIATE transaction, so concurrent writers queue on the database lock.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", shared.ErrNotFound, kind, id)
}
