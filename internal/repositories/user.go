package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/shared"
)

const userColumns = `id, username, email, password_hash, playlist_ids, created_at, updated_at`

// UserRepository implements [UserStore] on SQLite.
//
// Playlist references are stored as a JSON array in the playlist_ids column.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user with a generated ID and sequence
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "users")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	refs, err := encodeRefs(user.PlaylistIDs)
	if err != nil {
		return err
	}

	id := shared.GenerateID()
	query := `
		INSERT INTO users (id, sequence, username, email, password_hash, playlist_ids, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query, id, sequence, user.Username, user.Email, user.PasswordHash, refs, user.CreatedAt, user.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: username or email is taken", shared.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	user.ID = id
	return nil
}

// Get retrieves a user by ID
func (r *UserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("user", id)
	}
	return user, err
}

// FindByEmail retrieves a user by normalized email
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("user with email", email)
	}
	return user, err
}

// Exists reports whether the username or email is already registered
func (r *UserRepository) Exists(ctx context.Context, username, email string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM users WHERE username = ? OR email = ?`
	if err := r.db.QueryRowContext(ctx, query, username, models.NormalizeEmail(email)).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to query users: %w", err)
	}
	return count > 0, nil
}

// List retrieves all users in registration order
func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY sequence ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return users, nil
}

// AddPlaylistRef appends playlistID to the user's playlist references
func (r *UserRepository) AddPlaylistRef(ctx context.Context, userID, playlistID string) error {
	return r.mutateRefs(ctx, userID, func(refs []string) []string {
		for _, id := range refs {
			if id == playlistID {
				return refs
			}
		}
		return append(refs, playlistID)
	})
}

// RemovePlaylistRef removes playlistID from the user's playlist references
func (r *UserRepository) RemovePlaylistRef(ctx context.Context, userID, playlistID string) error {
	return r.mutateRefs(ctx, userID, func(refs []string) []string {
		kept := refs[:0]
		for _, id := range refs {
			if id != playlistID {
				kept = append(kept, id)
			}
		}
		return kept
	})
}

func (r *UserRepository) mutateRefs(ctx context.Context, userID string, fn func([]string) []string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var raw string
		err := tx.QueryRowContext(ctx, `SELECT playlist_ids FROM users WHERE id = ?`, userID).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("user", userID)
		}
		if err != nil {
			return fmt.Errorf("failed to query user: %w", err)
		}

		var refs []string
		if err := json.Unmarshal([]byte(raw), &refs); err != nil {
			return fmt.Errorf("failed to decode playlist references: %w", err)
		}

		encoded, err := encodeRefs(fn(refs))
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `UPDATE users SET playlist_ids = ?, updated_at = ? WHERE id = ?`, encoded, time.Now().UTC(), userID)
		if err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		return nil
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	var (
		user models.User
		refs string
	)

	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &refs, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	if err := json.Unmarshal([]byte(refs), &user.PlaylistIDs); err != nil {
		return nil, fmt.Errorf("failed to decode playlist references: %w", err)
	}
	if user.PlaylistIDs == nil {
		user.PlaylistIDs = []string{}
	}

	return &user, nil
}

func encodeRefs(refs []string) (string, error) {
	if refs == nil {
		refs = []string{}
	}
	data, err := json.Marshal(refs)
	if err != nil {
		return "", fmt.Errorf("failed to encode playlist references: %w", err)
	}
	return string(data), nil
}
