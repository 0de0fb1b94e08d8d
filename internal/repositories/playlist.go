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

const playlistColumns = `id, owner_id, name, description, is_public, songs, created_at, updated_at`

// PlaylistRepository implements [PlaylistStore] on SQLite.
//
// Songs are embedded in the playlist row as a JSON array so that every song mutation is a
// single-row read-modify-write.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Create inserts a new playlist with a generated ID and sequence
func (r *PlaylistRepository) Create(ctx context.Context, playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "playlists")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	songs, err := encodeSongs(playlist.Songs)
	if err != nil {
		return err
	}

	id := shared.GenerateID()
	query := `
		INSERT INTO playlists (id, sequence, owner_id, name, description, is_public, songs, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		id,
		sequence,
		playlist.OwnerID,
		playlist.Name,
		playlist.Description,
		playlist.IsPublic,
		songs,
		playlist.CreatedAt,
		playlist.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}

	playlist.ID = id
	return nil
}

// Get retrieves a playlist by ID scoped to its owner
func (r *PlaylistRepository) Get(ctx context.Context, id, owner string) (*models.Playlist, error) {
	return r.get(ctx, r.db, id, owner)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *PlaylistRepository) get(ctx context.Context, q queryRower, id, owner string) (*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE id = ? AND owner_id = ?`
	playlist, err := scanPlaylist(q.QueryRowContext(ctx, query, id, owner))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("playlist", id)
	}
	return playlist, err
}

// ListByOwner retrieves the owner's playlists in creation order
func (r *PlaylistRepository) ListByOwner(ctx context.Context, owner string) ([]*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE owner_id = ? ORDER BY sequence ASC`

	rows, err := r.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	playlists := []*models.Playlist{}
	for rows.Next() {
		playlist, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, playlist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return playlists, nil
}

// Delete removes a playlist owned by owner
func (r *PlaylistRepository) Delete(ctx context.Context, id, owner string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM playlists WHERE id = ? AND owner_id = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return notFound("playlist", id)
	}

	return nil
}

// Mutate applies fn to the stored playlist inside a single write transaction
func (r *PlaylistRepository) Mutate(ctx context.Context, id, owner string, fn func(*models.Playlist) error) (*models.Playlist, error) {
	var updated *models.Playlist

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		playlist, err := r.get(ctx, tx, id, owner)
		if err != nil {
			return err
		}

		if err := fn(playlist); err != nil {
			return err
		}

		if err := playlist.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}

		songs, err := encodeSongs(playlist.Songs)
		if err != nil {
			return err
		}

		playlist.UpdatedAt = time.Now().UTC()
		query := `
			UPDATE playlists
			SET name = ?, description = ?, is_public = ?, songs = ?, updated_at = ?
			WHERE id = ? AND owner_id = ?
		`

		_, err = tx.ExecContext(ctx, query,
			playlist.Name,
			playlist.Description,
			playlist.IsPublic,
			songs,
			playlist.UpdatedAt,
			id,
			owner,
		)
		if err != nil {
			return fmt.Errorf("failed to update playlist: %w", err)
		}

		updated = playlist
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func scanPlaylist(row scanner) (*models.Playlist, error) {
	var (
		playlist models.Playlist
		songs    string
	)

	err := row.Scan(
		&playlist.ID,
		&playlist.OwnerID,
		&playlist.Name,
		&playlist.Description,
		&playlist.IsPublic,
		&songs,
		&playlist.CreatedAt,
		&playlist.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	if err := json.Unmarshal([]byte(songs), &playlist.Songs); err != nil {
		return nil, fmt.Errorf("failed to decode songs: %w", err)
	}
	if playlist.Songs == nil {
		playlist.Songs = []models.Song{}
	}

	return &playlist, nil
}

func encodeSongs(songs []models.Song) (string, error) {
	if songs == nil {
		songs = []models.Song{}
	}
	data, err := json.Marshal(songs)
	if err != nil {
		return "", fmt.Errorf("failed to encode songs: %w", err)
	}
	return string(data), nil
}
