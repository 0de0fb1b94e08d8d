// Package playlists implements the playlist operations available to an authenticated user.
//
// Every operation takes the caller's [models.Identity] explicitly and is scoped to playlists
// that identity owns: a playlist owned by someone else is reported as not found.
//
// Creating and deleting a playlist touches two documents (the playlist and the owner's
// reference list) without a transaction. The playlist document is authoritative: a failed
// reference write is logged and does not undo the playlist write.
package playlists

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/repositories"
	"github.com/desertthunder/setlist/internal/shared"
)

// CreateInput is the body of a create request.
type CreateInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPublic    bool   `json:"isPublic"`
}

// Service implements playlist CRUD and song mutations.
type Service struct {
	playlists repositories.PlaylistStore
	users     repositories.UserStore
	logger    *log.Logger
}

// NewService creates a playlist service.
func NewService(playlists repositories.PlaylistStore, users repositories.UserStore, logger *log.Logger) *Service {
	return &Service{
		playlists: playlists,
		users:     users,
		logger:    shared.WithLogger(logger, "component", "playlists"),
	}
}

// Create stores a new empty playlist owned by the caller and records it on the owner.
func (s *Service) Create(ctx context.Context, id models.Identity, in CreateInput) (*models.Playlist, error) {
	if id.Empty() {
		return nil, shared.ErrUnauthorized
	}

	playlist := models.NewPlaylist(id.UserID, in.Name, in.Description, in.IsPublic)
	if err := playlist.Validate(); err != nil {
		return nil, err
	}

	if err := s.playlists.Create(ctx, playlist); err != nil {
		return nil, storeErr(err)
	}

	if err := s.users.AddPlaylistRef(ctx, id.UserID, playlist.ID); err != nil {
		s.logger.Error("playlist created but owner reference not recorded",
			"user_id", id.UserID, "playlist_id", playlist.ID, "error", err)
	}

	return playlist, nil
}

// ListOwned returns the caller's playlists in creation order.
func (s *Service) ListOwned(ctx context.Context, id models.Identity) ([]*models.Playlist, error) {
	if id.Empty() {
		return nil, shared.ErrUnauthorized
	}

	playlists, err := s.playlists.ListByOwner(ctx, id.UserID)
	if err != nil {
		return nil, storeErr(err)
	}
	return playlists, nil
}

// Get returns one of the caller's playlists.
func (s *Service) Get(ctx context.Context, id models.Identity, playlistID string) (*models.Playlist, error) {
	if id.Empty() {
		return nil, shared.ErrUnauthorized
	}

	playlist, err := s.playlists.Get(ctx, playlistID, id.UserID)
	if err != nil {
		return nil, storeErr(err)
	}
	return playlist, nil
}

// Update changes the supplied metadata fields. Songs are not affected.
func (s *Service) Update(ctx context.Context, id models.Identity, playlistID string, u models.PlaylistUpdate) (*models.Playlist, error) {
	return s.mutate(ctx, id, playlistID, func(p *models.Playlist) error {
		return p.Apply(u)
	})
}

// Delete removes one of the caller's playlists and its owner reference.
func (s *Service) Delete(ctx context.Context, id models.Identity, playlistID string) error {
	if id.Empty() {
		return shared.ErrUnauthorized
	}

	if err := s.playlists.Delete(ctx, playlistID, id.UserID); err != nil {
		return storeErr(err)
	}

	err := s.users.RemovePlaylistRef(ctx, id.UserID, playlistID)
	if err != nil {
		err = s.users.RemovePlaylistRef(ctx, id.UserID, playlistID)
	}
	if err != nil {
		s.logger.Error("playlist deleted but owner reference not removed",
			"user_id", id.UserID, "playlist_id", playlistID, "error", err)
	}

	return nil
}

// AddSong appends a song to the end of one of the caller's playlists.
func (s *Service) AddSong(ctx context.Context, id models.Identity, playlistID string, song models.Song) (*models.Playlist, error) {
	if err := song.Validate(); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, playlistID, func(p *models.Playlist) error {
		return p.AddSong(song)
	})
}

// UpdateSong changes the title and/or artist of a song in place.
func (s *Service) UpdateSong(ctx context.Context, id models.Identity, playlistID, songID string, u models.SongUpdate) (*models.Playlist, error) {
	if u.Empty() {
		return nil, fmt.Errorf("%w: title or artist is required", shared.ErrInvalidInput)
	}
	return s.mutate(ctx, id, playlistID, func(p *models.Playlist) error {
		return p.UpdateSong(songID, u)
	})
}

// RemoveSong removes a song, keeping the order of the rest. Removing a song that is not in
// the playlist is [shared.ErrNotFound].
func (s *Service) RemoveSong(ctx context.Context, id models.Identity, playlistID, songID string) (*models.Playlist, error) {
	return s.mutate(ctx, id, playlistID, func(p *models.Playlist) error {
		if !p.RemoveSong(songID) {
			return fmt.Errorf("%w: song %s", shared.ErrNotFound, songID)
		}
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, id models.Identity, playlistID string, fn func(*models.Playlist) error) (*models.Playlist, error) {
	if id.Empty() {
		return nil, shared.ErrUnauthorized
	}

	playlist, err := s.playlists.Mutate(ctx, playlistID, id.UserID, fn)
	if err != nil {
		return nil, storeErr(err)
	}
	return playlist, nil
}

// storeErr passes domain errors through and classifies anything else as internal.
func storeErr(err error) error {
	for _, known := range []error{shared.ErrNotFound, shared.ErrConflict, shared.ErrInvalidInput, shared.ErrInternal} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", shared.ErrInternal, err)
}
