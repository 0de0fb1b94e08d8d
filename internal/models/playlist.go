package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/setlist/internal/shared"
)

// Song is a track embedded in a [Playlist]. SpotifyID is unique within one playlist.
type Song struct {
	SpotifyID  string `json:"spotifyId" bson:"spotifyId"`
	Title      string `json:"title" bson:"title"`
	Artist     string `json:"artist" bson:"artist"`
	Album      string `json:"album" bson:"album"`
	Duration   int    `json:"duration" bson:"duration"` // milliseconds
	PreviewURL string `json:"previewUrl,omitempty" bson:"previewUrl,omitempty"`
}

// Validate requires the catalog id, title, artist and album.
func (s Song) Validate() error {
	for _, f := range []struct{ name, value string }{
		{"spotifyId", s.SpotifyID},
		{"title", s.Title},
		{"artist", s.Artist},
		{"album", s.Album},
	} {
		if err := required(f.name, f.value); err != nil {
			return err
		}
	}
	if s.Duration < 0 {
		return fmt.Errorf("%w: duration cannot be negative", shared.ErrInvalidInput)
	}
	return nil
}

// Playlist is a user-owned, named, ordered collection of songs.
type Playlist struct {
	ID          string    `json:"id" bson:"_id"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description" bson:"description"`
	OwnerID     string    `json:"user" bson:"user"`
	IsPublic    bool      `json:"isPublic" bson:"isPublic"`
	Songs       []Song    `json:"songs" bson:"songs"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// NewPlaylist builds an empty playlist owned by ownerID.
func NewPlaylist(ownerID, name, description string, isPublic bool) *Playlist {
	now := time.Now().UTC()
	return &Playlist{
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		OwnerID:     ownerID,
		IsPublic:    isPublic,
		Songs:       []Song{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate requires a name and an owner.
func (p *Playlist) Validate() error {
	if err := required("name", p.Name); err != nil {
		return err
	}
	return required("owner", p.OwnerID)
}

// FindSong returns the position of the song with the given catalog id.
func (p *Playlist) FindSong(spotifyID string) (int, bool) {
	for i, s := range p.Songs {
		if s.SpotifyID == spotifyID {
			return i, true
		}
	}
	return -1, false
}

// AddSong appends a song, rejecting a catalog id already in the playlist.
func (p *Playlist) AddSong(song Song) error {
	if err := song.Validate(); err != nil {
		return err
	}
	if _, ok := p.FindSong(song.SpotifyID); ok {
		return fmt.Errorf("%w: song %s is already in playlist", shared.ErrConflict, song.SpotifyID)
	}
	p.Songs = append(p.Songs, song)
	return nil
}

// UpdateSong applies the supplied fields of u to the song with the given catalog id.
func (p *Playlist) UpdateSong(spotifyID string, u SongUpdate) error {
	if u.Empty() {
		return fmt.Errorf("%w: title or artist is required", shared.ErrInvalidInput)
	}
	i, ok := p.FindSong(spotifyID)
	if !ok {
		return fmt.Errorf("%w: song %s", shared.ErrNotFound, spotifyID)
	}
	if u.Title != nil {
		if err := required("title", *u.Title); err != nil {
			return err
		}
		p.Songs[i].Title = *u.Title
	}
	if u.Artist != nil {
		if err := required("artist", *u.Artist); err != nil {
			return err
		}
		p.Songs[i].Artist = *u.Artist
	}
	return nil
}

// RemoveSong removes the song with the given catalog id and reports whether it was present.
// The order of the remaining songs is preserved.
func (p *Playlist) RemoveSong(spotifyID string) bool {
	i, ok := p.FindSong(spotifyID)
	if !ok {
		return false
	}
	p.Songs = append(p.Songs[:i], p.Songs[i+1:]...)
	return true
}

// Apply sets the supplied fields of u.
func (p *Playlist) Apply(u PlaylistUpdate) error {
	if u.Name != nil {
		if err := required("name", *u.Name); err != nil {
			return err
		}
		p.Name = strings.TrimSpace(*u.Name)
	}
	if u.Description != nil {
		p.Description = strings.TrimSpace(*u.Description)
	}
	if u.IsPublic != nil {
		p.IsPublic = *u.IsPublic
	}
	return nil
}

// PlaylistUpdate holds the metadata fields a caller may change. Nil fields are left alone.
type PlaylistUpdate struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsPublic    *bool   `json:"isPublic"`
}

// SongUpdate holds the song fields a caller may change. Nil fields are left alone.
type SongUpdate struct {
	Title  *string `json:"title"`
	Artist *string `json:"artist"`
}

// Empty reports whether no field was supplied.
func (u SongUpdate) Empty() bool {
	return u.Title == nil && u.Artist == nil
}
