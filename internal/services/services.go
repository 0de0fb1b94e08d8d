// package services defines interface Service for interacting with external catalog APIs
package services

import (
	"context"

	"github.com/desertthunder/setlist/internal/models"
	"golang.org/x/oauth2"
)

// Service defines the operations the HTTP layer needs from an external music catalog.
//
// Every catalog call acts on behalf of the caller and uses the provider token carried by
// the [models.Identity]. An identity without one fails with [shared.ErrUnauthorized].
type Service interface {
	// Search returns tracks matching a free-text query.
	Search(ctx context.Context, id models.Identity, query string) ([]models.ExternalTrack, error)

	// Recommendations returns tracks similar to the given seed track ids.
	Recommendations(ctx context.Context, id models.Identity, seeds []string) ([]models.ExternalTrack, error)

	// UserPlaylists returns the caller's playlists on the provider.
	UserPlaylists(ctx context.Context, id models.Identity) ([]models.ExternalPlaylist, error)

	// AddTrack appends the track URI to one of the caller's provider playlists.
	AddTrack(ctx context.Context, id models.Identity, playlistID, trackURI string) error

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// OAuthService is a [Service] whose provider tokens are obtained with the authorization code flow.
type OAuthService interface {
	Service

	// AuthURL returns the provider's consent page URL carrying state.
	AuthURL(state string) string

	// Exchange trades an authorization code for a provider token.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}
