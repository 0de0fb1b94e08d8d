// Spotify API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// DefaultRedirectURI matches the callback registered for local development.
	DefaultRedirectURI = "http://localhost:3001/callback"

	searchLimit   = 20
	maxSeeds      = 5
	playlistLimit = 50
	maxErrorBody  = 4096
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	PreviewURL string          `json:"preview_url"`
	URI        string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
	URI    string         `json:"uri"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type simplePlaylistTrack struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Owner       Owner               `json:"owner"`
	Public      bool                `json:"public"`
	Tracks      simplePlaylistTrack `json:"tracks"`
	Images      []SpotifyImage      `json:"images"`
	URI         string              `json:"uri"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items    []SpotifySimplePlaylist `json:"items"`
	Total    int                     `json:"total"`
	Limit    int                     `json:"limit"`
	Offset   int                     `json:"offset"`
	Next     *string                 `json:"next"`
	Previous *string                 `json:"previous"`
}

// TokenRefreshFunc receives a user's token after the oauth2 client has refreshed it.
type TokenRefreshFunc func(ctx context.Context, userID string, token *oauth2.Token)

// SpotifyOption configures a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithBaseURL points API calls at another host, such as an httptest server.
func WithBaseURL(baseURL string) SpotifyOption {
	return func(s *SpotifyService) { s.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithEndpoint overrides the OAuth authorize and token URLs.
func WithEndpoint(authURL, tokenURL string) SpotifyOption {
	return func(s *SpotifyService) {
		s.config.Endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL}
	}
}

// WithHTTPClient sets the client whose transport carries every outbound request.
func WithHTTPClient(c *http.Client) SpotifyOption {
	return func(s *SpotifyService) { s.httpClient = c }
}

// WithRateLimit paces outbound requests to rps per second. Zero or less disables pacing.
func WithRateLimit(rps float64) SpotifyOption {
	return func(s *SpotifyService) {
		if rps <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		burst := max(int(rps), 1)
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithTokenRefresh registers fn to persist refreshed tokens.
func WithTokenRefresh(fn TokenRefreshFunc) SpotifyOption {
	return func(s *SpotifyService) { s.onRefresh = fn }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) SpotifyOption {
	return func(s *SpotifyService) { s.logger = shared.WithLogger(l, "service", "spotify") }
}

// SpotifyService implements [OAuthService] for the Spotify Web API.
type SpotifyService struct {
	config     *oauth2.Config
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	onRefresh  TokenRefreshFunc
	logger     *log.Logger
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
//
// Recognized keys are client_id, client_secret, redirect_uri and api_url.
func NewSpotifyService(credentials map[string]string, opts ...SpotifyOption) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id in credentials", shared.ErrMissingConfig)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret in credentials", shared.ErrMissingConfig)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = DefaultRedirectURI
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-read-private",
			"user-read-email",
			"playlist-read-private",
			"playlist-modify-public",
			"playlist-modify-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	s := &SpotifyService{
		config:     config,
		baseURL:    spotifyBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Inf, 0),
		logger:     shared.WithLogger(log.Default(), "service", "spotify"),
	}

	if apiURL := credentials["api_url"]; apiURL != "" {
		s.baseURL = strings.TrimRight(apiURL, "/")
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// AuthURL returns the OAuth2 authorization URL for user consent.
func (s *SpotifyService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: authorization code is required", shared.ErrInvalidInput)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	token, err := s.config.Exchange(s.oauthContext(ctx), code)
	if err != nil {
		return nil, upstreamFromOAuth(err)
	}
	return token, nil
}

func (s *SpotifyService) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// client returns an HTTP client authorized as the caller, refreshing the token when needed.
func (s *SpotifyService) client(ctx context.Context, id models.Identity) (*http.Client, error) {
	if id.Spotify == nil || id.Spotify.AccessToken == "" {
		return nil, fmt.Errorf("%w: spotify account not linked", shared.ErrUnauthorized)
	}

	octx := s.oauthContext(ctx)
	src := &refreshNotifier{
		ctx:     ctx,
		userID:  id.UserID,
		last:    id.Spotify.AccessToken,
		base:    s.config.TokenSource(octx, id.Spotify),
		service: s,
	}
	return oauth2.NewClient(octx, src), nil
}

// refreshNotifier reports tokens that differ from the one the request started with.
type refreshNotifier struct {
	ctx     context.Context
	userID  string
	last    string
	base    oauth2.TokenSource
	service *SpotifyService
}

func (r *refreshNotifier) Token() (*oauth2.Token, error) {
	token, err := r.base.Token()
	if err != nil {
		return nil, err
	}
	if token.AccessToken != r.last {
		r.last = token.AccessToken
		r.service.logger.Debug("refreshed spotify token", "user_id", r.userID)
		if r.service.onRefresh != nil {
			r.service.onRefresh(r.ctx, r.userID, token)
		}
	}
	return token, nil
}

// doRequest performs an authenticated HTTP request to the Spotify API.
func (s *SpotifyService) doRequest(ctx context.Context, id models.Identity, method, endpoint string, body any, result any) error {
	client, err := s.client(ctx, id)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			if revoked(retrieveErr) {
				s.logger.Warn("spotify refresh token rejected", "status", retrieveErr.Response.StatusCode, "error_code", retrieveErr.ErrorCode)
				return fmt.Errorf("%w: spotify account must be re-linked", shared.ErrUnauthorized)
			}
			return upstreamFromOAuth(retrieveErr)
		}
		return fmt.Errorf("%w: %v", shared.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		s.logger.Warn("spotify request failed", "method", method, "endpoint", endpoint, "status", resp.StatusCode)
		return &shared.UpstreamError{Service: "spotify", Status: resp.StatusCode, Body: string(data)}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", shared.ErrUpstream, err)
		}
	}

	return nil
}

// revoked reports whether the accounts service refused a refresh token.
func revoked(err *oauth2.RetrieveError) bool {
	if err.Response == nil {
		return false
	}
	return err.Response.StatusCode == http.StatusBadRequest || err.Response.StatusCode == http.StatusUnauthorized
}

func upstreamFromOAuth(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		return &shared.UpstreamError{
			Service: "spotify accounts",
			Status:  retrieveErr.Response.StatusCode,
			Body:    string(retrieveErr.Body),
		}
	}
	return fmt.Errorf("%w: %v", shared.ErrUpstream, err)
}

// Search finds tracks matching query.
func (s *SpotifyService) Search(ctx context.Context, id models.Identity, query string) ([]models.ExternalTrack, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", shared.ErrInvalidInput)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", fmt.Sprint(searchLimit))

	var response struct {
		Tracks struct {
			Items []SpotifyTrack `json:"items"`
		} `json:"tracks"`
	}
	if err := s.doRequest(ctx, id, http.MethodGet, "/search?"+params.Encode(), nil, &response); err != nil {
		return nil, err
	}

	return normalizeTracks(response.Tracks.Items), nil
}

// Recommendations returns tracks seeded by up to five track ids.
func (s *SpotifyService) Recommendations(ctx context.Context, id models.Identity, seeds []string) ([]models.ExternalTrack, error) {
	var cleaned []string
	for _, seed := range seeds {
		if seed = strings.TrimSpace(seed); seed != "" {
			cleaned = append(cleaned, seed)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("%w: seed tracks are required", shared.ErrInvalidInput)
	}
	if len(cleaned) > maxSeeds {
		return nil, fmt.Errorf("%w: at most %d seed tracks allowed", shared.ErrInvalidInput, maxSeeds)
	}

	params := url.Values{}
	params.Set("seed_tracks", strings.Join(cleaned, ","))
	params.Set("limit", fmt.Sprint(searchLimit))

	var response struct {
		Tracks []SpotifyTrack `json:"tracks"`
	}
	if err := s.doRequest(ctx, id, http.MethodGet, "/recommendations?"+params.Encode(), nil, &response); err != nil {
		return nil, err
	}

	return normalizeTracks(response.Tracks), nil
}

// UserPlaylists retrieves all of the caller's playlists, following pagination.
func (s *SpotifyService) UserPlaylists(ctx context.Context, id models.Identity) ([]models.ExternalPlaylist, error) {
	playlists := []models.ExternalPlaylist{}
	offset := 0

	for {
		endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", playlistLimit, offset)

		var response SpotifyPaginatedPlaylists
		if err := s.doRequest(ctx, id, http.MethodGet, endpoint, nil, &response); err != nil {
			return nil, err
		}

		for _, sp := range response.Items {
			playlists = append(playlists, normalizePlaylist(sp))
		}

		if response.Next == nil || len(response.Items) == 0 {
			break
		}
		offset += playlistLimit
	}

	return playlists, nil
}

// AddTrack appends trackURI to the Spotify playlist.
func (s *SpotifyService) AddTrack(ctx context.Context, id models.Identity, playlistID, trackURI string) error {
	if strings.TrimSpace(playlistID) == "" {
		return fmt.Errorf("%w: playlist id is required", shared.ErrInvalidInput)
	}
	if strings.TrimSpace(trackURI) == "" {
		return fmt.Errorf("%w: track URI is required", shared.ErrInvalidInput)
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	body := map[string][]string{"uris": {trackURI}}
	return s.doRequest(ctx, id, http.MethodPost, endpoint, body, nil)
}

func normalizeTracks(items []SpotifyTrack) []models.ExternalTrack {
	tracks := make([]models.ExternalTrack, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		tracks = append(tracks, normalizeTrack(item))
	}
	return tracks
}

func normalizeTrack(t SpotifyTrack) models.ExternalTrack {
	track := models.ExternalTrack{
		Song: models.Song{
			SpotifyID:  t.ID,
			Title:      t.Name,
			Album:      t.Album.Name,
			Duration:   t.DurationMS,
			PreviewURL: t.PreviewURL,
		},
		Name:    t.Name,
		AlbumID: t.Album.ID,
		URI:     t.URI,
		Artists: make([]models.Artist, 0, len(t.Artists)),
	}

	if len(t.Artists) > 0 {
		track.Artist = t.Artists[0].Name
	}
	for _, a := range t.Artists {
		track.Artists = append(track.Artists, models.Artist{ID: a.ID, Name: a.Name})
	}
	if len(t.Album.Images) > 0 {
		track.AlbumArt = t.Album.Images[0].URL
	}

	return track
}

func normalizePlaylist(sp SpotifySimplePlaylist) models.ExternalPlaylist {
	images := make([]models.Image, 0, len(sp.Images))
	for _, img := range sp.Images {
		images = append(images, models.Image{URL: img.URL, Height: img.Height, Width: img.Width})
	}

	owner := sp.Owner.DisplayName
	if owner == "" {
		owner = sp.Owner.ID
	}

	return models.ExternalPlaylist{
		ID:          sp.ID,
		Name:        sp.Name,
		Description: sp.Description,
		Images:      images,
		TrackCount:  sp.Tracks.Total,
		Owner:       owner,
		URI:         sp.URI,
	}
}
