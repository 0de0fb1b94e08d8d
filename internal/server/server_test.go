package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/setlist/internal/auth"
	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/playlists"
	"github.com/desertthunder/setlist/internal/repositories"
	"github.com/desertthunder/setlist/internal/shared"
	tu "github.com/desertthunder/setlist/internal/testing"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

const testSecret = "test-secret"

// fakeSpotify records the identities it was called with.
type fakeSpotify struct {
	mu       sync.Mutex
	seen     []models.Identity
	seeds    []string
	added    string
	exchange error
	failWith error
}

func (f *fakeSpotify) record(id models.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, id)
	if id.Spotify == nil {
		return fmt.Errorf("%w: spotify account not linked", shared.ErrUnauthorized)
	}
	return f.failWith
}

func (f *fakeSpotify) Search(_ context.Context, id models.Identity, query string) ([]models.ExternalTrack, error) {
	if err := f.record(id); err != nil {
		return nil, err
	}
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", shared.ErrInvalidInput)
	}
	return []models.ExternalTrack{{Song: models.Song{SpotifyID: "t1", Title: query}, Name: query}}, nil
}

func (f *fakeSpotify) Recommendations(_ context.Context, id models.Identity, seeds []string) ([]models.ExternalTrack, error) {
	if err := f.record(id); err != nil {
		return nil, err
	}
	f.seeds = seeds
	return []models.ExternalTrack{}, nil
}

func (f *fakeSpotify) UserPlaylists(_ context.Context, id models.Identity) ([]models.ExternalPlaylist, error) {
	if err := f.record(id); err != nil {
		return nil, err
	}
	return []models.ExternalPlaylist{{ID: "sp-1", Name: "Mix"}}, nil
}

func (f *fakeSpotify) AddTrack(_ context.Context, id models.Identity, playlistID, trackURI string) error {
	if err := f.record(id); err != nil {
		return err
	}
	f.added = playlistID + "|" + trackURI
	return nil
}

func (f *fakeSpotify) Name() string { return "Spotify" }

func (f *fakeSpotify) AuthURL(state string) string {
	return "https://accounts.example/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeSpotify) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	if f.exchange != nil {
		return nil, f.exchange
	}
	return &oauth2.Token{AccessToken: "access-" + code, TokenType: "Bearer", RefreshToken: "refresh", Expiry: time.Now().Add(time.Hour)}, nil
}

type fixture struct {
	server  *Server
	users   *repositories.UserRepository
	tokens  *repositories.TokenRepository
	spotify *fakeSpotify
}

func setup(t *testing.T, withSpotify bool) *fixture {
	t.Helper()

	db := tu.NewTestDB(t)
	logger := shared.NewLogger(io.Discard)

	issuer, err := auth.NewJWTIssuer(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("failed to create issuer: %v", err)
	}

	users := repositories.NewUserRepository(db)
	tokens := repositories.NewTokenRepository(db)
	opts := Options{
		Config: shared.ServerConfig{
			Mode:           shared.ModeDevelopment,
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		Auth:      auth.NewService(users, tokens, auth.NewBcryptHasher(4), issuer, logger),
		Playlists: playlists.NewService(repositories.NewPlaylistRepository(db), users, logger),
		Tokens:    tokens,
		Logger:    logger,
	}

	f := &fixture{users: users, tokens: tokens}
	if withSpotify {
		f.spotify = &fakeSpotify{}
		opts.Spotify = f.spotify
	}
	f.server = New(opts)
	return f
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) register(t *testing.T, username string) auth.Result {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "hunter22",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register returned %d: %s", rec.Code, rec.Body.String())
	}

	var res auth.Result
	decodeBody(t, rec, &res)
	return res
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()

	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode %q: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()

	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	f := setup(t, false)
	rec := f.do(t, http.MethodGet, "/health", "", nil)
	expectStatus(t, rec, http.StatusOK)

	var body map[string]string
	decodeBody(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestAuthRoutes(t *testing.T) {
	f := setup(t, false)

	t.Run("Register", func(t *testing.T) {
		res := f.register(t, "alice")
		if res.Token == "" {
			t.Error("expected a token")
		}
		if res.User.Username != "alice" || res.User.Email != "alice@example.com" {
			t.Errorf("unexpected user %+v", res.User)
		}
	})

	t.Run("Register response hides the password", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
			"username": "bob", "email": "bob@example.com", "password": "hunter22",
		})
		expectStatus(t, rec, http.StatusCreated)
		if strings.Contains(rec.Body.String(), "password") || strings.Contains(rec.Body.String(), "$2a$") {
			t.Errorf("response leaks password data: %s", rec.Body.String())
		}
	})

	t.Run("Duplicate register", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
			"username": "alice", "email": "ALICE@example.com", "password": "hunter22",
		})
		expectStatus(t, rec, http.StatusBadRequest)

		var body errorBody
		decodeBody(t, rec, &body)
		if body.Success {
			t.Error("expected success=false")
		}
	})

	t.Run("Password longer than bcrypt accepts", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
			"username": "dave", "email": "dave@example.com", "password": strings.Repeat("p", 73),
		})
		expectStatus(t, rec, http.StatusBadRequest)

		var body errorBody
		decodeBody(t, rec, &body)
		if body.Detail != "" || !strings.Contains(body.Message, "72") {
			t.Errorf("unexpected body %+v", body)
		}
	})

	t.Run("Malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader("{not json"))
		rec := httptest.NewRecorder()
		f.server.ServeHTTP(rec, req)
		expectStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("Login", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": " Alice@Example.com ", "password": "hunter22",
		})
		expectStatus(t, rec, http.StatusOK)

		var res auth.Result
		decodeBody(t, rec, &res)
		if res.Token == "" || res.User.Username != "alice" {
			t.Errorf("unexpected login result %+v", res)
		}
	})

	t.Run("Login failures look the same", func(t *testing.T) {
		wrong := f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "alice@example.com", "password": "wrong-password",
		})
		unknown := f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "nobody@example.com", "password": "hunter22",
		})

		expectStatus(t, wrong, http.StatusBadRequest)
		expectStatus(t, unknown, http.StatusBadRequest)
		if wrong.Body.String() != unknown.Body.String() {
			t.Errorf("bodies differ: %q vs %q", wrong.Body.String(), unknown.Body.String())
		}
	})

	t.Run("List users", func(t *testing.T) {
		res := f.register(t, "carol")
		rec := f.do(t, http.MethodGet, "/api/auth/users", res.Token, nil)
		expectStatus(t, rec, http.StatusOK)

		var users []models.PublicUser
		decodeBody(t, rec, &users)
		if len(users) != 3 {
			t.Errorf("expected 3 users, got %d", len(users))
		}
	})
}

func TestGuard(t *testing.T) {
	f := setup(t, false)
	res := f.register(t, "alice")
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		UserID: res.User.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   res.User.ID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		UserID: res.User.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   res.User.ID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	unknown, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		UserID: "does-not-exist",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "does-not-exist",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	tc := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic " + res.Token},
		{"no token", "Bearer "},
		{"bad signature", "Bearer " + forged},
		{"expired", "Bearer " + expired},
		{"unknown user", "Bearer " + unknown},
		{"garbage", "Bearer not.a.token"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/playlists", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			f.server.ServeHTTP(rec, req)

			expectStatus(t, rec, http.StatusUnauthorized)
			if got := strings.TrimSpace(rec.Body.String()); got != `{"success":false,"message":"Not authorized"}` {
				t.Errorf("unexpected body %s", got)
			}
		})
	}

	t.Run("Valid token", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/playlists", res.Token, nil)
		expectStatus(t, rec, http.StatusOK)
	})
}

func TestPlaylistRoutes(t *testing.T) {
	f := setup(t, false)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	var created models.Playlist
	t.Run("Create", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/playlists", alice.Token, map[string]any{
			"name": "Road trip", "description": "Long drives", "isPublic": true,
		})
		expectStatus(t, rec, http.StatusCreated)
		decodeBody(t, rec, &created)

		if created.ID == "" || created.OwnerID != alice.User.ID || !created.IsPublic {
			t.Errorf("unexpected playlist %+v", created)
		}
		if created.Songs == nil || len(created.Songs) != 0 {
			t.Errorf("expected empty song list, got %v", created.Songs)
		}
	})

	t.Run("Create requires a name", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/playlists", alice.Token, map[string]any{"description": "no name"})
		expectStatus(t, rec, http.StatusBadRequest)
	})

	path := "/api/playlists/" + created.ID

	t.Run("Get and list", func(t *testing.T) {
		expectStatus(t, f.do(t, http.MethodGet, path, alice.Token, nil), http.StatusOK)

		rec := f.do(t, http.MethodGet, "/api/playlists", alice.Token, nil)
		expectStatus(t, rec, http.StatusOK)
		var list []models.Playlist
		decodeBody(t, rec, &list)
		if len(list) != 1 || list[0].ID != created.ID {
			t.Errorf("unexpected list %+v", list)
		}
	})

	t.Run("Other owners see nothing", func(t *testing.T) {
		expectStatus(t, f.do(t, http.MethodGet, path, bob.Token, nil), http.StatusNotFound)
		expectStatus(t, f.do(t, http.MethodPut, path, bob.Token, map[string]any{"name": "mine"}), http.StatusNotFound)
		expectStatus(t, f.do(t, http.MethodDelete, path, bob.Token, nil), http.StatusNotFound)

		rec := f.do(t, http.MethodGet, "/api/playlists", bob.Token, nil)
		expectStatus(t, rec, http.StatusOK)
		if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
			t.Errorf("expected empty list, got %s", got)
		}
	})

	t.Run("Update", func(t *testing.T) {
		rec := f.do(t, http.MethodPut, path, alice.Token, map[string]any{"name": "Renamed"})
		expectStatus(t, rec, http.StatusOK)

		var updated models.Playlist
		decodeBody(t, rec, &updated)
		if updated.Name != "Renamed" || updated.Description != "Long drives" || !updated.IsPublic {
			t.Errorf("partial update changed unrelated fields: %+v", updated)
		}
	})

	t.Run("Songs", func(t *testing.T) {
		song := map[string]any{"spotifyId": "sp-1", "title": "One", "artist": "A", "album": "X", "duration": 1000}

		expectStatus(t, f.do(t, http.MethodPost, path+"/songs", alice.Token, map[string]any{}), http.StatusBadRequest)
		expectStatus(t, f.do(t, http.MethodPost, path+"/songs", alice.Token, map[string]any{"song": song}), http.StatusOK)
		expectStatus(t, f.do(t, http.MethodPost, path+"/songs", alice.Token, map[string]any{"song": song}), http.StatusBadRequest)

		rec := f.do(t, http.MethodPut, path+"/songs/sp-1", alice.Token, map[string]any{"title": "Uno"})
		expectStatus(t, rec, http.StatusOK)
		var updated models.Playlist
		decodeBody(t, rec, &updated)
		if len(updated.Songs) != 1 || updated.Songs[0].Title != "Uno" || updated.Songs[0].Artist != "A" {
			t.Errorf("unexpected songs %+v", updated.Songs)
		}

		expectStatus(t, f.do(t, http.MethodPut, path+"/songs/missing", alice.Token, map[string]any{"title": "x"}), http.StatusNotFound)
		expectStatus(t, f.do(t, http.MethodDelete, path+"/songs/sp-1", alice.Token, nil), http.StatusOK)
		expectStatus(t, f.do(t, http.MethodDelete, path+"/songs/sp-1", alice.Token, nil), http.StatusNotFound)
	})

	t.Run("Export", func(t *testing.T) {
		song := map[string]any{"spotifyId": "sp-2", "title": "Two", "artist": "B", "album": "Y", "duration": 61000}
		expectStatus(t, f.do(t, http.MethodPost, path+"/songs", alice.Token, map[string]any{"song": song}), http.StatusOK)

		rec := f.do(t, http.MethodGet, path+"/export?format=md", alice.Token, nil)
		expectStatus(t, rec, http.StatusOK)
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
			t.Errorf("unexpected content type %q", ct)
		}
		if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "Renamed.md") {
			t.Errorf("unexpected disposition %q", cd)
		}
		if !strings.Contains(rec.Body.String(), "1. B - Two (Y) [1:01]") {
			t.Errorf("unexpected export %s", rec.Body.String())
		}

		rec = f.do(t, http.MethodGet, path+"/export", alice.Token, nil)
		expectStatus(t, rec, http.StatusOK)
		if !strings.HasPrefix(rec.Body.String(), "Spotify ID,Title") {
			t.Errorf("expected CSV by default, got %s", rec.Body.String())
		}

		expectStatus(t, f.do(t, http.MethodGet, path+"/export?format=pdf", alice.Token, nil), http.StatusBadRequest)
		expectStatus(t, f.do(t, http.MethodGet, path+"/export", bob.Token, nil), http.StatusNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		rec := f.do(t, http.MethodDelete, path, alice.Token, nil)
		expectStatus(t, rec, http.StatusOK)

		var body map[string]string
		decodeBody(t, rec, &body)
		if body["message"] != "Playlist deleted successfully" {
			t.Errorf("unexpected body %v", body)
		}

		expectStatus(t, f.do(t, http.MethodGet, path, alice.Token, nil), http.StatusNotFound)

		user, err := f.users.Get(context.Background(), alice.User.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if user.HasPlaylist(created.ID) {
			t.Error("deleted playlist still referenced by its owner")
		}
	})
}

func TestSpotifyRoutes(t *testing.T) {
	t.Run("Not configured", func(t *testing.T) {
		f := setup(t, false)
		res := f.register(t, "alice")

		rec := f.do(t, http.MethodGet, "/api/spotify/search?q=x", res.Token, nil)
		expectStatus(t, rec, http.StatusServiceUnavailable)

		expectStatus(t, f.do(t, http.MethodGet, "/api/spotify/search?q=x", "", nil), http.StatusUnauthorized)
	})

	f := setup(t, true)
	res := f.register(t, "alice")

	t.Run("Unlinked account", func(t *testing.T) {
		expectStatus(t, f.do(t, http.MethodGet, "/api/spotify/search?q=x", res.Token, nil), http.StatusUnauthorized)
	})

	t.Run("Link with code", func(t *testing.T) {
		expectStatus(t, f.do(t, http.MethodPost, "/api/spotify/token", res.Token, map[string]string{}), http.StatusBadRequest)

		rec := f.do(t, http.MethodPost, "/api/spotify/token", res.Token, map[string]string{"code": "abc"})
		expectStatus(t, rec, http.StatusOK)

		var body tokenResponse
		decodeBody(t, rec, &body)
		if body.AccessToken != "access-abc" || body.TokenType != "Bearer" {
			t.Errorf("unexpected token response %+v", body)
		}

		stored, err := f.tokens.Get(context.Background(), res.User.ID)
		if err != nil || stored.AccessToken != "access-abc" {
			t.Errorf("token not stored: %v %+v", err, stored)
		}
	})

	t.Run("Search", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/spotify/search?q=daft+punk", res.Token, nil)
		expectStatus(t, rec, http.StatusOK)

		var body struct {
			Tracks []models.ExternalTrack `json:"tracks"`
		}
		decodeBody(t, rec, &body)
		if len(body.Tracks) != 1 || body.Tracks[0].Name != "daft punk" {
			t.Errorf("unexpected tracks %+v", body.Tracks)
		}

		last := f.spotify.seen[len(f.spotify.seen)-1]
		if last.UserID != res.User.ID || last.Spotify.AccessToken != "access-abc" {
			t.Errorf("identity not forwarded: %+v", last)
		}

		expectStatus(t, f.do(t, http.MethodGet, "/api/spotify/search", res.Token, nil), http.StatusBadRequest)
	})

	t.Run("Recommendations", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/spotify/recommendations?seed_tracks=a,b", res.Token, nil)
		expectStatus(t, rec, http.StatusOK)
		if strings.Join(f.spotify.seeds, ",") != "a,b" {
			t.Errorf("unexpected seeds %v", f.spotify.seeds)
		}
	})

	t.Run("Playlists and add track", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/spotify/playlists", res.Token, nil)
		expectStatus(t, rec, http.StatusOK)
		if !strings.Contains(rec.Body.String(), `"playlists"`) {
			t.Errorf("unexpected body %s", rec.Body.String())
		}

		rec = f.do(t, http.MethodPost, "/api/spotify/playlists/sp-1/tracks", res.Token, map[string]string{"uri": "spotify:track:1"})
		expectStatus(t, rec, http.StatusOK)
		if f.spotify.added != "sp-1|spotify:track:1" {
			t.Errorf("unexpected add %q", f.spotify.added)
		}
	})

	t.Run("Upstream error", func(t *testing.T) {
		f.spotify.failWith = &shared.UpstreamError{Service: "Spotify", Status: http.StatusBadGateway, Body: "boom"}
		defer func() { f.spotify.failWith = nil }()

		rec := f.do(t, http.MethodGet, "/api/spotify/playlists", res.Token, nil)
		expectStatus(t, rec, http.StatusInternalServerError)

		var body errorBody
		decodeBody(t, rec, &body)
		if body.Success || !strings.Contains(body.Detail, "boom") {
			t.Errorf("expected development detail, got %+v", body)
		}
	})

	t.Run("Unlink", func(t *testing.T) {
		expectStatus(t, f.do(t, http.MethodDelete, "/api/spotify/token", res.Token, nil), http.StatusOK)
		expectStatus(t, f.do(t, http.MethodGet, "/api/spotify/playlists", res.Token, nil), http.StatusUnauthorized)
	})
}

func TestOAuthCallback(t *testing.T) {
	f := setup(t, true)
	res := f.register(t, "alice")

	rec := f.do(t, http.MethodGet, "/api/spotify/auth-url", res.Token, nil)
	expectStatus(t, rec, http.StatusOK)

	var body map[string]string
	decodeBody(t, rec, &body)
	u, err := url.Parse(body["url"])
	if err != nil {
		t.Fatalf("invalid url %q: %v", body["url"], err)
	}
	state := u.Query().Get("state")
	if state == "" {
		t.Fatal("expected state in auth url")
	}

	t.Run("Invalid state", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/callback?state=bogus&code=xyz", "", nil)
		expectStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("Success", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/callback?state="+url.QueryEscape(state)+"&code=xyz", "", nil)
		expectStatus(t, rec, http.StatusOK)
		if !strings.Contains(rec.Body.String(), "Spotify account linked") {
			t.Errorf("unexpected page %s", rec.Body.String())
		}

		stored, err := f.tokens.Get(context.Background(), res.User.ID)
		if err != nil || stored.AccessToken != "access-xyz" {
			t.Errorf("token not stored: %v %+v", err, stored)
		}
	})

	t.Run("State is single use", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/callback?state="+url.QueryEscape(state)+"&code=xyz", "", nil)
		expectStatus(t, rec, http.StatusBadRequest)
	})
}

func TestStateStore(t *testing.T) {
	s := NewStateStore(time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }

	state := s.Issue("user-1")
	if user, ok := s.Consume(state); !ok || user != "user-1" {
		t.Errorf("expected user-1, got %q %v", user, ok)
	}
	if _, ok := s.Consume(state); ok {
		t.Error("state consumed twice")
	}

	stale := s.Issue("user-2")
	now = now.Add(2 * time.Minute)
	if _, ok := s.Consume(stale); ok {
		t.Error("expired state accepted")
	}
}

func TestMiddleware(t *testing.T) {
	f := setup(t, false)

	t.Run("Request id", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/health", "", nil)
		if rec.Header().Get(RequestIDHeader) == "" {
			t.Error("expected a generated request id")
		}

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, "req-123")
		rec = httptest.NewRecorder()
		f.server.ServeHTTP(rec, req)
		if got := rec.Header().Get(RequestIDHeader); got != "req-123" {
			t.Errorf("expected propagated id, got %q", got)
		}
	})

	t.Run("CORS preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/playlists", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
		rec := httptest.NewRecorder()
		f.server.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
			t.Errorf("expected allowed origin, got %q", got)
		}
		if rec.Code >= 300 {
			t.Errorf("preflight returned %d", rec.Code)
		}
	})

	t.Run("CORS rejects unknown origins", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://evil.example")
		rec := httptest.NewRecorder()
		f.server.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("unexpected allowed origin %q", got)
		}
	})

	t.Run("Unknown route", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/nothing", "", nil)
		expectStatus(t, rec, http.StatusNotFound)
		var body errorBody
		decodeBody(t, rec, &body)
		if body.Message != "Route not found" {
			t.Errorf("unexpected body %+v", body)
		}
	})

	t.Run("Recoverer", func(t *testing.T) {
		errs := &responder{logger: shared.NewLogger(io.Discard)}
		router := NewMuxRouter(errs)
		router.Use(Recoverer(errs))
		router.Handle(http.MethodGet, "/panic", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
		expectStatus(t, rec, http.StatusInternalServerError)
	})
}

func TestStatusFor(t *testing.T) {
	tc := []struct {
		err  error
		want int
	}{
		{shared.ErrInvalidInput, http.StatusBadRequest},
		{shared.ErrConflict, http.StatusBadRequest},
		{shared.ErrInvalidCredentials, http.StatusBadRequest},
		{shared.ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("wrapped: %w", shared.ErrNotFound), http.StatusNotFound},
		{shared.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{&shared.UpstreamError{Status: 404}, http.StatusInternalServerError},
		{shared.ErrInternal, http.StatusInternalServerError},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	for _, tt := range tc {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got, _ := statusFor(tt.err); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}

	t.Run("Production hides detail", func(t *testing.T) {
		errs := &responder{logger: shared.NewLogger(io.Discard)}
		rec := httptest.NewRecorder()
		errs.fail(rec, httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("%w: disk on fire", shared.ErrInternal))

		if strings.Contains(rec.Body.String(), "disk on fire") {
			t.Errorf("detail leaked: %s", rec.Body.String())
		}
	})
}
