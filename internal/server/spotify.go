package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/setlist/internal/repositories"
	"github.com/desertthunder/setlist/internal/services"
	"github.com/desertthunder/setlist/internal/shared"
)

// SpotifyHandler proxies catalog requests and manages the caller's linked Spotify account.
// Every route is guarded and answers 503 when no Spotify client is configured.
type SpotifyHandler struct {
	spotify services.OAuthService
	tokens  repositories.TokenStore
	states  *StateStore
	guard   Middleware
	errs    *responder
}

func (h *SpotifyHandler) Routes() []Route {
	routes := []Route{
		{Method: http.MethodGet, Path: "/api/spotify/search", Handler: http.HandlerFunc(h.search)},
		{Method: http.MethodGet, Path: "/api/spotify/recommendations", Handler: http.HandlerFunc(h.recommendations)},
		{Method: http.MethodGet, Path: "/api/spotify/playlists", Handler: http.HandlerFunc(h.playlists)},
		{Method: http.MethodPost, Path: "/api/spotify/playlists/{id}/tracks", Handler: http.HandlerFunc(h.addTrack)},
		{Method: http.MethodGet, Path: "/api/spotify/auth-url", Handler: http.HandlerFunc(h.authURL)},
		{Method: http.MethodPost, Path: "/api/spotify/token", Handler: http.HandlerFunc(h.saveToken)},
		{Method: http.MethodDelete, Path: "/api/spotify/token", Handler: http.HandlerFunc(h.deleteToken)},
	}
	for i := range routes {
		routes[i].Handler = h.guard(h.available(routes[i].Handler))
	}
	return routes
}

func (h *SpotifyHandler) available(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.spotify == nil {
			h.errs.fail(w, r, fmt.Errorf("%w: spotify is not configured", shared.ErrServiceUnavailable))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *SpotifyHandler) search(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.spotify.Search(r.Context(), IdentityFrom(r.Context()), r.URL.Query().Get("q"))
	if err != nil {
		h.errs.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": tracks})
}

func (h *SpotifyHandler) recommendations(w http.ResponseWriter, r *http.Request) {
	var seeds []string
	if raw := r.URL.Query().Get("seed_tracks"); raw != "" {
		seeds = strings.Split(raw, ",")
	}

	tracks, err := h.spotify.Recommendations(r.Context(), IdentityFrom(r.Context()), seeds)
	if err != nil {
		h.errs.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": tracks})
}

func (h *SpotifyHandler) playlists(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.spotify.UserPlaylists(r.Context(), IdentityFrom(r.Context()))
	if err != nil {
		h.errs.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"playlists": playlists})
}

func (h *SpotifyHandler) addTrack(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URI string `json:"uri"`
	}
	if err := decode(w, r, &body); err != nil {
		h.errs.fail(w, r, err)
		return
	}

	if err := h.spotify.AddTrack(r.Context(), IdentityFrom(r.Context()), pathVar(r, "id"), body.URI); err != nil {
		h.errs.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Track added successfully"})
}

func (h *SpotifyHandler) authURL(w http.ResponseWriter, r *http.Request) {
	state := h.states.Issue(IdentityFrom(r.Context()).UserID)
	writeJSON(w, http.StatusOK, map[string]string{"url": h.spotify.AuthURL(state)})
}

type tokenResponse struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	Expiry      time.Time `json:"expiry"`
}

// saveToken exchanges an authorization code obtained by the client and links the token
// to the caller.
func (h *SpotifyHandler) saveToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if err := decode(w, r, &body); err != nil {
		h.errs.fail(w, r, err)
		return
	}
	if strings.TrimSpace(body.Code) == "" {
		h.errs.fail(w, r, fmt.Errorf("%w: code is required", shared.ErrInvalidInput))
		return
	}

	token, err := h.spotify.Exchange(r.Context(), body.Code)
	if err != nil {
		h.errs.fail(w, r, err)
		return
	}

	id := IdentityFrom(r.Context())
	if err := h.tokens.Save(r.Context(), id.UserID, token); err != nil {
		h.errs.fail(w, r, fmt.Errorf("%w: saving spotify token: %v", shared.ErrInternal, err))
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token.AccessToken,
		TokenType:   token.Type(),
		Expiry:      token.Expiry,
	})
}

func (h *SpotifyHandler) deleteToken(w http.ResponseWriter, r *http.Request) {
	if err := h.tokens.Delete(r.Context(), IdentityFrom(r.Context()).UserID); err != nil {
		h.errs.fail(w, r, fmt.Errorf("%w: deleting spotify token: %v", shared.ErrInternal, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Spotify account unlinked"})
}
