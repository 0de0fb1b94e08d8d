package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/setlist/internal/repositories"
	"github.com/desertthunder/setlist/internal/services"
	"github.com/desertthunder/setlist/internal/shared"
)

const stateTTL = 10 * time.Minute

type pendingState struct {
	userID  string
	expires time.Time
}

// StateStore tracks OAuth state tokens issued to users.
//
// A state can be consumed once, and only before it expires.
type StateStore struct {
	ttl    time.Duration
	now    func() time.Time
	mu     sync.Mutex
	states map[string]pendingState
}

// NewStateStore creates a store whose states live for ttl.
func NewStateStore(ttl time.Duration) *StateStore {
	return &StateStore{ttl: ttl, now: time.Now, states: make(map[string]pendingState)}
}

// Issue returns a fresh state tied to userID.
func (s *StateStore) Issue(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, p := range s.states {
		if now.After(p.expires) {
			delete(s.states, k)
		}
	}

	state := shared.GenerateID()
	s.states[state] = pendingState{userID: userID, expires: now.Add(s.ttl)}
	return state
}

// Consume returns the user a state was issued to and forgets it.
func (s *StateStore) Consume(state string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.states[state]
	if !ok {
		return "", false
	}
	delete(s.states, state)
	if s.now().After(p.expires) {
		return "", false
	}
	return p.userID, true
}

// OAuthHandler completes the Spotify authorization code flow started from
// GET /api/spotify/auth-url. The state parameter identifies the user the token is saved for.
type OAuthHandler struct {
	spotify services.OAuthService
	tokens  repositories.TokenStore
	states  *StateStore
	logger  *log.Logger
}

func (h *OAuthHandler) Routes() []Route {
	return []Route{{Method: http.MethodGet, Path: "/callback", Handler: h}}
}

// ServeHTTP validates the state, exchanges the code and stores the resulting token.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.spotify == nil {
		http.Error(w, "Spotify is not configured", http.StatusServiceUnavailable)
		return
	}

	query := r.URL.Query()
	userID, ok := h.states.Consume(query.Get("state"))
	if !ok {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		h.logger.Warn("spotify authorization failed", "user_id", userID,
			"error", query.Get("error"), "description", query.Get("error_description"))
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	token, err := h.spotify.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("spotify token exchange failed", "user_id", userID, "error", err)
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}

	if err := h.tokens.Save(r.Context(), userID, token); err != nil {
		h.logger.Error("failed to save spotify token", "user_id", userID, "error", err)
		http.Error(w, "Failed to save token", http.StatusInternalServerError)
		return
	}

	h.logger.Info("linked spotify account", "user_id", userID)

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, successPage)
}

const successPage = `<!DOCTYPE html>
<html>
<head>
    <title>Spotify Linked</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Spotify account linked</h1>
        <p>You can close this window and return to setlist.</p>
    </div>
</body>
</html>
`
