package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/setlist/internal/auth"
	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/playlists"
	"github.com/desertthunder/setlist/internal/repositories"
	"github.com/desertthunder/setlist/internal/services"
	"github.com/desertthunder/setlist/internal/shared"
)

const shutdownTimeout = 5 * time.Second

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, authentication, CORS, rate limiting, etc.
type Middleware func(http.Handler) http.Handler

// Route is one method and path pattern served by a [Handler].
type Route struct {
	Method  string
	Path    string
	Handler http.Handler
}

// Handler defines the interface for groups of related endpoints (auth, playlists, spotify).
type Handler interface {
	Routes() []Route // Routes returns the routes this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
// Implementations register handlers, apply middleware, and configure the HTTP server.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers every route of a Handler
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// IdentityResolver turns a bearer token into the caller's identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (models.Identity, error)
}

// Authenticator is the account API used by [AuthHandler].
type Authenticator interface {
	IdentityResolver
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Result, error)
	Login(ctx context.Context, in auth.LoginInput) (*auth.Result, error)
	ListUsers(ctx context.Context, id models.Identity) ([]models.PublicUser, error)
}

// PlaylistService is the playlist API used by [PlaylistHandler].
type PlaylistService interface {
	Create(ctx context.Context, id models.Identity, in playlists.CreateInput) (*models.Playlist, error)
	ListOwned(ctx context.Context, id models.Identity) ([]*models.Playlist, error)
	Get(ctx context.Context, id models.Identity, playlistID string) (*models.Playlist, error)
	Update(ctx context.Context, id models.Identity, playlistID string, u models.PlaylistUpdate) (*models.Playlist, error)
	Delete(ctx context.Context, id models.Identity, playlistID string) error
	AddSong(ctx context.Context, id models.Identity, playlistID string, song models.Song) (*models.Playlist, error)
	UpdateSong(ctx context.Context, id models.Identity, playlistID, songID string, u models.SongUpdate) (*models.Playlist, error)
	RemoveSong(ctx context.Context, id models.Identity, playlistID, songID string) (*models.Playlist, error)
}

// Options holds the dependencies of a [Server].
//
// Spotify may be nil when no client credentials are configured; the catalog routes then
// answer 503.
type Options struct {
	Config    shared.ServerConfig
	Auth      Authenticator
	Playlists PlaylistService
	Spotify   services.OAuthService
	Tokens    repositories.TokenStore
	Logger    *log.Logger
}

// Server is the setlist HTTP API.
type Server struct {
	config shared.ServerConfig
	router Router
	logger *log.Logger
	http   *http.Server
}

// New wires every route and middleware into a router.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	errs := &responder{logger: logger, development: opts.Config.Development()}
	guard := Guard(opts.Auth, logger)

	router := NewMuxRouter(errs)
	router.Use(
		Recoverer(errs),
		RequestLogger(logger),
		CORS(opts.Config.AllowedOrigins),
	)

	router.Handler(&HealthHandler{})
	router.Handler(&AuthHandler{auth: opts.Auth, guard: guard, errs: errs})
	router.Handler(&PlaylistHandler{playlists: opts.Playlists, guard: guard, errs: errs})

	states := NewStateStore(stateTTL)
	router.Handler(&SpotifyHandler{
		spotify: opts.Spotify,
		tokens:  opts.Tokens,
		states:  states,
		guard:   guard,
		errs:    errs,
	})
	router.Handler(&OAuthHandler{
		spotify: opts.Spotify,
		tokens:  opts.Tokens,
		states:  states,
		logger:  logger,
	})

	return &Server{
		config: opts.Config,
		router: router,
		logger: logger,
	}
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run listens on the configured address until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.http = &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.http.Addr, "mode", s.config.Mode)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
