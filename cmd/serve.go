package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/setlist/internal/auth"
	"github.com/desertthunder/setlist/internal/playlists"
	"github.com/desertthunder/setlist/internal/server"
	"github.com/desertthunder/setlist/internal/services"
	"github.com/desertthunder/setlist/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const closeTimeout = 5 * time.Second

// Serve wires the stores, services and HTTP server, then runs until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if port := cmd.Int("port"); port > 0 {
		config.Server.Port = int(port)
	}
	if err := config.Validate(); err != nil {
		return err
	}

	logger := shared.NewServiceLogger(config.Log)
	r.logger = logger

	st, err := r.openStores(ctx, config)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			logger.Warn("failed to close stores", "error", err)
		}
	}()

	issuer, err := auth.NewJWTIssuer(config.Auth.JWTSecret, config.Auth.TokenTTL)
	if err != nil {
		return err
	}

	authService := auth.NewService(st.users, st.tokens, auth.NewBcryptHasher(config.Auth.BcryptCost), issuer,
		shared.WithLogger(logger, "service", "auth"))
	playlistService := playlists.NewService(st.playlists, st.users,
		shared.WithLogger(logger, "service", "playlists"))

	spotify, err := r.spotifyService(config, st)
	if err != nil {
		return err
	}

	srv := server.New(server.Options{
		Config:    config.Server,
		Auth:      authService,
		Playlists: playlistService,
		Spotify:   spotify,
		Tokens:    st.tokens,
		Logger:    logger,
	})

	return srv.Run(ctx)
}

// spotifyService returns nil when no client credentials are configured.
func (r *Runner) spotifyService(config *shared.Config, st *stores) (services.OAuthService, error) {
	creds := config.Credentials.Spotify
	if !creds.Configured() {
		r.logger.Warn("spotify credentials not configured, catalog routes disabled")
		return nil, nil
	}

	svc, err := services.NewSpotifyService(creds.Map(),
		services.WithHTTPClient(&http.Client{Timeout: creds.Timeout}),
		services.WithRateLimit(creds.RateLimit),
		services.WithLogger(shared.WithLogger(r.logger, "service", "spotify")),
		services.WithTokenRefresh(func(ctx context.Context, userID string, token *oauth2.Token) {
			if err := st.tokens.Save(context.WithoutCancel(ctx), userID, token); err != nil {
				r.logger.Warn("failed to persist refreshed spotify token", "user_id", userID, "error", err)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create spotify service: %w", err)
	}
	return svc, nil
}
