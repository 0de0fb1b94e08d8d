package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/setlist/internal/repositories"
	"github.com/desertthunder/setlist/internal/shared"
)

// stores bundles the persistence backends selected by configuration.
type stores struct {
	users     repositories.UserStore
	playlists repositories.PlaylistStore
	tokens    repositories.TokenStore
	closers   []func(context.Context) error
}

func (s *stores) Close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i](ctx))
	}
	return errors.Join(errs...)
}

// openStores connects the document store named by database.driver and the token store
// named by spotify.token_store. SQLite databases are migrated on open.
func (r *Runner) openStores(ctx context.Context, config *shared.Config) (*stores, error) {
	s := &stores{}

	switch config.Database.Driver {
	case shared.DriverSQLite:
		db, err := openSQLite(config.Database)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func(context.Context) error { return db.Close() })

		s.users = repositories.NewUserRepository(db)
		s.playlists = repositories.NewPlaylistRepository(db)
		s.tokens = repositories.NewTokenRepository(db)
	case shared.DriverMongoDB:
		mongo, err := repositories.NewMongoStores(ctx, config.Database.URI, config.Database.Name)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, mongo.Close)

		s.users = mongo.Users
		s.playlists = mongo.Playlists
		s.tokens = mongo.Tokens
	default:
		return nil, fmt.Errorf("%w: unknown database driver %q", shared.ErrInvalidConfig, config.Database.Driver)
	}

	if config.Spotify.TokenStore == shared.TokenStoreRedis {
		redis, err := repositories.NewRedisTokenStore(ctx, config.Redis.URL)
		if err != nil {
			s.Close(ctx)
			return nil, err
		}
		s.closers = append(s.closers, func(context.Context) error { return redis.Close() })
		s.tokens = redis
	}

	r.logger.Info("stores ready",
		"driver", config.Database.Driver,
		"token_store", config.Spotify.TokenStore,
	)
	return s, nil
}

func openSQLite(cfg shared.DatabaseConfig) (*sql.DB, error) {
	db, err := shared.NewDatabase(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	shared.ConfigureDatabase(db, cfg.MaxOpenConns, cfg.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}
