package main

import (
	"context"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/desertthunder/setlist/internal/shared"
	"github.com/urfave/cli/v3"
)

const masked = "********"

// ConfigInit writes the default configuration file to the --config path.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)
	return r.writePlain("Wrote %s\n", path)
}

// ConfigShow prints the configuration after file, .env and environment are applied.
func (r *Runner) ConfigShow(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	view := *config
	mask(&view.Auth.JWTSecret)
	mask(&view.Credentials.Spotify.ClientSecret)
	mask(&view.Database.URI)
	mask(&view.Redis.URL)

	if err := toml.NewEncoder(r.output).Encode(view); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

func mask(s *string) {
	if *s != "" {
		*s = masked
	}
}
