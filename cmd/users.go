package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/setlist/internal/models"
	"github.com/urfave/cli/v3"
)

// UsersList prints every registered user without password data.
func (r *Runner) UsersList(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	st, err := r.openStores(ctx, config)
	if err != nil {
		return err
	}
	defer st.Close(context.WithoutCancel(ctx))

	users, err := st.users.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	public := make([]models.PublicUser, 0, len(users))
	for _, u := range users {
		public = append(public, u.Public())
	}

	if cmd.Bool("json") {
		return r.writeJSON(public, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Users (%d)", len(public)))
	for _, u := range public {
		r.writePlain("%-26s %-20s %-32s %d playlists\n", u.ID, u.Username, u.Email, len(u.Playlists))
	}
	return nil
}
