// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// serveCommand starts the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (overrides config and PORT)",
			},
		},
		Action: r.Serve,
	}
}

// setupCommand handles database setup and migrations.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Database setup commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create the config file if needed, then run migrations (sqlite3) or create indexes (mongodb)",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent SQLite migration",
				Action: r.SetupRollback,
			},
			{
				Name:  "status",
				Usage: "Show applied SQLite migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.SetupStatus,
			},
		},
	}
}

// configCommand manages the configuration file.
func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration file commands",
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Write the default configuration file",
				Action: r.ConfigInit,
			},
			{
				Name:   "show",
				Usage:  "Print the resolved configuration with secrets masked",
				Action: r.ConfigShow,
			},
		},
	}
}

// usersCommand inspects registered users.
func usersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "User account commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List registered users",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.UsersList,
			},
		},
	}
}
