// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
		Sources: cli.EnvVars("YTAUDIO_CONFIG"),
	}
}

func serverFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Base URL of a running ytaudio server (defaults to the configured listen address)",
		Sources: cli.EnvVars("YTAUDIO_SERVER"),
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	}
}

// serveCommand runs the HTTP service and its conversion workers
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Start the conversion server",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Serve,
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Initialize database and run migrations",
		Flags:  []cli.Flag{configFlag()},
		Action: r.SetupDatabase,
	}
}

func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the configuration file",
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Write the default configuration file",
				Flags:  []cli.Flag{configFlag()},
				Action: r.ConfigInit,
			},
			{
				Name:   "show",
				Usage:  "Print the effective configuration as TOML",
				Flags:  []cli.Flag{configFlag()},
				Action: r.ConfigShow,
			},
		},
	}
}

func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply or revert database migrations",
		Commands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "Apply pending migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.MigrateUp,
			},
			{
				Name:   "rollback",
				Usage:  "Revert the most recent migration",
				Flags:  []cli.Flag{configFlag()},
				Action: r.MigrateRollback,
			},
			{
				Name:   "status",
				Usage:  "List migrations and when they were applied",
				Flags:  []cli.Flag{configFlag()},
				Action: r.MigrateStatus,
			},
		},
	}
}

func convertCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "convert",
		Usage: "Submit a source URL for conversion",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "url",
			},
		},
		Flags: []cli.Flag{
			configFlag(),
			serverFlag(),
			jsonFlag(),
			&cli.BoolFlag{
				Name:    "wait",
				Aliases: []string{"w"},
				Usage:   "Poll until the job finishes",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Polling interval used with --wait",
				Value: 2 * time.Second,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Give up waiting after this long (0 waits forever)",
			},
		},
		Action: r.Convert,
	}
}

func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the phase of a job",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "filename",
			},
		},
		Flags:  []cli.Flag{configFlag(), serverFlag(), jsonFlag()},
		Action: r.Status,
	}
}

func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "library",
		Aliases: []string{"ls"},
		Usage:   "List converted audio",
		Flags: []cli.Flag{
			configFlag(),
			serverFlag(),
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: table, json, csv, markdown, txt",
				Value:   "table",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the export to this file instead of stdout",
			},
		},
		Action: r.Library,
	}
}

func fetchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Download converted audio",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "filename",
			},
		},
		Flags: []cli.Flag{
			configFlag(),
			serverFlag(),
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Destination path (defaults to the filename)",
			},
		},
		Action: r.Fetch,
	}
}

func healthCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "health",
		Usage:  "Check a running server",
		Flags:  []cli.Flag{configFlag(), serverFlag(), jsonFlag()},
		Action: r.Health,
	}
}
