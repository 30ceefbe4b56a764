// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles setup operations for the database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write a starter config.toml",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Path for the config file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// libraryCommand handles local library operations
func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "library",
		Aliases: []string{"lib"},
		Usage:   "Local music library operations",
		Commands: []*cli.Command{
			{
				Name:  "scan",
				Usage: "Walk the music directory and register new files",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dir",
						Usage: "Directory to scan (defaults to library.music_dir)",
					},
				},
				Action: r.LibraryScan,
			},
			{
				Name:  "list",
				Usage: "List tracked tracks",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.StringFlag{
						Name:  "tag",
						Usage: "Only tracks carrying this tag",
					},
					&cli.IntFlag{
						Name:  "min-rating",
						Usage: "Only tracks rated at or above this value",
					},
				},
				Action: r.LibraryList,
			},
			{
				Name:  "export",
				Usage: "Write the library listing to a file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "Export format: json, csv, markdown, txt",
						Value: "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path",
					},
				},
				Action: r.LibraryExport,
			},
		},
	}
}

// syncCommand handles metadata sync passes between the database and tag containers
func syncCommand(r *Runner) *cli.Command {
	trackFlag := &cli.StringSliceFlag{
		Name:  "track",
		Usage: "Limit the pass to specific track IDs (repeatable)",
	}
	jsonFlag := &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	}

	return &cli.Command{
		Name:  "sync",
		Usage: "Sync judgments between the database and file tags",
		Commands: []*cli.Command{
			{
				Name:   "export",
				Usage:  "Write database judgments into file tag containers",
				Flags:  []cli.Flag{trackFlag, jsonFlag},
				Action: r.SyncExport,
			},
			{
				Name:  "import",
				Usage: "Read changed file tags back into the database",
				Flags: []cli.Flag{
					trackFlag,
					jsonFlag,
					&cli.BoolFlag{
						Name:  "full",
						Usage: "Re-read every tracked file, ignoring change detection",
					},
				},
				Action: r.SyncImport,
			},
			{
				Name:   "status",
				Usage:  "Show pending work and the last sync time",
				Flags:  []cli.Flag{jsonFlag},
				Action: r.SyncStatus,
			},
		},
	}
}

// tagCommand handles user tag curation
func tagCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tag",
		Usage: "Manage your tags on a track",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Add a tag to a track",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "track-id"},
					&cli.StringArg{Name: "label"},
				},
				Action: r.TagAdd,
			},
			{
				Name:    "remove",
				Aliases: []string{"rm"},
				Usage:   "Remove one of your tags from a track",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "track-id"},
					&cli.StringArg{Name: "label"},
				},
				Action: r.TagRemove,
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List all tags on a track with their sources",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "track-id"},
				},
				Action: r.TagList,
			},
		},
	}
}

// noteCommand handles the user's note on a track
func noteCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "note",
		Usage: "Manage your note on a track",
		Commands: []*cli.Command{
			{
				Name:  "set",
				Usage: "Set or replace your note",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "track-id"},
					&cli.StringArg{Name: "body"},
				},
				Action: r.NoteSet,
			},
			{
				Name:  "show",
				Usage: "Show notes on a track",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "track-id"},
				},
				Action: r.NoteShow,
			},
			{
				Name:  "clear",
				Usage: "Delete your note",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "track-id"},
				},
				Action: r.NoteClear,
			},
		},
	}
}

// rateCommand handles the user's rating on a track
func rateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "rate",
		Usage: "Manage your rating on a track",
		Commands: []*cli.Command{
			{
				Name:  "set",
				Usage: "Rate a track from 0 to 100",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "track-id"},
					&cli.StringArg{Name: "value"},
				},
				Action: r.RateSet,
			},
			{
				Name:  "clear",
				Usage: "Remove your rating",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "track-id"},
				},
				Action: r.RateClear,
			},
		},
	}
}
