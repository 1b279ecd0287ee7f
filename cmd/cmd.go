// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// runCommand executes and follows evaluation runs
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Execute evaluation runs and follow their progress",
		Commands: []*cli.Command{
			{
				Name:      "exec",
				Usage:     "Execute a run and show its live progress",
				ArgsUsage: "<runId>",
				Arguments: []cli.Argument{&cli.StringArg{Name: "runId"}},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "url",
						Usage: "Execute endpoint (defaults to the configured backend execute path)",
					},
					&cli.BoolFlag{
						Name:  "plain",
						Usage: "Print progress lines instead of the terminal view",
					},
				},
				Action: r.RunExec,
			},
			{
				Name:      "watch",
				Usage:     "Follow the live progress of a run that is already executing",
				ArgsUsage: "<runId>",
				Arguments: []cli.Argument{&cli.StringArg{Name: "runId"}},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "plain",
						Usage: "Print progress lines instead of the terminal view",
					},
				},
				Action: r.RunWatch,
			},
			{
				Name:      "status",
				Usage:     "Show the current progress of a run",
				ArgsUsage: "<runId>",
				Arguments: []cli.Argument{&cli.StringArg{Name: "runId"}},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.RunStatus,
			},
			{
				Name:      "poll",
				Usage:     "Follow a run over REST until it finishes",
				ArgsUsage: "<runId>",
				Arguments: []cli.Argument{&cli.StringArg{Name: "runId"}},
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "Time between requests (defaults to presenter.poll_interval_ms)",
					},
				},
				Action: r.RunPoll,
			},
		},
	}
}

// progressCommand inspects the progress server's tracked runs
func progressCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "progress",
		Usage: "Inspect tracked runs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List every tracked run",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.ProgressList,
			},
			{
				Name:  "stats",
				Usage: "Show run counts by status",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.ProgressStats,
			},
			{
				Name:  "export",
				Usage: "Export a report of every tracked run",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Report format: csv, md, txt",
						Value:   "txt",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (defaults to runs_report.{ext})",
					},
				},
				Action: r.ProgressExport,
			},
		},
	}
}

// serveCommand starts the progress server
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the progress server with its STOMP broker and demo executor",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (overrides server.host)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port (overrides server.port)",
			},
		},
		Action: r.Serve,
	}
}

// tokenCommand handles the backend token
func tokenCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Backend token operations",
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Report whether the configured token is present and valid",
				Action: r.TokenStatus,
			},
			{
				Name:   "open",
				Usage:  "Open the token management page in a browser",
				Action: r.TokenOpen,
			},
		},
	}
}

// apiCommand provides direct backend API access
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct backend API access",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Make a GET request",
				ArgsUsage: "<path>",
				Arguments: []cli.Argument{&cli.StringArg{Name: "path"}},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output compact JSON",
					},
				},
				Action: r.APIGet,
			},
			{
				Name:      "post",
				Usage:     "Make a POST request",
				ArgsUsage: "<path>",
				Arguments: []cli.Argument{&cli.StringArg{Name: "path"}},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "data",
						Usage: "JSON request body",
						Value: "{}",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output compact JSON",
					},
				},
				Action: r.APIPost,
			},
		},
	}
}
