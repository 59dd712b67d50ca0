// Package main is the entry point for the musophile server.
//
// The main package stays minimal. Its job is to:
// 1. Parse the command line (urfave/cli)
// 2. Load configuration and build the logger
// 3. Hand over to internal/server
//
// COMMANDS:
//
//	musophile serve          run the HTTP server
//	musophile migrate        create or update the database schema, then exit
//	musophile config init    write a starter config.toml
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:    "musophile",
		Usage:   "Personal music library server",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML configuration file (optional)",
				Sources: cli.EnvVars("MUSOPHILE_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			configCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "musophile: %v\n", err)
		os.Exit(1)
	}
}
