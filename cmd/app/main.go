package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/veleth/ansuz/internal"
	pkgconfig "github.com/veleth/ansuz/pkg/config"
)

func runMode(mode internal.Mode) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		configPath := cmd.String("config")

		cfg := internal.NewDefaultConfig()
		if err := pkgconfig.Load(configPath, cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}

		opts := []internal.Option{
			internal.WithConfig(cfg),
			internal.WithMode(mode),
		}

		if err := internal.Run(ctx, opts...); err != nil {
			return fmt.Errorf("app run error: %w", err)
		}

		return nil
	}
}

func main() {
	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("ANSUZ_CONFIG_FILE"),
	}

	cmd := &cli.Command{
		Name:  "ansuz",
		Usage: "Extract flashcards from Markdown notes and sync them to Anki over AnkiConnect",
		Flags: []cli.Flag{configFlag},
		// Bare invocation performs one sync pass.
		Action: runMode(internal.ModeSync),
		Commands: []*cli.Command{
			{
				Name:   "sync",
				Usage:  "Run one synchronization pass and exit",
				Flags:  []cli.Flag{configFlag},
				Action: runMode(internal.ModeSync),
			},
			{
				Name:   "serve",
				Usage:  "Run the HTTP control API and vault watcher",
				Flags:  []cli.Flag{configFlag},
				Action: runMode(internal.ModeServe),
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Flags:  []cli.Flag{configFlag},
				Action: runMode(internal.ModeMCP),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
