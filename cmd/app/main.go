package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/headless/internal"
	pkgconfig "github.com/starford/headless/pkg/config"
)

type runFunc func(ctx context.Context, opts ...internal.Option) error

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadWithDefaults(cmd.String("config"), "", cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func action(run runFunc, extra func(*cli.Command) []internal.Option) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		opts := []internal.Option{
			internal.WithConfig(cfg),
		}
		if extra != nil {
			opts = append(opts, extra(cmd)...)
		}

		if err := run(ctx, opts...); err != nil {
			return fmt.Errorf("app run error: %w", err)
		}
		return nil
	}
}

func main() {
	serve := action(internal.Run, nil)

	cmd := &cli.Command{
		Name:   "headless",
		Usage:  "Headless content server: normalized content graphs with tag-invalidated response caching",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API and watch the vault (default)",
				Action: serve,
			},
			{
				Name:  "sync",
				Usage: "Index the vault once and exit",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "clear-cache",
						Usage: "Drop every cached response before syncing",
					},
				},
				Action: action(internal.RunSync, func(cmd *cli.Command) []internal.Option {
					return []internal.Option{internal.WithClearCache(cmd.Bool("clear-cache"))}
				}),
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: action(internal.RunMCP, nil),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
