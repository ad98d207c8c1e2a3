package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"discosync/internal/shared"
)

func main() {
	godotenv.Load()
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	for _, path := range []string{filepath.Join(shared.ConfigDir(), "config.toml"), "config.toml"} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		loaded, err := shared.LoadConfig(path)
		if err != nil {
			logger.Warn("skipping unreadable config", "path", path, "err", err)
			continue
		}
		config = loaded
		break
	}

	runner := NewRunner(RunnerOpts{
		Config:   config,
		Logger:   logger,
		EnvToken: os.Getenv("DISCOGS_TOKEN"),
	})
	defer runner.Close()

	if err := newApp(runner, logger).Run(context.Background(), os.Args); err != nil {
		if exitErr, ok := err.(cli.ExitCoder); ok {
			if msg := exitErr.Error(); msg != "" {
				logger.Error(msg)
			}
			os.Exit(exitErr.ExitCode())
		}
		logger.Fatalf("application error: %v", err)
	}
}

// newApp assembles the root command. The no-op ExitErrHandler keeps exit
// codes surfacing as ExitCoder errors from Run instead of terminating in
// place, so deferred cleanup in main still runs.
func newApp(runner *Runner, logger *log.Logger) *cli.Command {
	return &cli.Command{
		Name:    "discosync",
		Usage:   "Reconcile a local record list with a Discogs wantlist and collection",
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to the TOML config file",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("verbose") {
				shared.SetLogLevel(logger, log.DebugLevel)
			}
			if path := cmd.String("config"); path != "" {
				config, err := shared.LoadConfig(path)
				if err != nil {
					return ctx, cli.Exit(err.Error(), 2)
				}
				runner.config = config
				runner.threshold = config.Sync.Threshold
			}
			return ctx, nil
		},
		Commands: runner.register(),
	}
}
