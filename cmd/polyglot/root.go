package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tjfontaine/polyglot-llm-wire/internal/pkg/config"
	"github.com/tjfontaine/polyglot-llm-wire/internal/runtime"
	"github.com/tjfontaine/polyglot-llm-wire/internal/telemetry"
)

const appName = "polyglot"

// app carries what every subcommand needs, built once in PersistentPreRunE.
type app struct {
	configPath string
	verbose    bool

	cfg      *config.Config
	logger   *slog.Logger
	engine   *runtime.Engine
	shutdown func(context.Context) error
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           appName,
		Short:         "Transcode LLM chat payloads between provider wire shapes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if a.shutdown == nil {
				return nil
			}
			return a.shutdown(context.Background())
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", config.DefaultPath, "config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newTranscodeCmd(a),
		newAssembleCmd(a),
		newTokensCmd(a),
		newPriceCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.LoadFile(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := parseLevel(cfg.Log.Level)
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(appName, a.logger, telemetry.WithWriter(cmd.ErrOrStderr()))
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		a.shutdown = shutdown
	}

	a.engine, err = runtime.NewFromConfig(cfg, runtime.WithLogger(a.logger))
	return err
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// openInput returns the named file, or stdin for "" and "-".
func openInput(cmd *cobra.Command, args []string) (io.ReadCloser, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, err
	}
	return f, nil
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	r, err := openInput(cmd, args)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
