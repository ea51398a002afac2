package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	treasury "github.com/xraph/treasury"
	"github.com/xraph/treasury/internal/config"
	"github.com/xraph/treasury/store/backend"
)

// Set by the linker.
var version = "dev"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool

	cfg    config.Config
	logger *slog.Logger
}

// NewRootCommand creates the treasury command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "treasury",
		Short:         "Account ledger with audit trail and analytics",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			opts.logger, err = newLogger(cmd.ErrOrStderr(), cfg.LogLevel, opts.Verbose)
			return err
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewAnalyzeCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

func newLogger(w io.Writer, level string, verbose bool) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log_level %q: %w", level, err)
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// openEngine opens the configured store and builds an engine over it. The
// caller owns the store through the engine.
func (o *RootOptions) openEngine(ctx context.Context, extra ...treasury.Option) (*treasury.Treasury, error) {
	s, err := backend.Open(ctx, o.cfg.Store)
	if err != nil {
		return nil, err
	}
	opts := append(o.cfg.EngineOptions(), treasury.WithLogger(o.logger))
	return treasury.New(s, append(opts, extra...)...), nil
}

// NewVersionCommand prints the build version.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// The version needs no config.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "treasury", version)
			return err
		},
	}
}
