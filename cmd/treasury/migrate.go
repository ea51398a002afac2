package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xraph/treasury/store/backend"
)

// NewMigrateCommand applies the store schema and exits.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the store schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := backend.Open(ctx, opts.cfg.Store)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			if err := s.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			opts.logger.Info("store migrated", "driver", opts.cfg.Store.Driver)
			return nil
		},
	}
}
