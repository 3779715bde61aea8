package migratecmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zenGate-Global/notification-service/apps/cli/cmd/cliapp"
	"github.com/zenGate-Global/notification-service/platform/go/persistence"
	"github.com/zenGate-Global/notification-service/platform/go/setups"
)

// Command applies the platform schema migrations (tenant directory, goose version table).
func Command(opts *cliapp.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply platform schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, level, err := cliapp.LoadConfig(*opts)
			if err != nil {
				return err
			}
			logger, err := cliapp.NewLogger(level)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			cfg.MigrateOnStart = true
			stack, err := setups.NewStack(cmd.Context(), cfg, logger, nil)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			defer persistence.ClosePool(stack.Pool)

			fmt.Fprintf(cmd.OutOrStdout(), "Platform schema %q is up to date.\n", stack.Resolver.DefaultSchema())
			return nil
		},
	}
}
