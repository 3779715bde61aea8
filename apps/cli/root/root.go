package root

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/zenGate-Global/notification-service/apps/cli/cmd/cliapp"
)

// options are filled from the persistent flags before any subcommand runs.
var options cliapp.Options

// rootCmd is the base command for the notification service admin CLI.
var rootCmd = &cobra.Command{
	Use:           "notify",
	Short:         "Notification service admin CLI",
	Long:          "Administrative utilities for the notification service (platform migrations, tenant onboarding and schema maintenance).",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&options.EnvFile, "env-file", ".env", "Optional dotenv file loaded before reading the environment")
	flags.StringVar(&options.DatabaseURL, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flags.StringVar(&options.LogLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")
}

// Execute runs the CLI.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}
