// Package cli provides the command-line interface for colortrack.
package cli

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/colortrack/internal/version"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	verbose    bool
	quiet      bool
	configPath string
	dataDir    string
	logLevel   string
}

// NewRootCmd builds the colortrack command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "colortrack",
		Short: "Extract, rank and keep the dominant colours of your photos",
		Long: `colortrack extracts the dominant colours of an image, ranks them by how much
of the picture they cover and keeps a history of every extraction.

Each swatch carries title and body text colours that stay readable on top of
it. Swatches can be saved as favourites, history can be exported as JSON,
xz-compressed JSON or Parquet, and a directory can be watched for new photos.`,
		Version:      version.Short(),
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress non-error output")
	flags.StringVar(&opts.configPath, "config", "", "config file (default: <user config dir>/colortrack/config.yaml)")
	flags.StringVar(&opts.dataDir, "data-dir", "", "directory holding the database and images")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	cmd.SetVersionTemplate(version.String() + "\n")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newExtractCmd(opts))
	cmd.AddCommand(newHistoryCmd(opts))
	cmd.AddCommand(newFavoritesCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newServeCmd(opts))

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print detailed version information including build date, commit hash, and Go version.`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
