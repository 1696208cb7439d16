package cli

import (
	"context"

	"github.com/spf13/cobra"

	imgutil "github.com/jmylchreest/colortrack/internal/image"
	"github.com/jmylchreest/colortrack/internal/mcpserver"
	"github.com/jmylchreest/colortrack/internal/security"
	"github.com/jmylchreest/colortrack/internal/version"
)

func newServeCmd(global *globalOptions) *cobra.Command {
	var allowPrivate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve colortrack tools over the Model Context Protocol",
		Long: `Serve colortrack as a Model Context Protocol server on stdin and stdout.

Tools: extract_palette, list_sessions, delete_session, list_favorites,
toggle_favorite and remove_favorite. Remote images on loopback or private
networks are refused unless --allow-private-urls is given.

Logs are written to stderr so they never interleave with the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, global, func(ctx context.Context, a *app) error {
				machine, err := a.startMachine(a.cfg.Extractor())
				if err != nil {
					return err
				}

				loader := imgutil.NewSmartLoader()
				if !allowPrivate {
					loader.WithURLValidator(security.ValidateRemoteURL)
				}

				srv, err := mcpserver.New(mcpserver.Options{
					Machine:   machine,
					History:   a.history,
					Favorites: a.favorites,
					Loader:    loader,
					Version:   version.Short(),
					Logger:    a.logger,
				})
				if err != nil {
					return err
				}
				return srv.ServeStdio()
			})
		},
	}

	cmd.Flags().BoolVar(&allowPrivate, "allow-private-urls", false, "allow fetching images from loopback and private addresses")
	return cmd
}
