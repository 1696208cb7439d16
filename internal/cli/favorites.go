package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/colortrack/internal/colour"
	"github.com/jmylchreest/colortrack/internal/store"
	"github.com/jmylchreest/colortrack/internal/swatch"
)

func newFavoritesCmd(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "favorites",
		Aliases: []string{"favourites", "fav"},
		Short:   "Manage favourite swatches",
		Long: `Manage favourite swatches.

Swatches are addressed by session id and rank, where rank 1 is the most
dominant colour of the session. Favourites are kept when their session is
deleted.`,
	}

	cmd.AddCommand(newFavoritesListCmd(global))
	cmd.AddCommand(newFavoritesAddCmd(global))
	cmd.AddCommand(newFavoritesRemoveCmd(global))
	cmd.AddCommand(newFavoritesToggleCmd(global))

	return cmd
}

func newFavoritesListCmd(global *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List favourite swatches",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, global, func(ctx context.Context, a *app) error {
				favorites := a.favorites.List()

				out := cmd.OutOrStdout()
				if jsonOutput {
					return writeJSON(out, favorites)
				}
				if len(favorites) == 0 {
					fmt.Fprintln(out, "No favourites saved.")
					return nil
				}

				preview := isTerminal(out)
				headers := []string{"ID", "Hex", "RGB", "Share", "Added"}
				if preview {
					headers = append([]string{"Preview"}, headers...)
				}
				table := NewTable(headers)
				for _, f := range favorites {
					row := []string{
						strconv.FormatInt(f.ID, 10),
						f.Hex,
						colour.FromPacked(f.RGB).String(),
						fmt.Sprintf("%.1f%%", f.Percent()),
						f.CreatedAt.Local().Format("2006-01-02 15:04"),
					}
					if preview {
						row = append([]string{colour.SwatchPreview(f.Swatch, previewWidth)}, row...)
					}
					table.AddRow(row)
				}
				return table.Write(out)
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func newFavoritesAddCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <session> <rank>",
		Short: "Save a session swatch as a favourite",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSessionSwatch(cmd, global, args, func(ctx context.Context, a *app, sw swatch.Swatch) error {
				if _, err := a.favorites.Add(ctx, sw); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s added to favourites.\n", sw.Hex)
				return nil
			})
		},
	}
}

func newFavoritesToggleCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <session> <rank>",
		Short: "Add a session swatch to favourites, or remove it if already saved",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSessionSwatch(cmd, global, args, func(ctx context.Context, a *app, sw swatch.Swatch) error {
				added, err := a.favorites.Toggle(ctx, sw)
				if err != nil {
					return err
				}
				if added {
					fmt.Fprintf(cmd.OutOrStdout(), "%s added to favourites.\n", sw.Hex)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s removed from favourites.\n", sw.Hex)
				}
				return nil
			})
		},
	}
}

func newFavoritesRemoveCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <hex>",
		Aliases: []string{"rm"},
		Short:   "Remove every favourite with the given colour",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hex, err := swatch.NormalizeHex(args[0])
			if err != nil {
				return err
			}

			return withApp(cmd, global, func(ctx context.Context, a *app) error {
				n, err := a.favorites.Remove(ctx, hex)
				if errors.Is(err, store.ErrFavoriteNotFound) {
					return fmt.Errorf("no favourite with colour %s", hex)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d favourite(s) with colour %s removed.\n", n, hex)
				return nil
			})
		},
	}
}

// withSessionSwatch resolves "<session> <rank>" arguments to a swatch.
func withSessionSwatch(cmd *cobra.Command, global *globalOptions, args []string, fn func(ctx context.Context, a *app, sw swatch.Swatch) error) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	rank, err := parseRank(args[1])
	if err != nil {
		return err
	}

	return withApp(cmd, global, func(ctx context.Context, a *app) error {
		s, err := a.history.Get(ctx, id)
		if err != nil {
			return sessionError(id, err)
		}
		sw, err := s.SwatchAt(rank)
		if err != nil {
			return err
		}
		return fn(ctx, a, sw)
	})
}
