package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/colortrack/internal/history"
	"github.com/jmylchreest/colortrack/internal/store"
)

func newHistoryCmd(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"sessions"},
		Short:   "Browse and manage recorded extraction sessions",
		Long: `Browse and manage recorded extraction sessions.

Every successful extraction is recorded together with a PNG copy of the
image it was taken from. Sessions can be listed, inspected, deleted,
exported and re-imported.`,
	}

	cmd.AddCommand(newHistoryListCmd(global))
	cmd.AddCommand(newHistoryShowCmd(global))
	cmd.AddCommand(newHistoryDeleteCmd(global))
	cmd.AddCommand(newHistoryClearCmd(global))
	cmd.AddCommand(newHistoryPruneCmd(global))
	cmd.AddCommand(newHistoryExportCmd(global))
	cmd.AddCommand(newHistoryImportCmd(global))

	return cmd
}

func newHistoryListCmd(global *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recorded sessions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, global, func(ctx context.Context, a *app) error {
				sessions, err := a.history.List(ctx)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if jsonOutput {
					return writeJSON(out, sessions)
				}
				if len(sessions) == 0 {
					fmt.Fprintln(out, "No sessions recorded.")
					return nil
				}
				return sessionTable(sessions).Write(out)
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func sessionTable(sessions []store.Session) *Table {
	table := NewTable([]string{"ID", "Created", "Swatches", "Dominant", "Image"})
	table.SetColumnMaxWidth(4, 60)
	for _, s := range sessions {
		dominant := "-"
		if len(s.Swatches) > 0 {
			dominant = s.Swatches[0].Hex
		}
		table.AddRow([]string{
			strconv.FormatInt(s.ID, 10),
			s.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			strconv.Itoa(len(s.Swatches)),
			dominant,
			s.ImagePath,
		})
	}
	return table
}

func newHistoryShowCmd(global *globalOptions) *cobra.Command {
	var (
		format  string
		preview bool
	)

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show the swatches of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := validateSwatchFormat(format); err != nil {
				return err
			}

			return withApp(cmd, global, func(ctx context.Context, a *app) error {
				s, err := a.history.Select(ctx, id)
				if err != nil {
					return sessionError(id, err)
				}
				defer a.history.Dismiss()

				out := cmd.OutOrStdout()
				if format == formatJSON {
					return writeJSON(out, s)
				}
				fmt.Fprintf(out, "Session %d, recorded %s\n", s.ID, s.CreatedAt.Local().Format("2006-01-02 15:04:05"))
				fmt.Fprintf(out, "Image: %s\n\n", s.ImagePath)
				return writeSwatches(out, s.Swatches, format, preview || isTerminal(out))
			})
		},
	}

	addFormatFlag(cmd.Flags(), &format, formatTable)
	cmd.Flags().BoolVar(&preview, "preview", false, "always show colour previews")
	return cmd
}

func newHistoryDeleteCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a session",
		Long: `Delete a session. Its image file is removed too unless delete_images is
disabled in the configuration. Favourites are never affected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			return withApp(cmd, global, func(ctx context.Context, a *app) error {
				if err := a.history.Delete(ctx, id); err != nil {
					return sessionError(id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Session %d deleted.\n", id)
				return nil
			})
		},
	}
}

func newHistoryClearCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, global, func(ctx context.Context, a *app) error {
				n, err := a.history.Clear(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d session(s) deleted.\n", n)
				return nil
			})
		},
	}
}

func newHistoryPruneCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove image files no session refers to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, global, func(ctx context.Context, a *app) error {
				removed, err := a.history.Prune(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, path := range removed {
					a.logger.Debug("pruned image", "path", path)
				}
				fmt.Fprintf(out, "%d orphaned image(s) removed from %s.\n", len(removed), a.history.ImageDir())
				return nil
			})
		},
	}
}

func newHistoryExportCmd(global *globalOptions) *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every session",
		Long: `Export every session as JSON, xz-compressed JSON or Parquet (one row per
swatch). The format defaults to the one implied by the output file name.

Examples:
  colortrack history export > history.json
  colortrack history export -o history.json.xz
  colortrack history export -o swatches.parquet`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := exportFormat(format, output)
			if err != nil {
				return err
			}

			return withApp(cmd, global, func(ctx context.Context, a *app) error {
				if output == "" || output == "-" {
					return a.history.Export(ctx, cmd.OutOrStdout(), f)
				}

				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				if err := a.history.Export(ctx, file, f); err != nil {
					file.Close()
					return err
				}
				if err := file.Close(); err != nil {
					return fmt.Errorf("close export file: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported history to %s (%s)\n", output, f)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "export format (json, json.xz, parquet)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func exportFormat(name, output string) (history.Format, error) {
	if name != "" {
		return history.ParseFormat(name)
	}
	if output == "" || output == "-" {
		return history.FormatJSON, nil
	}
	return history.FormatFromPath(output), nil
}

func newHistoryImportCmd(global *globalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import sessions from a JSON export",
		Long: `Import sessions from a json or json.xz export. Imported sessions are
recorded as new sessions that refer to the exported image paths.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			f, err := exportFormat(format, path)
			if err != nil {
				return err
			}

			return withApp(cmd, global, func(ctx context.Context, a *app) error {
				var r io.Reader = cmd.InOrStdin()
				if path != "-" {
					file, err := os.Open(path)
					if err != nil {
						return fmt.Errorf("open import file: %w", err)
					}
					defer file.Close()
					r = file
				}

				n, err := a.history.Import(ctx, r, f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d session(s) imported.\n", n)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "import format (json, json.xz)")
	return cmd
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid session id: %s", arg)
	}
	return id, nil
}

func parseRank(arg string) (int, error) {
	rank, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || rank < 1 {
		return 0, fmt.Errorf("invalid swatch rank: %s (ranks start at 1)", arg)
	}
	return rank, nil
}

func sessionError(id int64, err error) error {
	if errors.Is(err, store.ErrSessionNotFound) {
		return fmt.Errorf("session %d not found", id)
	}
	return err
}
