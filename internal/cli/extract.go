package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/colortrack/internal/colour"
	imgutil "github.com/jmylchreest/colortrack/internal/image"
	"github.com/jmylchreest/colortrack/internal/session"
)

type extractOptions struct {
	colours   int
	algorithm string
	format    string
	preview   bool
	noPreview bool
	noSave    bool
}

func newExtractCmd(global *globalOptions) *cobra.Command {
	opts := &extractOptions{}

	cmd := &cobra.Command{
		Use:   "extract <image>",
		Short: "Extract and rank the dominant colours of an image",
		Long: `Extract the dominant colours of an image and rank them by the share of the
picture they cover.

The image is recorded in history together with its swatches unless
--no-save is given. When stdout is a terminal each swatch is previewed as a
coloured block labelled in its title text colour.

Supported image formats: JPEG, PNG, GIF, WebP, BMP, TIFF, AVIF

Examples:
  # Extract 16 colours (default) from an image
  colortrack extract photo.jpg

  # Extract 8 colours and print a table
  colortrack extract --colours 8 --format table photo.png

  # Extract colours as JSON without recording history
  colortrack extract --format json --no-save photo.jpg

  # Extract from a URL with the quantize algorithm
  colortrack extract -a quantize https://example.com/photo.jpg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, global, opts, args[0])
		},
	}

	cmd.Flags().IntVarP(&opts.colours, "colours", "c", 0, "number of colours to extract (1-256, default from config)")
	cmd.Flags().StringVarP(&opts.algorithm, "algorithm", "a", "", "extraction algorithm (kmeans, quantize)")
	addFormatFlag(cmd.Flags(), &opts.format, formatHex)
	cmd.Flags().BoolVar(&opts.preview, "preview", false, "always show colour previews")
	cmd.Flags().BoolVar(&opts.noPreview, "no-preview", false, "never show colour previews")
	cmd.Flags().BoolVar(&opts.noSave, "no-save", false, "do not record the session in history")

	return cmd
}

func runExtract(cmd *cobra.Command, global *globalOptions, opts *extractOptions, source string) error {
	if err := validateSwatchFormat(opts.format); err != nil {
		return err
	}
	if !imgutil.IsURL(source) {
		if err := imgutil.ValidateImagePath(source); err != nil {
			return fmt.Errorf("invalid image path: %w", err)
		}
	}

	return withApp(cmd, global, func(ctx context.Context, a *app) error {
		extractor := a.cfg.Extractor()
		if opts.colours != 0 {
			extractor.ColorCount = opts.colours
		}
		if opts.algorithm != "" {
			extractor.Algorithm = colour.Algorithm(opts.algorithm)
		}
		machine, err := a.startMachine(extractor)
		if err != nil {
			return err
		}

		a.logger.Debug("loading image", "source", source)
		img, err := imgutil.NewSmartLoader().Load(ctx, source)
		if err != nil {
			return fmt.Errorf("failed to load image: %w", err)
		}
		bounds := img.Bounds()
		a.logger.Debug("image loaded", "width", bounds.Dx(), "height", bounds.Dy())

		submitOpts := []session.SubmitOption{session.WithSource(source)}
		if opts.noSave {
			submitOpts = append(submitOpts, session.WithoutRecord())
		}

		state, err := machine.Wait(ctx, machine.Submit(ctx, img, submitOpts...))
		if err != nil {
			return err
		}
		if state.Status == session.StatusFailed {
			return fmt.Errorf("failed to extract colours: %s", state.Error)
		}
		a.logger.Debug("extracted swatches", "count", len(state.Swatches), "algorithm", extractor.Algorithm)

		out := cmd.OutOrStdout()
		preview := opts.preview || (!opts.noPreview && opts.format != formatJSON && isTerminal(out))
		return writeSwatches(out, state.Swatches, opts.format, preview)
	})
}
