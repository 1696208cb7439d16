package cli

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	imgutil "github.com/jmylchreest/colortrack/internal/image"
	"github.com/jmylchreest/colortrack/internal/security"
	"github.com/jmylchreest/colortrack/internal/session"
	"github.com/jmylchreest/colortrack/internal/watch"
)

func newWatchCmd(global *globalOptions) *cobra.Command {
	var (
		debounce time.Duration
		format   string
		noSave   bool
	)

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Extract colours from images as they appear in a directory",
		Long: `Watch a directory and extract the colours of every image written to it.

When images arrive faster than they can be processed only the newest one
is reported. Press Ctrl+C to stop.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateSwatchFormat(format); err != nil {
				return err
			}

			return withApp(cmd, global, func(ctx context.Context, a *app) error {
				// Recorded images land in the image directory and would be
				// extracted again.
				if security.WithinDir(args[0], a.history.ImageDir()) == nil {
					return fmt.Errorf("cannot watch the history image directory %s", a.history.ImageDir())
				}

				machine, err := a.startMachine(a.cfg.Extractor())
				if err != nil {
					return err
				}

				var submitter watch.Submitter = machine
				if noSave {
					submitter = unrecordedSubmitter{machine}
				}

				reporter := &watchReporter{
					out:     cmd.OutOrStdout(),
					format:  format,
					preview: isTerminal(cmd.OutOrStdout()),
					machine: machine,
				}

				w, err := watch.New(watch.Options{
					Dir:       args[0],
					Loader:    imgutil.NewFileLoader(),
					Submitter: submitter,
					Debounce:  debounce,
					Logger:    a.logger,
					OnSubmit: func(path string, generation uint64) {
						reporter.follow(ctx, path, generation)
					},
				})
				if err != nil {
					return err
				}

				err = w.Run(ctx)
				reporter.wait()
				return err
			})
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before a changed file is loaded")
	addFormatFlag(cmd.Flags(), &format, formatHex)
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not record sessions in history")
	return cmd
}

// unrecordedSubmitter submits without recording history.
type unrecordedSubmitter struct {
	machine *session.Machine
}

func (s unrecordedSubmitter) Submit(ctx context.Context, img image.Image, opts ...session.SubmitOption) uint64 {
	return s.machine.Submit(ctx, img, append(opts, session.WithoutRecord())...)
}

// watchReporter prints the settled state of each submission.
type watchReporter struct {
	out     io.Writer
	format  string
	preview bool
	machine *session.Machine

	mu sync.Mutex
	wg sync.WaitGroup
}

func (r *watchReporter) follow(ctx context.Context, path string, generation uint64) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		state, err := r.machine.Wait(ctx, generation)
		if errors.Is(err, session.ErrSuperseded) || errors.Is(err, context.Canceled) {
			return
		}

		r.mu.Lock()
		defer r.mu.Unlock()

		if err != nil {
			fmt.Fprintf(r.out, "%s: %v\n", path, err)
			return
		}
		if state.Status == session.StatusFailed {
			fmt.Fprintf(r.out, "%s: %s\n", path, state.Error)
			return
		}
		fmt.Fprintf(r.out, "%s:\n", path)
		if err := writeSwatches(r.out, state.Swatches, r.format, r.preview); err != nil {
			fmt.Fprintf(r.out, "%s: %v\n", path, err)
		}
	}()
}

func (r *watchReporter) wait() {
	r.wg.Wait()
}
