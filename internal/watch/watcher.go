// Package watch submits images dropped into a directory to a palette
// session.
package watch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"

	imgutil "github.com/jmylchreest/colortrack/internal/image"
	"github.com/jmylchreest/colortrack/internal/logging"
	"github.com/jmylchreest/colortrack/internal/session"
)

// DefaultDebounce is how long a path must stay quiet before it is loaded.
const DefaultDebounce = 250 * time.Millisecond

// Submitter accepts decoded images. *session.Machine implements it.
type Submitter interface {
	Submit(ctx context.Context, img image.Image, opts ...session.SubmitOption) uint64
}

// Options configures a Watcher.
type Options struct {
	Dir       string
	Loader    imgutil.Loader
	Submitter Submitter
	Debounce  time.Duration
	Logger    hclog.Logger

	// OnSubmit is called after each submission.
	OnSubmit func(path string, generation uint64)
}

// Watcher follows one directory.
type Watcher struct {
	dir      string
	loader   imgutil.Loader
	submit   Submitter
	debounce time.Duration
	logger   hclog.Logger
	onSubmit func(string, uint64)

	mu     sync.Mutex
	timers map[string]*time.Timer
	ready  chan string
	done   chan struct{}
}

// New validates opts and creates a Watcher.
func New(opts Options) (*Watcher, error) {
	if opts.Submitter == nil {
		return nil, errors.New("submitter is required")
	}

	info, err := os.Stat(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", opts.Dir)
	}

	loader := opts.Loader
	if loader == nil {
		loader = imgutil.NewFileLoader()
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Watcher{
		dir:      opts.Dir,
		loader:   loader,
		submit:   opts.Submitter,
		debounce: debounce,
		logger:   logging.OrNull(opts.Logger).Named("watch"),
		onSubmit: opts.OnSubmit,
		timers:   make(map[string]*time.Timer),
		ready:    make(chan string, 16),
		done:     make(chan struct{}),
	}, nil
}

// Run watches until ctx is cancelled. A Watcher runs once.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.done)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	defer w.stopTimers()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching directory", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !imgutil.IsImageFile(event.Name) {
				continue
			}
			w.schedule(event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		case path := <-w.ready:
			w.handle(ctx, path)
		}
	}
}

// schedule (re)starts the quiet period for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.scheduleLocked(path)
}

// scheduleLocked requires w.mu. A timer that already fired cannot be
// re-armed, its callback still delivers once, so a fresh timer replaces it.
func (w *Watcher) scheduleLocked(path string) {
	if timer, ok := w.timers[path]; ok && timer.Stop() {
		timer.Reset(w.debounce)
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		if w.timers[path] == timer {
			delete(w.timers, path)
		}
		w.mu.Unlock()

		select {
		case w.ready <- path:
		case <-w.done:
		}
	})
	w.timers[path] = timer
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) handle(ctx context.Context, path string) {
	img, err := w.loader.Load(ctx, path)
	if err != nil {
		w.logger.Warn("skipping unreadable image", "path", path, "error", err)
		return
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	gen := w.submit.Submit(ctx, img, session.WithSource(abs))
	w.logger.Debug("submitted image", "path", abs, "generation", gen)
	if w.onSubmit != nil {
		w.onSubmit(abs, gen)
	}
}
