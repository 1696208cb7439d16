package session

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/colortrack/internal/logging"
	"github.com/jmylchreest/colortrack/internal/notify"
	"github.com/jmylchreest/colortrack/internal/swatch"
)

// ErrSuperseded is returned by Wait when a later Submit or Reset replaced
// the awaited generation.
var ErrSuperseded = errors.New("superseded by a newer submission")

// Options configures a Machine.
type Options struct {
	Ranker   Ranker
	Recorder Recorder
	Logger   hclog.Logger
	Now      func() time.Time
}

// SubmitOption adjusts a single submission.
type SubmitOption func(*submission)

type submission struct {
	source string
	record bool
}

// WithSource records where the image came from.
func WithSource(path string) SubmitOption {
	return func(s *submission) {
		s.source = path
	}
}

// WithoutRecord skips history persistence for this submission.
func WithoutRecord() SubmitOption {
	return func(s *submission) {
		s.record = false
	}
}

// Machine owns the palette session state. Every change goes through
// update and is published to subscribers in order.
type Machine struct {
	ranker   Ranker
	recorder Recorder
	logger   hclog.Logger
	now      func() time.Time

	mu          sync.Mutex
	state       State
	generation  uint64
	cancelRun   context.CancelFunc
	broadcaster *notify.Broadcaster[State]

	running  sync.WaitGroup
	persists sync.WaitGroup
}

// NewMachine creates a Machine in the Idle state.
func NewMachine(opts Options) *Machine {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	m := &Machine{
		ranker:      opts.Ranker,
		recorder:    opts.Recorder,
		logger:      logging.OrNull(opts.Logger).Named("session"),
		now:         now,
		broadcaster: notify.NewBroadcaster[State](),
	}
	m.state = State{Status: StatusIdle, Swatches: []swatch.Swatch{}, UpdatedAt: now().UTC()}
	return m
}

// State returns a snapshot of the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// Subscribe delivers every later state change. A subscriber holds at most
// one pending state; newer states replace undelivered ones.
func (m *Machine) Subscribe() (<-chan State, func()) {
	return m.broadcaster.Subscribe()
}

// Submit moves the flow to Loading and ranks img in the background. It
// returns the generation of the submission, for use with Wait.
func (m *Machine) Submit(ctx context.Context, img image.Image, opts ...SubmitOption) uint64 {
	sub := submission{record: true}
	for _, opt := range opts {
		opt(&sub)
	}

	runCtx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	if m.cancelRun != nil {
		m.cancelRun()
	}
	m.cancelRun = cancel
	m.generation++
	gen := m.generation
	m.updateLocked(func(s *State) {
		s.Status = StatusLoading
		s.Image = img
		s.ImagePath = sub.source
		s.Error = ""
		s.Generation = gen
	})
	m.running.Add(1)
	m.mu.Unlock()

	m.logger.Debug("submitted image", "generation", gen, "source", sub.source)

	go m.run(runCtx, cancel, gen, img, sub)
	return gen
}

// Reset returns the flow to Idle, dropping the image and swatches and
// abandoning any in-flight ranking. History is not touched.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancelRun != nil {
		m.cancelRun()
		m.cancelRun = nil
	}
	m.generation++
	gen := m.generation
	m.updateLocked(func(s *State) {
		*s = State{Status: StatusIdle, Swatches: []swatch.Swatch{}, Generation: gen}
	})
}

// Wait blocks until the given generation settles. It returns ErrSuperseded
// with the newer state when another Submit or Reset replaced it first.
func (m *Machine) Wait(ctx context.Context, generation uint64) (State, error) {
	updates, cancel := m.Subscribe()
	defer cancel()

	state := m.State()
	for {
		switch {
		case state.Generation > generation:
			return state, ErrSuperseded
		case state.Generation == generation && state.Settled():
			return state, nil
		}

		select {
		case <-ctx.Done():
			return m.State(), ctx.Err()
		case next, ok := <-updates:
			if !ok {
				return m.State(), ErrSuperseded
			}
			state = next
		}
	}
}

// Flush waits for in-flight rankings and history writes to finish.
func (m *Machine) Flush() {
	m.running.Wait()
	m.persists.Wait()
}

// Close abandons in-flight work, waits for it and ends all subscriptions.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.cancelRun != nil {
		m.cancelRun()
		m.cancelRun = nil
	}
	m.mu.Unlock()

	m.Flush()
	m.broadcaster.Close()
}

func (m *Machine) run(ctx context.Context, cancel context.CancelFunc, gen uint64, img image.Image, sub submission) {
	defer m.running.Done()
	defer cancel()

	var (
		swatches []swatch.Swatch
		err      error
	)
	if m.ranker == nil {
		err = errors.New("no ranker configured")
	} else {
		swatches, err = m.ranker.Rank(ctx, img)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.generation {
		m.logger.Debug("discarding stale result", "generation", gen, "current", m.generation)
		return
	}
	m.cancelRun = nil

	if err != nil {
		m.logger.Warn("extraction failed", "generation", gen, "error", err)
		m.updateLocked(func(s *State) {
			s.Status = StatusFailed
			s.Error = errorMessage(err)
		})
		return
	}

	if swatches == nil {
		swatches = []swatch.Swatch{}
	}
	m.updateLocked(func(s *State) {
		s.Status = StatusReady
		s.Swatches = swatches
	})

	if sub.record && m.recorder != nil {
		m.persists.Add(1)
		go m.persist(context.WithoutCancel(ctx), gen, img, append([]swatch.Swatch(nil), swatches...))
	}
}

// persist writes the extraction to history. Failures are logged only.
func (m *Machine) persist(ctx context.Context, gen uint64, img image.Image, swatches []swatch.Swatch) {
	defer m.persists.Done()

	recorded, err := m.recorder.Record(ctx, img, swatches)
	if err != nil {
		m.logger.Error("failed to record session", "generation", gen, "error", err)
		return
	}
	m.logger.Debug("recorded session", "generation", gen, "id", recorded.ID, "image", recorded.ImagePath)
}

// updateLocked is the single apply path for state changes. m.mu must be
// held.
func (m *Machine) updateLocked(apply func(*State)) {
	next := m.state.clone()
	apply(&next)
	next.UpdatedAt = m.now().UTC()
	m.state = next
	m.broadcaster.Publish(next.clone())
}
