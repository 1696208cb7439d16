package watch

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmylchreest/colortrack/internal/session"
)

type countingSubmitter struct {
	mu    sync.Mutex
	count uint64
}

func newCountingSubmitter() *countingSubmitter {
	return &countingSubmitter{}
}

func (c *countingSubmitter) Submit(context.Context, image.Image, ...session.SubmitOption) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	return c.count
}

func writePNGAtomic(t *testing.T, dir, name string) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	partial := filepath.Join(dir, name+".partial")
	if err := os.WriteFile(partial, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	final := filepath.Join(dir, name)
	if err := os.Rename(partial, final); err != nil {
		t.Fatal(err)
	}
	return final
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Options{Dir: t.TempDir()}); err == nil {
		t.Error("New() accepted missing submitter")
	}
	if _, err := New(Options{Dir: filepath.Join(t.TempDir(), "missing"), Submitter: newCountingSubmitter()}); err == nil {
		t.Error("New() accepted missing directory")
	}

	file := filepath.Join(t.TempDir(), "file.png")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(Options{Dir: file, Submitter: newCountingSubmitter()}); err == nil {
		t.Error("New() accepted a file")
	}
}

func TestWatcherSubmitsNewImages(t *testing.T) {
	dir := t.TempDir()
	submitted := make(chan string, 16)

	w, err := New(Options{
		Dir:       dir,
		Submitter: newCountingSubmitter(),
		Debounce:  20 * time.Millisecond,
		OnSubmit: func(path string, _ uint64) {
			submitted <- path
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}
	want := writePNGAtomic(t, dir, "photo.png")

	select {
	case got := <-submitted:
		if got != want {
			t.Errorf("submitted %q, want %q", got, want)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for submission")
	}
}

func TestWatcherSkipsUndecodableImages(t *testing.T) {
	dir := t.TempDir()
	submitted := make(chan string, 16)

	w, err := New(Options{
		Dir:       dir,
		Submitter: newCountingSubmitter(),
		Debounce:  20 * time.Millisecond,
		OnSubmit: func(path string, _ uint64) {
			submitted <- path
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "broken.png"), []byte("not a png"), 0o644); err != nil {
		t.Fatal(err)
	}
	good := writePNGAtomic(t, dir, "good.png")

	select {
	case got := <-submitted:
		if got != good {
			t.Errorf("submitted %q, want only %q", got, good)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for submission")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	w, err := New(Options{Dir: t.TempDir(), Submitter: newCountingSubmitter()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestScheduleAfterTimerFired(t *testing.T) {
	w, err := New(Options{Dir: t.TempDir(), Submitter: newCountingSubmitter(), Debounce: time.Millisecond})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer w.stopTimers()

	path := filepath.Join(w.dir, "a.png")
	w.schedule(path)

	// Hold the lock past the deadline so the first callback fires and waits.
	w.mu.Lock()
	time.Sleep(50 * time.Millisecond)
	w.debounce = time.Hour
	w.scheduleLocked(path)
	w.mu.Unlock()

	select {
	case got := <-w.ready:
		if got != path {
			t.Errorf("ready = %s, want %s", got, path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first timer never delivered")
	}

	w.mu.Lock()
	pending := len(w.timers)
	w.mu.Unlock()
	if pending != 1 {
		t.Errorf("pending timers = %d, want 1", pending)
	}

	select {
	case got := <-w.ready:
		t.Errorf("unexpected second delivery of %s", got)
	case <-time.After(50 * time.Millisecond):
	}
}
