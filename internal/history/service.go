// Package history records extraction sessions together with a copy of
// the source image, and manages their lifetime.
package history

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	imgutil "github.com/jmylchreest/colortrack/internal/image"
	"github.com/jmylchreest/colortrack/internal/logging"
	"github.com/jmylchreest/colortrack/internal/security"
	"github.com/jmylchreest/colortrack/internal/store"
	"github.com/jmylchreest/colortrack/internal/swatch"
)

// maxNameAttempts bounds the search for a free image file name.
const maxNameAttempts = 1000

// Options configures a Service.
type Options struct {
	Sessions *store.SessionRepository

	// ImageDir receives one PNG per recorded session.
	ImageDir string

	// DeleteImages removes a session's image when the session is deleted.
	DeleteImages bool

	Logger hclog.Logger
	Now    func() time.Time
}

// Service is the history of extraction sessions.
type Service struct {
	sessions     *store.SessionRepository
	imageDir     string
	deleteImages bool
	logger       hclog.Logger
	now          func() time.Time

	// mu guards the browsing selection.
	mu        sync.Mutex
	selection Selection
}

// NewService creates a history Service.
func NewService(opts Options) (*Service, error) {
	if opts.Sessions == nil {
		return nil, errors.New("session repository is required")
	}
	if opts.ImageDir == "" {
		return nil, errors.New("image directory is required")
	}

	imageDir, err := filepath.Abs(opts.ImageDir)
	if err != nil {
		return nil, fmt.Errorf("resolve image directory: %w", err)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		sessions:     opts.Sessions,
		imageDir:     imageDir,
		deleteImages: opts.DeleteImages,
		logger:       logging.OrNull(opts.Logger).Named("history"),
		now:          now,
	}, nil
}

// ImageDir returns the absolute image directory.
func (s *Service) ImageDir() string {
	return s.imageDir
}

// Record writes img to the image directory and stores a session
// referencing it.
func (s *Service) Record(ctx context.Context, img image.Image, swatches []swatch.Swatch) (store.Session, error) {
	if img == nil {
		return store.Session{}, errors.New("image cannot be nil")
	}

	path, err := s.writeImage(img)
	if err != nil {
		return store.Session{}, err
	}

	session, err := s.sessions.Insert(ctx, swatches, path)
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			s.logger.Warn("failed to remove image after insert error", "path", path, "error", rmErr)
		}
		return store.Session{}, err
	}

	s.logger.Debug("recorded session", "id", session.ID, "image", path, "swatches", len(swatches))
	return session, nil
}

func (s *Service) writeImage(img image.Image) (string, error) {
	if err := os.MkdirAll(s.imageDir, 0o755); err != nil {
		return "", fmt.Errorf("create image directory: %w", err)
	}

	stamp := s.now().UnixMilli()
	for attempt := range maxNameAttempts {
		name := fmt.Sprintf("swatch_%d.png", stamp)
		if attempt > 0 {
			name = fmt.Sprintf("swatch_%d_%d.png", stamp, attempt)
		}
		path := filepath.Join(s.imageDir, name)

		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) // #nosec G304 - path is built inside the image directory
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create image file: %w", err)
		}

		encodeErr := png.Encode(file, img)
		closeErr := file.Close()
		if encodeErr != nil || closeErr != nil {
			_ = os.Remove(path)
			return "", fmt.Errorf("write image file: %w", errors.Join(encodeErr, closeErr))
		}
		return path, nil
	}

	return "", fmt.Errorf("no free image file name for timestamp %d", stamp)
}

// List returns every session in insertion order.
func (s *Service) List(ctx context.Context) ([]store.Session, error) {
	return s.sessions.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (store.Session, error) {
	return s.sessions.Get(ctx, id)
}

// Delete removes a session and, when enabled, its image file.
func (s *Service) Delete(ctx context.Context, id int64) error {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.sessions.Delete(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	if s.selection.Session != nil && s.selection.Session.ID == id {
		s.selection = Selection{}
	}
	s.mu.Unlock()

	if s.deleteImages {
		s.removeImage(session.ImagePath)
	}
	return nil
}

// Clear removes every session and reports how many were deleted.
func (s *Service) Clear(ctx context.Context) (int64, error) {
	paths, err := s.sessions.ImagePaths(ctx)
	if err != nil {
		return 0, err
	}

	removed, err := s.sessions.Clear(ctx)
	if err != nil {
		return 0, err
	}

	s.Dismiss()

	if s.deleteImages {
		for _, path := range paths {
			s.removeImage(path)
		}
	}
	return removed, nil
}

// Prune deletes image files in the image directory that no session
// references, returning the removed paths.
func (s *Service) Prune(ctx context.Context) ([]string, error) {
	referenced, err := s.sessions.ImagePaths(ctx)
	if err != nil {
		return nil, err
	}
	keep := make(map[string]struct{}, len(referenced))
	for _, path := range referenced {
		keep[filepath.Clean(path)] = struct{}{}
	}

	entries, err := os.ReadDir(s.imageDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read image directory: %w", err)
	}

	removed := make([]string, 0)
	for _, entry := range entries {
		if entry.IsDir() || !imgutil.IsImageFile(entry.Name()) {
			continue
		}
		path := filepath.Join(s.imageDir, entry.Name())
		if _, ok := keep[path]; ok {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("remove orphan image %s: %w", path, err)
		}
		removed = append(removed, path)
	}

	s.logger.Debug("pruned orphan images", "count", len(removed))
	return removed, nil
}

// removeImage deletes a session image. Files outside the image directory
// are left alone and a missing file is not an error.
func (s *Service) removeImage(path string) {
	if path == "" {
		return
	}
	if err := security.WithinDir(path, s.imageDir); err != nil {
		s.logger.Debug("keeping image outside image directory", "path", path)
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove session image", "path", path, "error", err)
	}
}
