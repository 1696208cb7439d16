// Package favorites tracks the user's favourite swatches.
package favorites

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/colortrack/internal/logging"
	"github.com/jmylchreest/colortrack/internal/notify"
	"github.com/jmylchreest/colortrack/internal/store"
	"github.com/jmylchreest/colortrack/internal/swatch"
)

// Service keeps a cached view of the favourites table, refreshed from the
// repository subscription. The cache trails writes by one delivery.
type Service struct {
	repo   *store.FavoriteRepository
	logger hclog.Logger

	// toggleMu serializes membership changes.
	toggleMu sync.Mutex

	mu          sync.RWMutex
	current     []store.Favorite
	broadcaster *notify.Broadcaster[[]store.Favorite]

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService loads the current favourites and starts following changes.
func NewService(ctx context.Context, repo *store.FavoriteRepository, logger hclog.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("favorite repository is required")
	}

	updates, unsubscribe, err := repo.Subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscribe to favorites: %w", err)
	}

	initial := <-updates

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Service{
		repo:        repo,
		logger:      logging.OrNull(logger).Named("favorites"),
		current:     initial,
		broadcaster: notify.NewBroadcaster[[]store.Favorite](),
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	go s.follow(runCtx, updates, unsubscribe)
	return s, nil
}

func (s *Service) follow(ctx context.Context, updates <-chan []store.Favorite, unsubscribe func()) {
	defer close(s.done)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case favorites, ok := <-updates:
			if !ok {
				return
			}
			s.apply(favorites)
		}
	}
}

func (s *Service) apply(favorites []store.Favorite) {
	s.mu.Lock()
	s.current = favorites
	s.mu.Unlock()

	s.logger.Trace("favorites updated", "count", len(favorites))
	s.broadcaster.Publish(favorites)
}

// Close stops following the repository.
func (s *Service) Close() {
	s.cancel()
	<-s.done
	s.broadcaster.Close()
}

// List returns the latest known favourites.
func (s *Service) List() []store.Favorite {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]store.Favorite(nil), s.current...)
}

// Subscribe delivers the favourites list after every change.
func (s *Service) Subscribe() (<-chan []store.Favorite, func()) {
	return s.broadcaster.Subscribe()
}

// IsFavorite reports whether a favourite with exactly the same swatch
// values exists. Two swatches of the same colour from different sessions
// usually differ in population and share, and so are distinct.
func (s *Service) IsFavorite(sw swatch.Swatch) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return containsSwatch(s.current, sw)
}

// IsFavoriteColour reports whether any favourite has the given hex.
func (s *Service) IsFavoriteColour(hex string) bool {
	normalized, err := swatch.NormalizeHex(hex)
	if err != nil {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, fav := range s.current {
		if strings.EqualFold(fav.Hex, normalized) {
			return true
		}
	}
	return false
}

// Add stores sw as a favourite.
func (s *Service) Add(ctx context.Context, sw swatch.Swatch) (store.Favorite, error) {
	s.toggleMu.Lock()
	defer s.toggleMu.Unlock()
	return s.repo.Add(ctx, sw)
}

// Remove deletes every favourite with the given hex.
func (s *Service) Remove(ctx context.Context, hex string) (int64, error) {
	normalized, err := swatch.NormalizeHex(hex)
	if err != nil {
		return 0, err
	}

	s.toggleMu.Lock()
	defer s.toggleMu.Unlock()

	removed, err := s.repo.RemoveByHex(ctx, normalized)
	if err != nil {
		return 0, err
	}
	if removed == 0 {
		return 0, store.ErrFavoriteNotFound
	}
	return removed, nil
}

// Toggle removes sw when it is a favourite and adds it otherwise,
// reporting whether it was added. Membership is read from the table, not
// the cached list, so back-to-back toggles see each other's writes.
func (s *Service) Toggle(ctx context.Context, sw swatch.Swatch) (bool, error) {
	s.toggleMu.Lock()
	defer s.toggleMu.Unlock()

	favorites, err := s.repo.List(ctx)
	if err != nil {
		return false, err
	}

	if containsSwatch(favorites, sw) {
		if _, err := s.repo.RemoveByHex(ctx, sw.Hex); err != nil {
			return false, err
		}
		s.logger.Debug("removed favorite", "hex", sw.Hex)
		return false, nil
	}

	if _, err := s.repo.Add(ctx, sw); err != nil {
		return false, err
	}
	s.logger.Debug("added favorite", "hex", sw.Hex)
	return true, nil
}

func containsSwatch(favorites []store.Favorite, sw swatch.Swatch) bool {
	for _, fav := range favorites {
		if fav.Swatch.Equal(sw) {
			return true
		}
	}
	return false
}
