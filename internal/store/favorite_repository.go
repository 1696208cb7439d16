package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/colortrack/internal/logging"
	"github.com/jmylchreest/colortrack/internal/notify"
	"github.com/jmylchreest/colortrack/internal/swatch"
)

var ErrFavoriteNotFound = errors.New("favorite not found")

// Favorite is a saved swatch. Membership compares the embedded swatch.
type Favorite struct {
	ID int64 `json:"id"`
	swatch.Swatch
	CreatedAt time.Time `json:"createdAt"`
}

// FavoriteRepository stores favourites and publishes the full list to
// subscribers after every successful write.
type FavoriteRepository struct {
	db     *sql.DB
	now    func() time.Time
	logger hclog.Logger

	// mu orders writes with their publications and with new subscriptions.
	mu          sync.Mutex
	broadcaster *notify.Broadcaster[[]Favorite]
}

func NewFavoriteRepository(database *sql.DB) *FavoriteRepository {
	return &FavoriteRepository{
		db:          database,
		now:         time.Now,
		logger:      hclog.NewNullLogger(),
		broadcaster: notify.NewBroadcaster[[]Favorite](),
	}
}

// WithLogger sets the logger used for subscription refresh failures.
func (r *FavoriteRepository) WithLogger(logger hclog.Logger) *FavoriteRepository {
	r.logger = logging.OrNull(logger).Named("favorites")
	return r
}

func (r *FavoriteRepository) List(ctx context.Context) ([]Favorite, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, rgb, hex, population, share, title_text_color, body_text_color, created_at
		 FROM favorites ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	favorites := make([]Favorite, 0)
	for rows.Next() {
		var fav Favorite
		var rgb, title, body int64
		var createdAt string
		if err := rows.Scan(&fav.ID, &rgb, &fav.Hex, &fav.Population, &fav.Share, &title, &body, &createdAt); err != nil {
			return nil, fmt.Errorf("scan favorite row: %w", err)
		}
		fav.RGB = uint32(rgb)
		fav.TitleTextColor = uint32(title)
		fav.BodyTextColor = uint32(body)

		parsed, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at of favorite %d: %w", fav.ID, err)
		}
		fav.CreatedAt = parsed
		favorites = append(favorites, fav)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate favorite rows: %w", err)
	}

	return favorites, nil
}

// Add stores sw as a favourite. Duplicates are not rejected.
func (r *FavoriteRepository) Add(ctx context.Context, sw swatch.Swatch) (Favorite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	createdAt := r.now().UTC()
	result, err := r.db.ExecContext(
		ctx,
		`INSERT INTO favorites(rgb, hex, population, share, title_text_color, body_text_color, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		int64(sw.RGB),
		sw.Hex,
		sw.Population,
		sw.Share,
		int64(sw.TitleTextColor),
		int64(sw.BodyTextColor),
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Favorite{}, fmt.Errorf("insert favorite: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return Favorite{}, fmt.Errorf("read favorite id: %w", err)
	}

	r.publishLocked(ctx)

	return Favorite{ID: id, Swatch: sw, CreatedAt: createdAt}, nil
}

// RemoveByHex deletes every favourite with the given hex and reports how
// many rows were removed. The hex is matched case-insensitively.
func (r *FavoriteRepository) RemoveByHex(ctx context.Context, hex string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result, err := r.db.ExecContext(ctx, "DELETE FROM favorites WHERE hex = ?", strings.ToUpper(strings.TrimSpace(hex)))
	if err != nil {
		return 0, fmt.Errorf("delete favorite %s: %w", hex, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read deleted favorite count: %w", err)
	}

	if rowsAffected > 0 {
		r.publishLocked(ctx)
	}

	return rowsAffected, nil
}

// Subscribe returns a channel carrying the current favourites list followed
// by the list after every later write.
func (r *FavoriteRepository) Subscribe(ctx context.Context) (<-chan []Favorite, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.List(ctx)
	if err != nil {
		return nil, nil, err
	}

	ch, cancel := r.broadcaster.SubscribeWith(current)
	return ch, cancel, nil
}

// Close ends every subscription.
func (r *FavoriteRepository) Close() {
	r.broadcaster.Close()
}

// publishLocked sends the current list to subscribers. The write has
// already committed, so a failed refresh is logged and skipped.
func (r *FavoriteRepository) publishLocked(ctx context.Context) {
	favorites, err := r.List(ctx)
	if err != nil {
		r.logger.Warn("failed to refresh favorites", "error", err)
		return
	}
	r.broadcaster.Publish(favorites)
}
