// Package store persists extraction sessions and favourite colours in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmylchreest/colortrack/internal/swatch"
)

var ErrSessionNotFound = errors.New("session not found")

// Session is one committed extraction: the ranked swatches and the image
// they were taken from.
type Session struct {
	ID        int64           `json:"id"`
	Swatches  []swatch.Swatch `json:"swatches"`
	ImagePath string          `json:"imagePath"`
	CreatedAt time.Time       `json:"createdAt"`
}

// SwatchAt returns the swatch at the given 1-based rank.
func (s Session) SwatchAt(rank int) (swatch.Swatch, error) {
	if rank < 1 || rank > len(s.Swatches) {
		return swatch.Swatch{}, fmt.Errorf("session %d has no swatch at rank %d (has %d)", s.ID, rank, len(s.Swatches))
	}
	return s.Swatches[rank-1], nil
}

type SessionRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSessionRepository(database *sql.DB) *SessionRepository {
	return &SessionRepository{db: database, now: time.Now}
}

// Insert stores a new session. The swatch slice is copied.
func (r *SessionRepository) Insert(ctx context.Context, swatches []swatch.Swatch, imagePath string) (Session, error) {
	if swatches == nil {
		swatches = []swatch.Swatch{}
	}
	encoded, err := json.Marshal(swatches)
	if err != nil {
		return Session{}, fmt.Errorf("encode swatches: %w", err)
	}

	createdAt := r.now().UTC()
	result, err := r.db.ExecContext(
		ctx,
		"INSERT INTO sessions(swatches, image_path, created_at) VALUES (?, ?, ?)",
		string(encoded),
		imagePath,
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return Session{}, fmt.Errorf("read session id: %w", err)
	}

	return Session{
		ID:        id,
		Swatches:  append([]swatch.Swatch(nil), swatches...),
		ImagePath: imagePath,
		CreatedAt: createdAt,
	}, nil
}

func (r *SessionRepository) Get(ctx context.Context, id int64) (Session, error) {
	row := r.db.QueryRowContext(
		ctx,
		"SELECT id, swatches, image_path, created_at FROM sessions WHERE id = ?",
		id,
	)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("get session %d: %w", id, err)
	}
	return session, nil
}

// List returns every session in insertion order.
func (r *SessionRepository) List(ctx context.Context) ([]Session, error) {
	rows, err := r.db.QueryContext(
		ctx,
		"SELECT id, swatches, image_path, created_at FROM sessions ORDER BY id",
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}

	return sessions, nil
}

// ImagePaths returns the image path of every session.
func (r *SessionRepository) ImagePaths(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT image_path FROM sessions ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list session images: %w", err)
	}
	defer rows.Close()

	paths := make([]string, 0)
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scan session image: %w", err)
		}
		paths = append(paths, path)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session images: %w", err)
	}

	return paths, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete session %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read deleted session count: %w", err)
	}
	if rowsAffected == 0 {
		return ErrSessionNotFound
	}

	return nil
}

// Clear deletes every session and reports how many were removed.
func (r *SessionRepository) Clear(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM sessions")
	if err != nil {
		return 0, fmt.Errorf("clear sessions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read cleared session count: %w", err)
	}
	return rowsAffected, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var session Session
	var encoded, createdAt string
	if err := row.Scan(&session.ID, &encoded, &session.ImagePath, &createdAt); err != nil {
		return Session{}, err
	}

	if err := json.Unmarshal([]byte(encoded), &session.Swatches); err != nil {
		return Session{}, fmt.Errorf("decode swatches of session %d: %w", session.ID, err)
	}
	if session.Swatches == nil {
		session.Swatches = []swatch.Swatch{}
	}

	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Session{}, fmt.Errorf("parse created_at of session %d: %w", session.ID, err)
	}
	session.CreatedAt = parsed

	return session, nil
}
