package history

import (
	"context"

	"github.com/jmylchreest/colortrack/internal/store"
)

// Selection is the session currently opened for detail viewing.
type Selection struct {
	Session *store.Session
	Open    bool
}

// Select loads the session and opens it for viewing.
func (s *Service) Select(ctx context.Context, id int64) (store.Session, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return store.Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = Selection{Session: &session, Open: true}
	return session, nil
}

// Dismiss closes the detail view.
func (s *Service) Dismiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = Selection{}
}

// Selection returns the current selection.
func (s *Service) Selection() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selection.Session == nil {
		return Selection{}
	}
	session := *s.selection.Session
	return Selection{Session: &session, Open: s.selection.Open}
}
