package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JBRUL254/apexnurse/models"
)

var (
	ErrNotFound  = errors.New("session: not found")
	ErrForbidden = errors.New("session: owned by another user")
)

// Registry owns the live sessions of this process, keyed by UUID. Each
// session is exclusively owned by the user that started it; there is no
// cross-session shared state beyond the map itself.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	idleTTL  time.Duration
}

func NewRegistry(idleTTL time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		idleTTL:  idleTTL,
	}
}

// Start creates a session over an already-normalized question list.
func (r *Registry) Start(userID, paper, series string, questions []models.Question) (*Session, error) {
	s, err := New(uuid.NewString(), userID, paper, series, questions)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s, nil
}

// Get returns the caller's session or fails with ErrNotFound/ErrForbidden.
func (r *Registry) Get(id, userID string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if s.UserID != userID {
		return nil, ErrForbidden
	}
	return s, nil
}

// Finish seals the session, removes it from the registry, and returns the
// summary for persistence and display.
func (r *Registry) Finish(id, userID string) (models.SessionSummary, error) {
	s, err := r.Get(id, userID)
	if err != nil {
		return models.SessionSummary{}, err
	}
	summary, err := s.Finish()
	if err != nil {
		return models.SessionSummary{}, err
	}
	r.remove(id)
	return summary, nil
}

// Exit discards the session without producing a summary. Distinct from
// Finish: nothing is handed to the performance store.
func (r *Registry) Exit(id, userID string) error {
	if _, err := r.Get(id, userID); err != nil {
		return err
	}
	r.remove(id)
	return nil
}

// Sweep drops sessions idle past the TTL. Abandoned sessions carry no
// cleanup obligation beyond releasing the reference.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	dropped := 0
	for id, s := range r.sessions {
		if now.Sub(s.IdleSince()) > r.idleTTL {
			delete(r.sessions, id)
			dropped++
		}
	}
	return dropped
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}
