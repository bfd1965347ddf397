package game

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"quizrally/internal/domain"
)

// Registry is the process-wide table of live sessions keyed by PIN. Its lock
// guards only the map; session mutations happen under each session's own
// lock, so a busy game never blocks lookups for unrelated games.
type Registry struct {
	alloc *PinAllocator
	grace time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(alloc *PinAllocator, retireGrace time.Duration) *Registry {
	return &Registry{
		alloc:    alloc,
		grace:    retireGrace,
		sessions: make(map[string]*Session),
	}
}

// Create allocates a PIN and installs a waiting session. Allocation and
// insert share the registry lock, so concurrent creates cannot be handed the
// same PIN and a Get never observes a half-built session.
func (r *Registry) Create(quiz domain.Quiz, hostID string, deps SessionDeps) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pin, err := r.alloc.Allocate(func(pin string) bool {
		_, taken := r.sessions[pin]
		return taken
	})
	if err != nil {
		return nil, err
	}
	session := newSession(uuid.NewString(), pin, quiz, hostID, deps)
	r.sessions[pin] = session
	return session, nil
}

func (r *Registry) Get(pin string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[pin]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Retire schedules removal of a finished session after the grace period,
// which keeps the final leaderboard readable briefly before the PIN is freed.
func (r *Registry) Retire(pin string) {
	r.mu.RLock()
	session, ok := r.sessions[pin]
	r.mu.RUnlock()
	if !ok || session.Status() != domain.StatusFinished {
		return
	}
	time.AfterFunc(r.grace, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if current, ok := r.sessions[pin]; ok && current == session {
			delete(r.sessions, pin)
		}
	})
}
