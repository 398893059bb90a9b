package listing

import (
	"sync"
	"time"
)

// Registry keeps one Session per signed-in session id.
type Registry struct {
	mu       sync.Mutex
	pageSize int
	now      func() time.Time
	sessions map[string]*registryEntry
}

type registryEntry struct {
	session  *Session
	lastUsed time.Time
}

func NewRegistry(pageSize int) *Registry {
	return &Registry{
		pageSize: pageSize,
		now:      time.Now,
		sessions: map[string]*registryEntry{},
	}
}

// Session returns the session for key, creating one on the active view.
func (r *Registry) Session(key string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[key]
	if !ok {
		entry = &registryEntry{session: NewSession(ActiveView, r.pageSize)}
		r.sessions[key] = entry
	}
	entry.lastUsed = r.now()
	return entry.session
}

func (r *Registry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, key)
}

// Prune drops sessions unused since before cutoff and returns how many.
func (r *Registry) Prune(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for key, entry := range r.sessions {
		if entry.lastUsed.Before(cutoff) {
			delete(r.sessions, key)
			removed++
		}
	}
	return removed
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
