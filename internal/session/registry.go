package session

import (
	"errors"
	"sort"
	"sync"

	"volo/internal/recording"
)

var (
	// ErrAlreadyActive is returned when a guild already has an active session.
	ErrAlreadyActive = errors.New("recording session already active")
	// ErrNoActiveSession is returned when a guild has no active session.
	ErrNoActiveSession = errors.New("no active recording session")
)

// Registry maps guild ids to their active session. Every operation is atomic
// with respect to the others.
type Registry struct {
	mu     sync.Mutex
	active map[string]*recording.Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]*recording.Session)}
}

// Start registers the session produced by create. create runs under the
// registry lock and is not called when the guild already has a session.
func (r *Registry) Start(guildID string, create func() (*recording.Session, error)) (*recording.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[guildID]; ok {
		return nil, ErrAlreadyActive
	}
	s, err := create()
	if err != nil {
		return nil, err
	}
	r.active[guildID] = s
	return s, nil
}

// Stop removes and returns the guild's session.
func (r *Registry) Stop(guildID string) (*recording.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.active[guildID]
	if !ok {
		return nil, ErrNoActiveSession
	}
	delete(r.active, guildID)
	return s, nil
}

// Get returns the guild's active session.
func (r *Registry) Get(guildID string) (*recording.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.active[guildID]
	return s, ok
}

// Guilds returns the ids of guilds with an active session, sorted.
func (r *Registry) Guilds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.active))
	for id := range r.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
