// Package session holds per-guild playback sessions: current track, pending
// queue, filler markers and skip votes, keyed by guild id.
package session

import (
	"slices"
	"sync"
)

// Registry maps guild ids to their live session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Get returns the live session for a guild.
func (r *Registry) Get(guildID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[guildID]
	return s, ok
}

// CreateOrGet returns the guild's session, creating it with the given channel
// bindings if none exists. Bindings of an existing session are left as is.
// The second return value is true when a new session was created.
func (r *Registry) CreateOrGet(guildID, voiceChannelID, textChannelID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[guildID]; ok {
		return s, false
	}
	s := newSession(guildID, voiceChannelID, textChannelID)
	r.sessions[guildID] = s
	return s, true
}

// Destroy removes the guild's session and releases its votes and filler
// markers. Holders of the old *Session see ErrSessionClosed from then on.
func (r *Registry) Destroy(guildID string) bool {
	r.mu.Lock()
	s, ok := r.sessions[guildID]
	if ok {
		delete(r.sessions, guildID)
	}
	r.mu.Unlock()

	if ok {
		s.close()
	}
	return ok
}

// DestroyIf removes the session only if it is still the one given.
func (r *Registry) DestroyIf(s *Session) bool {
	r.mu.Lock()
	cur, ok := r.sessions[s.GuildID]
	if ok && cur == s {
		delete(r.sessions, s.GuildID)
	} else {
		ok = false
	}
	r.mu.Unlock()

	if ok {
		s.close()
	}
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// GuildIDs returns the guilds with a live session, sorted.
func (r *Registry) GuildIDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	slices.Sort(ids)
	return ids
}
