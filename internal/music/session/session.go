package session

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/keshon/jukebox/internal/music/backend"
)

var ErrSessionClosed = errors.New("session is closed")

// State is the mutable playback state of one guild. It is only ever touched
// inside Session.Update or Session.View.
type State struct {
	Current        *backend.Track
	Pending        *backend.Track
	Queue          []backend.Track
	SkipInProgress bool

	// AutoRecommended holds ids of queued tracks injected as filler.
	AutoRecommended map[string]struct{}
	// Votes holds ids of users asking to skip Current.
	Votes map[string]struct{}

	// RecommendEpoch changes whenever filler is invalidated; fetches started
	// under an older epoch must not apply.
	RecommendEpoch uint64
}

// Playing reports whether a track is playing or about to start.
func (st *State) Playing() bool {
	return st.Current != nil || st.Pending != nil
}

// Enqueue appends user-requested tracks. A user request for a track already
// queued as filler turns that entry into a user entry.
func (st *State) Enqueue(tracks ...backend.Track) {
	for _, t := range tracks {
		delete(st.AutoRecommended, t.ID)
	}
	st.Queue = append(st.Queue, tracks...)
}

// EnqueueAuto appends filler and marks it as auto-recommended.
func (st *State) EnqueueAuto(t backend.Track) {
	st.Queue = append(st.Queue, t)
	st.AutoRecommended[t.ID] = struct{}{}
}

// PopNext removes and returns the head of the queue. Any filler marker for
// it is dropped once consumed.
func (st *State) PopNext() (backend.Track, bool) {
	if len(st.Queue) == 0 {
		return backend.Track{}, false
	}
	next := st.Queue[0]
	st.Queue = slices.Delete(st.Queue, 0, 1)
	if !st.queued(next.ID) {
		delete(st.AutoRecommended, next.ID)
	}
	return next, true
}

// InvalidateAuto drops every queued filler track and clears the markers.
// It returns how many tracks were removed.
func (st *State) InvalidateAuto() int {
	before := len(st.Queue)
	if len(st.AutoRecommended) > 0 {
		st.Queue = slices.DeleteFunc(st.Queue, func(t backend.Track) bool {
			_, auto := st.AutoRecommended[t.ID]
			return auto
		})
	}
	clear(st.AutoRecommended)
	st.RecommendEpoch++
	return before - len(st.Queue)
}

// Known reports whether id is currently playing, starting or queued.
func (st *State) Known(id string) bool {
	if st.Current != nil && st.Current.ID == id {
		return true
	}
	if st.Pending != nil && st.Pending.ID == id {
		return true
	}
	return st.queued(id)
}

// ClearVotes empties the vote set.
func (st *State) ClearVotes() {
	clear(st.Votes)
}

func (st *State) queued(id string) bool {
	return slices.ContainsFunc(st.Queue, func(t backend.Track) bool { return t.ID == id })
}

func (st *State) reset() {
	st.Current = nil
	st.Pending = nil
	st.Queue = nil
	st.SkipInProgress = false
	clear(st.AutoRecommended)
	clear(st.Votes)
	st.RecommendEpoch++
}

// Session is one guild's playback session.
type Session struct {
	ID             string
	GuildID        string
	VoiceChannelID string
	TextChannelID  string
	CreatedAt      time.Time

	mu     sync.Mutex
	closed bool
	state  State
}

func newSession(guildID, voiceChannelID, textChannelID string) *Session {
	return &Session{
		ID:             uuid.NewString(),
		GuildID:        guildID,
		VoiceChannelID: voiceChannelID,
		TextChannelID:  textChannelID,
		CreatedAt:      time.Now(),
		state: State{
			AutoRecommended: make(map[string]struct{}),
			Votes:           make(map[string]struct{}),
		},
	}
}

// Update runs fn with exclusive access to the session state. It returns
// ErrSessionClosed without calling fn once the session has been destroyed.
func (s *Session) Update(fn func(st *State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return fn(&s.state)
}

// View runs fn with read access to the session state.
func (s *Session) View(fn func(st State)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	fn(s.state)
	return nil
}

// Snapshot is a copy of a session's state safe to use outside the lock.
type Snapshot struct {
	Current         *backend.Track
	Queue           []backend.Track
	AutoRecommended []string
	Votes           int
	SkipInProgress  bool
}

// Snapshot copies the current state.
func (s *Session) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := s.View(func(st State) {
		if st.Current != nil {
			cur := *st.Current
			snap.Current = &cur
		}
		snap.Queue = slices.Clone(st.Queue)
		for id := range st.AutoRecommended {
			snap.AutoRecommended = append(snap.AutoRecommended, id)
		}
		slices.Sort(snap.AutoRecommended)
		snap.Votes = len(st.Votes)
		snap.SkipInProgress = st.SkipInProgress
	})
	return snap, err
}

// Closed reports whether the session has been destroyed.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.state.reset()
}
