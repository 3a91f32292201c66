// Package vote arbitrates skip requests for the current track of a guild.
package vote

import (
	"errors"
	"fmt"

	"github.com/keshon/jukebox/internal/music/session"
)

var ErrNothingPlaying = errors.New("nothing is playing")

const (
	DefaultThreshold       = 2
	DefaultBypassListeners = 2
)

type Kind int

const (
	AlreadyVoted Kind = iota
	VoteRegistered
	SkipNow
)

func (k Kind) String() string {
	switch k {
	case AlreadyVoted:
		return "already_voted"
	case VoteRegistered:
		return "vote_registered"
	case SkipNow:
		return "skip_now"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the result of a skip request. Count and Required are set for
// VoteRegistered.
type Outcome struct {
	Kind     Kind
	Count    int
	Required int
}

// Coordinator decides when enough listeners asked to skip.
type Coordinator struct {
	sessions *session.Registry

	// Threshold is the number of distinct voters needed once voting applies.
	Threshold int
	// BypassListeners is the largest listener count that skips without a vote.
	BypassListeners int
}

func NewCoordinator(sessions *session.Registry, threshold, bypassListeners int) *Coordinator {
	if threshold < 1 {
		threshold = DefaultThreshold
	}
	if bypassListeners < 0 {
		bypassListeners = DefaultBypassListeners
	}
	return &Coordinator{
		sessions:        sessions,
		Threshold:       threshold,
		BypassListeners: bypassListeners,
	}
}

// RequestSkip registers voterID's wish to skip the current track of guildID.
func (c *Coordinator) RequestSkip(guildID, voterID string, listenerCount int) (Outcome, error) {
	s, ok := c.sessions.Get(guildID)
	if !ok {
		return Outcome{}, ErrNothingPlaying
	}

	var out Outcome
	err := s.Update(func(st *session.State) error {
		if st.Current == nil {
			return ErrNothingPlaying
		}
		out = c.Tally(st, voterID, listenerCount)
		return nil
	})
	if errors.Is(err, session.ErrSessionClosed) {
		return Outcome{}, ErrNothingPlaying
	}
	return out, err
}

// Tally applies one vote to st. Use it inside session.Update when the skip
// decision must be taken atomically with the vote.
func (c *Coordinator) Tally(st *session.State, voterID string, listenerCount int) Outcome {
	if listenerCount <= c.BypassListeners {
		st.ClearVotes()
		return Outcome{Kind: SkipNow}
	}

	if _, voted := st.Votes[voterID]; voted {
		return Outcome{Kind: AlreadyVoted, Count: len(st.Votes), Required: c.Threshold}
	}

	st.Votes[voterID] = struct{}{}
	if len(st.Votes) >= c.Threshold {
		st.ClearVotes()
		return Outcome{Kind: SkipNow}
	}
	return Outcome{Kind: VoteRegistered, Count: len(st.Votes), Required: c.Threshold}
}

// Clear drops all votes for the guild's current track.
func (c *Coordinator) Clear(guildID string) {
	s, ok := c.sessions.Get(guildID)
	if !ok {
		return
	}
	_ = s.Update(func(st *session.State) error {
		st.ClearVotes()
		return nil
	})
}
