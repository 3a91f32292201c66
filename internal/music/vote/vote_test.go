package vote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/jukebox/internal/music/backend"
	"github.com/keshon/jukebox/internal/music/session"
)

func playingRegistry(t *testing.T, guildID string) (*session.Registry, *session.Session) {
	t.Helper()
	reg := session.NewRegistry()
	s, _ := reg.CreateOrGet(guildID, "voice", "text")
	require.NoError(t, s.Update(func(st *session.State) error {
		st.Current = &backend.Track{ID: "now"}
		return nil
	}))
	return reg, s
}

func TestRequestSkip_SmallGroupsSkipImmediately(t *testing.T) {
	for _, listeners := range []int{0, 1, 2} {
		reg, _ := playingRegistry(t, "g1")
		c := NewCoordinator(reg, DefaultThreshold, DefaultBypassListeners)

		out, err := c.RequestSkip("g1", "alice", listeners)
		require.NoError(t, err)
		assert.Equal(t, SkipNow, out.Kind, "listeners=%d", listeners)
	}
}

func TestRequestSkip_TwoDistinctVotersNeeded(t *testing.T) {
	reg, s := playingRegistry(t, "g1")
	c := NewCoordinator(reg, DefaultThreshold, DefaultBypassListeners)

	out, err := c.RequestSkip("g1", "alice", 4)
	require.NoError(t, err)
	assert.Equal(t, Outcome{Kind: VoteRegistered, Count: 1, Required: 2}, out)

	out, err = c.RequestSkip("g1", "alice", 4)
	require.NoError(t, err)
	assert.Equal(t, AlreadyVoted, out.Kind)
	assert.Equal(t, 1, out.Count)

	out, err = c.RequestSkip("g1", "bob", 4)
	require.NoError(t, err)
	assert.Equal(t, SkipNow, out.Kind)

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Zero(t, snap.Votes)
}

func TestRequestSkip_ThresholdIgnoresListenerCount(t *testing.T) {
	reg, _ := playingRegistry(t, "g1")
	c := NewCoordinator(reg, DefaultThreshold, DefaultBypassListeners)

	out, err := c.RequestSkip("g1", "alice", 50)
	require.NoError(t, err)
	assert.Equal(t, VoteRegistered, out.Kind)
	assert.Equal(t, 2, out.Required)

	out, err = c.RequestSkip("g1", "bob", 50)
	require.NoError(t, err)
	assert.Equal(t, SkipNow, out.Kind)
}

func TestRequestSkip_NothingPlaying(t *testing.T) {
	reg := session.NewRegistry()
	c := NewCoordinator(reg, DefaultThreshold, DefaultBypassListeners)

	_, err := c.RequestSkip("missing", "alice", 1)
	assert.ErrorIs(t, err, ErrNothingPlaying)

	reg.CreateOrGet("idle", "v", "t")
	_, err = c.RequestSkip("idle", "alice", 1)
	assert.ErrorIs(t, err, ErrNothingPlaying)
}

func TestClear(t *testing.T) {
	reg, s := playingRegistry(t, "g1")
	c := NewCoordinator(reg, DefaultThreshold, DefaultBypassListeners)

	_, err := c.RequestSkip("g1", "alice", 5)
	require.NoError(t, err)
	c.Clear("g1")

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Zero(t, snap.Votes)

	out, err := c.RequestSkip("g1", "alice", 5)
	require.NoError(t, err)
	assert.Equal(t, VoteRegistered, out.Kind)
}

func TestNewCoordinator_Defaults(t *testing.T) {
	c := NewCoordinator(session.NewRegistry(), 0, -1)
	assert.Equal(t, DefaultThreshold, c.Threshold)
	assert.Equal(t, DefaultBypassListeners, c.BypassListeners)
}
