package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/jukebox/internal/music/backend"
)

func track(id string) backend.Track {
	return backend.Track{ID: id, Title: "title " + id, Author: "author " + id}
}

func TestRegistry_CreateOrGetIsIdempotent(t *testing.T) {
	r := NewRegistry()

	s1, created := r.CreateOrGet("g1", "voice-a", "text-a")
	require.True(t, created)
	s2, created := r.CreateOrGet("g1", "voice-b", "text-b")
	assert.False(t, created)

	assert.Same(t, s1, s2)
	assert.Equal(t, "voice-a", s2.VoiceChannelID)
	assert.Equal(t, "text-a", s2.TextChannelID)
	assert.NotEmpty(t, s1.ID)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_DestroyReleasesState(t *testing.T) {
	r := NewRegistry()
	s, _ := r.CreateOrGet("g1", "v", "t")

	require.NoError(t, s.Update(func(st *State) error {
		cur := track("a")
		st.Current = &cur
		st.EnqueueAuto(track("x"))
		st.Votes["u1"] = struct{}{}
		return nil
	}))

	assert.True(t, r.Destroy("g1"))
	assert.False(t, r.Destroy("g1"))

	_, ok := r.Get("g1")
	assert.False(t, ok)
	assert.True(t, s.Closed())

	err := s.Update(func(st *State) error {
		t.Fatal("update must not run on a destroyed session")
		return nil
	})
	assert.ErrorIs(t, err, ErrSessionClosed)

	assert.Empty(t, s.state.Votes)
	assert.Empty(t, s.state.AutoRecommended)
	assert.Empty(t, s.state.Queue)
}

func TestRegistry_DestroyIfIgnoresReplacedSession(t *testing.T) {
	r := NewRegistry()
	old, _ := r.CreateOrGet("g1", "v", "t")
	r.Destroy("g1")
	fresh, _ := r.CreateOrGet("g1", "v", "t")

	assert.False(t, r.DestroyIf(old))
	got, ok := r.Get("g1")
	require.True(t, ok)
	assert.Same(t, fresh, got)
	assert.True(t, r.DestroyIf(fresh))
}

func TestRegistry_GuildIDsSorted(t *testing.T) {
	r := NewRegistry()
	r.CreateOrGet("g2", "v", "t")
	r.CreateOrGet("g1", "v", "t")
	assert.Equal(t, []string{"g1", "g2"}, r.GuildIDs())
}

func TestState_InvalidateAutoKeepsUserTracks(t *testing.T) {
	st := State{AutoRecommended: map[string]struct{}{}, Votes: map[string]struct{}{}}
	st.EnqueueAuto(track("x"))
	st.Enqueue(track("u"))
	st.EnqueueAuto(track("y"))
	epoch := st.RecommendEpoch

	removed := st.InvalidateAuto()

	assert.Equal(t, 2, removed)
	require.Len(t, st.Queue, 1)
	assert.Equal(t, "u", st.Queue[0].ID)
	assert.Empty(t, st.AutoRecommended)
	assert.Greater(t, st.RecommendEpoch, epoch)
}

func TestState_PopNextDropsMarker(t *testing.T) {
	st := State{AutoRecommended: map[string]struct{}{}, Votes: map[string]struct{}{}}
	st.EnqueueAuto(track("x"))
	st.Enqueue(track("u"))

	next, ok := st.PopNext()
	require.True(t, ok)
	assert.Equal(t, "x", next.ID)
	assert.NotContains(t, st.AutoRecommended, "x")

	next, ok = st.PopNext()
	require.True(t, ok)
	assert.Equal(t, "u", next.ID)

	_, ok = st.PopNext()
	assert.False(t, ok)
}

func TestState_EnqueueUnmarksUserRequestedFiller(t *testing.T) {
	st := State{AutoRecommended: map[string]struct{}{}, Votes: map[string]struct{}{}}
	st.EnqueueAuto(track("x"))
	st.Enqueue(track("x"))

	assert.NotContains(t, st.AutoRecommended, "x")
	st.InvalidateAuto()
	assert.Len(t, st.Queue, 2)
}

func TestState_Known(t *testing.T) {
	st := State{AutoRecommended: map[string]struct{}{}, Votes: map[string]struct{}{}}
	cur := track("c")
	pending := track("p")
	st.Current = &cur
	st.Pending = &pending
	st.Enqueue(track("q"))

	for _, id := range []string{"c", "p", "q"} {
		assert.True(t, st.Known(id), id)
	}
	assert.False(t, st.Known("z"))
	assert.True(t, st.Playing())
}

func TestSession_SnapshotIsACopy(t *testing.T) {
	r := NewRegistry()
	s, _ := r.CreateOrGet("g1", "v", "t")
	require.NoError(t, s.Update(func(st *State) error {
		st.Enqueue(track("a"))
		st.EnqueueAuto(track("b"))
		return nil
	}))

	snap, err := s.Snapshot()
	require.NoError(t, err)
	snap.Queue[0].Title = "changed"

	again, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "title a", again.Queue[0].Title)
	assert.Equal(t, []string{"b"}, again.AutoRecommended)
}

func TestSession_UpdatesAreSerialized(t *testing.T) {
	r := NewRegistry()
	s, _ := r.CreateOrGet("g1", "v", "t")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Update(func(st *State) error {
				st.Enqueue(track("a"))
				return nil
			})
		}()
	}
	wg.Wait()

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Len(t, snap.Queue, 50)
}
