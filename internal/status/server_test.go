package status

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/jukebox/internal/music/backend"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/storage"
)

type fakeSource struct {
	ready    bool
	sessions int
	views    map[string]player.QueueView
	err      error
}

func (f fakeSource) Ready() bool       { return f.ready }
func (f fakeSource) SessionCount() int { return f.sessions }

func (f fakeSource) Queue(guildID string) (player.QueueView, error) {
	if f.err != nil {
		return player.QueueView{}, f.err
	}
	v, ok := f.views[guildID]
	if !ok {
		return player.QueueView{}, player.ErrQueueEmpty
	}
	return v, nil
}

type fakeHistory map[string][]storage.TrackRecord

func (h fakeHistory) Tracks(guildID string) ([]storage.TrackRecord, error) { return h[guildID], nil }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(t, New("", fakeSource{ready: true, sessions: 2}, nil, nil).Handler(), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","backend_ready":true,"sessions":2}`, rec.Body.String())

	rec = get(t, New("", fakeSource{}, nil, nil).Handler(), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"degraded"`)
}

func TestQueue(t *testing.T) {
	src := fakeSource{views: map[string]player.QueueView{
		"g1": {
			Current: &backend.Track{ID: "a", Title: "Now", Length: 90 * time.Second, Requester: "u1"},
			Upcoming: []player.QueueEntry{
				{Track: backend.Track{ID: "b", Title: "Next"}},
				{Track: backend.Track{ID: "c", Title: "Filler"}, Auto: true},
			},
			More: 3,
		},
	}}
	h := New("", src, nil, nil).Handler()

	rec := get(t, h, "/guilds/g1/queue")
	require.Equal(t, http.StatusOK, rec.Code)
	var got queueResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.Current)
	assert.Equal(t, int64(90000), got.Current.LengthMS)
	assert.Equal(t, "u1", got.Current.Requester)
	require.Len(t, got.Upcoming, 2)
	assert.False(t, got.Upcoming[0].Auto)
	assert.True(t, got.Upcoming[1].Auto)
	assert.Equal(t, 3, got.More)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/guilds/g2/queue").Code)
}

func TestQueue_InternalError(t *testing.T) {
	h := New("", fakeSource{err: errors.New("boom")}, nil, nil).Handler()
	assert.Equal(t, http.StatusInternalServerError, get(t, h, "/guilds/g1/queue").Code)
}

func TestHistory(t *testing.T) {
	hist := fakeHistory{"g1": {{ID: "a", Title: "Song"}}}
	h := New("", fakeSource{}, hist, nil).Handler()

	rec := get(t, h, "/guilds/g1/history")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []storage.TrackRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Song", got[0].Title)

	assert.JSONEq(t, `[]`, get(t, h, "/guilds/none/history").Body.String())
}

func TestUnknownMethod(t *testing.T) {
	h := New("", fakeSource{}, nil, nil).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
