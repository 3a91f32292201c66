// Package player drives guild sessions through their lifecycle: it turns user
// commands and audio node events into session state changes and node calls.
package player

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/keshon/jukebox/internal/music/backend"
	"github.com/keshon/jukebox/internal/music/recommend"
	"github.com/keshon/jukebox/internal/music/session"
	"github.com/keshon/jukebox/internal/music/vote"
	"github.com/keshon/jukebox/pkg/jobmgr"
)

var (
	ErrNotInVoice         = errors.New("caller is not in a voice channel")
	ErrEmptyQuery         = errors.New("query is empty")
	ErrBackendUnavailable = errors.New("audio backend is not ready")
	ErrNoResults          = errors.New("no results found")
	ErrNothingPlaying     = vote.ErrNothingPlaying
	ErrQueueEmpty         = errors.New("queue is empty")
)

// QueuePreview is how many upcoming tracks Queue lists.
const QueuePreview = 10

// leaveGrace is how long after Stop a voice close is taken to be the echo of
// that stop.
const leaveGrace = 15 * time.Second

// Manager owns the session registry and is the only writer of session state.
// Commands call it directly; node events are funnelled through a per-guild
// job lane so they apply in arrival order.
type Manager struct {
	backend  backend.Backend
	sessions *session.Registry
	votes    *vote.Coordinator
	recs     *recommend.Refresher
	notifier Notifier
	jobs     *jobmgr.Manager
	log      *zap.Logger

	mu sync.Mutex
	// leaving holds guilds this manager asked to leave voice, keyed to the
	// time of the request. The next close event for the guild is our own.
	leaving map[string]time.Time
	now     func() time.Time
}

func New(b backend.Backend, sessions *session.Registry, votes *vote.Coordinator, recs *recommend.Refresher, notifier Notifier, jobs *jobmgr.Manager, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	if notifier == nil {
		notifier = NotifierFunc(func(context.Context, Notification) error { return nil })
	}
	return &Manager{
		backend:  b,
		sessions: sessions,
		votes:    votes,
		recs:     recs,
		notifier: notifier,
		jobs:     jobs,
		log:      log,
		leaving:  make(map[string]time.Time),
		now:      time.Now,
	}
}

// Sessions exposes the registry for read-only consumers.
func (m *Manager) Sessions() *session.Registry { return m.sessions }

// Ready reports whether the audio backend can take requests.
func (m *Manager) Ready() bool { return m.backend.Ready() }

// SessionCount is the number of guilds with a live session.
func (m *Manager) SessionCount() int { return m.sessions.Len() }

type PlayRequest struct {
	GuildID        string
	VoiceChannelID string
	TextChannelID  string
	CallerID       string
	Query          string
}

type PlayResult struct {
	Added      []backend.Track
	Playlist   string
	IsPlaylist bool
	// Started is set when this request began playback on an idle session.
	Started bool
}

// Play searches for req.Query and queues the result. A playlist is queued in
// full, anything else contributes its first track. A single track asked for
// by a user replaces the session's pending recommendations.
func (m *Manager) Play(ctx context.Context, req PlayRequest) (PlayResult, error) {
	return m.enqueue(ctx, req, false)
}

// Genre queues the first match for "<genre> music".
func (m *Manager) Genre(ctx context.Context, req PlayRequest, genre string) (PlayResult, error) {
	genre = strings.TrimSpace(genre)
	if genre == "" {
		return PlayResult{}, ErrEmptyQuery
	}
	req.Query = genre + " music"
	return m.enqueue(ctx, req, true)
}

func (m *Manager) enqueue(ctx context.Context, req PlayRequest, firstOnly bool) (PlayResult, error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.VoiceChannelID == "" {
		return PlayResult{}, ErrNotInVoice
	}
	if req.Query == "" {
		return PlayResult{}, ErrEmptyQuery
	}
	if !m.backend.Ready() {
		return PlayResult{}, ErrBackendUnavailable
	}

	res, err := m.backend.Search(ctx, req.Query)
	if err != nil {
		return PlayResult{}, fmt.Errorf("search %q: %w", req.Query, err)
	}
	if res.Empty() {
		return PlayResult{}, ErrNoResults
	}

	s, err := m.session(ctx, req)
	if err != nil {
		return PlayResult{}, err
	}

	out := PlayResult{IsPlaylist: res.LoadType == backend.LoadPlaylist && !firstOnly}
	if out.IsPlaylist {
		out.Playlist = res.PlaylistName
		out.Added = append(out.Added, res.Tracks...)
	} else {
		out.Added = append(out.Added, res.Tracks[0])
	}
	for i := range out.Added {
		out.Added[i].Requester = req.CallerID
	}

	err = s.Update(func(st *session.State) error {
		st.Enqueue(out.Added...)
		return nil
	})
	if err != nil {
		return PlayResult{}, fmt.Errorf("queue tracks: %w", err)
	}
	m.log.Info("tracks queued",
		zap.String("guild", req.GuildID),
		zap.String("caller", req.CallerID),
		zap.Int("count", len(out.Added)),
		zap.Bool("playlist", out.IsPlaylist))

	if !out.IsPlaylist {
		m.recs.RefreshRecommendations(ctx, s, out.Added[0])
	}

	out.Started, err = m.startIfIdle(ctx, s)
	if err != nil {
		return out, err
	}
	return out, nil
}

// session returns the guild's session, creating it and joining voice if it
// does not exist yet.
func (m *Manager) session(ctx context.Context, req PlayRequest) (*session.Session, error) {
	s, created := m.sessions.CreateOrGet(req.GuildID, req.VoiceChannelID, req.TextChannelID)
	if !created {
		return s, nil
	}
	if err := m.backend.Connect(ctx, req.GuildID, req.VoiceChannelID); err != nil {
		m.sessions.DestroyIf(s)
		return nil, fmt.Errorf("join voice channel: %w", err)
	}
	m.log.Info("session created",
		zap.String("guild", req.GuildID),
		zap.String("session", s.ID),
		zap.String("voice", req.VoiceChannelID))
	return s, nil
}

// startIfIdle hands the queue head to the node when nothing is playing or
// about to start.
func (m *Manager) startIfIdle(ctx context.Context, s *session.Session) (bool, error) {
	var (
		next backend.Track
		ok   bool
	)
	err := s.Update(func(st *session.State) error {
		if st.Playing() {
			return nil
		}
		next, ok = st.PopNext()
		if ok {
			st.Pending = &next
		}
		return nil
	})
	if err != nil || !ok {
		return false, nil
	}
	if err := m.play(ctx, s, next); err != nil {
		return false, err
	}
	return true, nil
}

// play asks the node to play t, clearing the pending marker if it refuses.
func (m *Manager) play(ctx context.Context, s *session.Session, t backend.Track) error {
	err := m.backend.Play(ctx, s.GuildID, t)
	if err == nil {
		return nil
	}
	_ = s.Update(func(st *session.State) error {
		if st.Pending != nil && st.Pending.ID == t.ID {
			st.Pending = nil
		}
		st.SkipInProgress = false
		return nil
	})
	m.log.Error("play failed", zap.String("guild", s.GuildID), zap.String("track", t.ID), zap.Error(err))
	return fmt.Errorf("start playback: %w", err)
}

type VoteRequest struct {
	GuildID        string
	VoiceChannelID string
	VoterID        string
	// Listeners is the number of non-bot members in the voice channel.
	Listeners int
}

type VoteResult struct {
	vote.Outcome
	// Next is the track the skip moved to, if any.
	Next *backend.Track
	// Stopped is set when the skip emptied the session and it was torn down.
	Stopped bool
}

// Vote registers a skip vote and performs the skip once it passes.
func (m *Manager) Vote(ctx context.Context, req VoteRequest) (VoteResult, error) {
	s, ok := m.sessions.Get(req.GuildID)
	if !ok {
		return VoteResult{}, ErrNothingPlaying
	}

	var (
		out     VoteResult
		next    backend.Track
		hasNext bool
	)
	err := s.Update(func(st *session.State) error {
		if st.Current == nil {
			return ErrNothingPlaying
		}
		if req.VoiceChannelID == "" {
			return ErrNotInVoice
		}
		out.Outcome = m.votes.Tally(st, req.VoterID, req.Listeners)
		if out.Kind != vote.SkipNow {
			return nil
		}
		next, hasNext = st.PopNext()
		if hasNext {
			st.SkipInProgress = true
			st.Pending = &next
		}
		return nil
	})
	if errors.Is(err, session.ErrSessionClosed) {
		return VoteResult{}, ErrNothingPlaying
	}
	if err != nil {
		return VoteResult{}, err
	}
	m.log.Debug("skip vote",
		zap.String("guild", req.GuildID),
		zap.String("voter", req.VoterID),
		zap.Stringer("outcome", out.Kind),
		zap.Int("count", out.Count))

	if out.Kind != vote.SkipNow {
		return out, nil
	}
	if !hasNext {
		out.Stopped = true
		if err := m.Stop(ctx, req.GuildID); err != nil && !errors.Is(err, ErrNothingPlaying) {
			return out, err
		}
		return out, nil
	}
	if err := m.play(ctx, s, next); err != nil {
		return out, err
	}
	out.Next = &next
	return out, nil
}

type QueueEntry struct {
	backend.Track
	Auto bool
}

type QueueView struct {
	Current  *backend.Track
	Upcoming []QueueEntry
	// More counts queued tracks beyond Upcoming.
	More int
}

// Queue lists what is playing and the next QueuePreview tracks.
func (m *Manager) Queue(guildID string) (QueueView, error) {
	s, ok := m.sessions.Get(guildID)
	if !ok {
		return QueueView{}, ErrQueueEmpty
	}
	var view QueueView
	err := s.View(func(st session.State) {
		switch {
		case st.Current != nil:
			cur := *st.Current
			view.Current = &cur
		case st.Pending != nil:
			cur := *st.Pending
			view.Current = &cur
		}
		for i, t := range st.Queue {
			if i == QueuePreview {
				view.More = len(st.Queue) - QueuePreview
				break
			}
			_, auto := st.AutoRecommended[t.ID]
			view.Upcoming = append(view.Upcoming, QueueEntry{Track: t, Auto: auto})
		}
	})
	if err != nil || (view.Current == nil && len(view.Upcoming) == 0) {
		return QueueView{}, ErrQueueEmpty
	}
	return view, nil
}

// Stop ends playback, leaves voice and discards the guild's session.
func (m *Manager) Stop(ctx context.Context, guildID string) error {
	s, ok := m.sessions.Get(guildID)
	if !ok {
		return ErrNothingPlaying
	}
	m.sessions.DestroyIf(s)
	_ = m.jobs.Stop(guildID)
	m.markLeaving(guildID)
	m.log.Info("session destroyed", zap.String("guild", guildID), zap.String("session", s.ID))

	if err := m.backend.Destroy(ctx, guildID); err != nil {
		return fmt.Errorf("destroy player: %w", err)
	}
	return nil
}

// Close tears down every session.
func (m *Manager) Close(ctx context.Context) {
	for _, id := range m.sessions.GuildIDs() {
		if err := m.Stop(ctx, id); err != nil {
			m.log.Warn("stop on shutdown", zap.String("guild", id), zap.Error(err))
		}
	}
}

func (m *Manager) OnTrackStart(guildID string, track backend.Track) {
	m.dispatch(guildID, "track start", func(ctx context.Context) error {
		return m.trackStarted(ctx, guildID, track)
	})
}

func (m *Manager) OnTrackEnd(guildID string, track backend.Track, reason backend.EndReason) {
	m.dispatch(guildID, "track end", func(ctx context.Context) error {
		return m.trackEnded(ctx, guildID, track, reason)
	})
}

func (m *Manager) OnPlayerClosed(guildID string) {
	m.dispatch(guildID, "player closed", func(ctx context.Context) error {
		return m.playerClosed(ctx, guildID)
	})
}

func (m *Manager) dispatch(guildID, event string, job jobmgr.Job) {
	if err := m.jobs.Enqueue(guildID, job); err != nil {
		m.log.Warn("event dropped", zap.String("guild", guildID), zap.String("event", event), zap.Error(err))
	}
}

func (m *Manager) trackStarted(ctx context.Context, guildID string, track backend.Track) error {
	s, ok := m.sessions.Get(guildID)
	if !ok {
		m.log.Debug("track start without session", zap.String("guild", guildID))
		return nil
	}

	var (
		started backend.Track
		next    *backend.Track
	)
	err := s.Update(func(st *session.State) error {
		started = track
		if st.Pending != nil && st.Pending.ID == track.ID {
			started = *st.Pending
		}
		st.Current = &started
		st.Pending = nil
		st.SkipInProgress = false
		st.ClearVotes()
		return nil
	})
	if err != nil {
		return nil
	}
	m.log.Info("track started", zap.String("guild", guildID), zap.String("track", started.ID))
	m.notify(ctx, s, StatusPlaying, started)

	m.recs.AutoRecommend(ctx, s, started)

	_ = s.View(func(st session.State) {
		if len(st.Queue) > 0 {
			head := st.Queue[0]
			next = &head
		}
	})
	if next != nil {
		m.notify(ctx, s, StatusNextUp, *next)
	}
	return nil
}

func (m *Manager) trackEnded(ctx context.Context, guildID string, track backend.Track, reason backend.EndReason) error {
	s, ok := m.sessions.Get(guildID)
	if !ok {
		return nil
	}

	var (
		next    backend.Track
		advance bool
	)
	err := s.Update(func(st *session.State) error {
		st.ClearVotes()
		if st.Current != nil && st.Current.ID == track.ID {
			st.Current = nil
		}
		if st.Pending != nil && st.Pending.ID == track.ID && reason == backend.EndLoadFailed {
			st.Pending = nil
		}
		if !reason.MayStartNext() || st.Pending != nil {
			return nil
		}
		next, advance = st.PopNext()
		if advance {
			st.Pending = &next
		}
		return nil
	})
	if err != nil {
		return nil
	}
	m.log.Info("track ended",
		zap.String("guild", guildID),
		zap.String("track", track.ID),
		zap.String("reason", string(reason)),
		zap.Bool("advance", advance))

	if reason == backend.EndLoadFailed {
		m.notify(ctx, s, StatusError, track)
	}
	if !advance {
		return nil
	}
	return m.play(ctx, s, next)
}

func (m *Manager) markLeaving(guildID string) {
	m.mu.Lock()
	m.leaving[guildID] = m.now()
	m.mu.Unlock()
}

// ownLeave consumes the leave marker for guildID and reports whether it was
// recent enough to explain a close event.
func (m *Manager) ownLeave(guildID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.leaving[guildID]
	if !ok {
		return false
	}
	delete(m.leaving, guildID)
	return m.now().Sub(at) < leaveGrace
}

func (m *Manager) playerClosed(ctx context.Context, guildID string) error {
	own := m.ownLeave(guildID)
	s, ok := m.sessions.Get(guildID)
	if !ok {
		return nil
	}
	if own {
		// the session was created after Stop; the close belongs to the old one
		m.log.Debug("stale voice close ignored", zap.String("guild", guildID), zap.String("session", s.ID))
		return nil
	}
	m.sessions.DestroyIf(s)
	m.log.Info("voice connection closed", zap.String("guild", guildID), zap.String("session", s.ID))
	m.notify(ctx, s, StatusStopped, backend.Track{})
	if err := m.backend.Destroy(ctx, guildID); err != nil {
		return fmt.Errorf("destroy player: %w", err)
	}
	return nil
}

func (m *Manager) notify(ctx context.Context, s *session.Session, status PlayerStatus, t backend.Track) {
	if s.TextChannelID == "" {
		return
	}
	err := m.notifier.Notify(ctx, Notification{
		GuildID:   s.GuildID,
		ChannelID: s.TextChannelID,
		Status:    status,
		Track:     t,
	})
	if err != nil {
		m.log.Warn("notify failed", zap.String("guild", s.GuildID), zap.String("status", string(status)), zap.Error(err))
	}
}
