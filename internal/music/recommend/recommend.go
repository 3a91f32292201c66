// Package recommend keeps a guild's queue from running dry by appending
// tracks similar to what is playing, and throws that filler away as soon as a
// user asks for something specific.
package recommend

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/keshon/jukebox/internal/music/backend"
	"github.com/keshon/jukebox/internal/music/session"
	"github.com/keshon/jukebox/pkg/retrylimit"
)

const (
	DefaultQueueThreshold = 3
	DefaultFanout         = 1
)

// Searcher is the part of the audio backend used for similarity lookups.
type Searcher interface {
	Search(ctx context.Context, query string) (backend.SearchResult, error)
}

// Refresher injects and invalidates auto-recommended tracks.
type Refresher struct {
	search  Searcher
	limiter *retrylimit.AdaptiveLimiter
	log     *zap.Logger

	// QueueThreshold is the largest queue length that still gets filler.
	QueueThreshold int
	// Fanout is how many tracks one refill appends at most.
	Fanout int
}

func NewRefresher(search Searcher, limiter *retrylimit.AdaptiveLimiter, log *zap.Logger, queueThreshold, fanout int) *Refresher {
	if queueThreshold < 0 {
		queueThreshold = DefaultQueueThreshold
	}
	if fanout < 1 {
		fanout = DefaultFanout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Refresher{
		search:         search,
		limiter:        limiter,
		log:            log,
		QueueThreshold: queueThreshold,
		Fanout:         fanout,
	}
}

// SimilarQuery builds the similarity search for a seed track.
func SimilarQuery(seed backend.Track) string {
	parts := make([]string, 0, 3)
	parts = append(parts, "songs like")
	if seed.Title != "" {
		parts = append(parts, seed.Title)
	}
	if seed.Author != "" {
		parts = append(parts, seed.Author)
	}
	return strings.Join(parts, " ")
}

// AutoRecommend appends filler seeded by seed when the queue is short. It
// returns how many tracks were added. Failures are logged, never returned.
func (r *Refresher) AutoRecommend(ctx context.Context, s *session.Session, seed backend.Track) int {
	var (
		need  bool
		epoch uint64
	)
	err := s.View(func(st session.State) {
		need = len(st.Queue) <= r.QueueThreshold
		epoch = st.RecommendEpoch
	})
	if err != nil || !need {
		return 0
	}
	return r.fill(ctx, s, seed, epoch)
}

// RefreshRecommendations discards all queued filler, then refills seeded by
// the track the user just added.
func (r *Refresher) RefreshRecommendations(ctx context.Context, s *session.Session, manual backend.Track) int {
	var removed int
	err := s.Update(func(st *session.State) error {
		removed = st.InvalidateAuto()
		return nil
	})
	if err != nil {
		return 0
	}
	if removed > 0 {
		r.log.Debug("stale recommendations dropped",
			zap.String("guild", s.GuildID),
			zap.String("session", s.ID),
			zap.Int("removed", removed))
	}
	return r.AutoRecommend(ctx, s, manual)
}

func (r *Refresher) fill(ctx context.Context, s *session.Session, seed backend.Track, epoch uint64) int {
	log := r.log.With(
		zap.String("guild", s.GuildID),
		zap.String("session", s.ID),
		zap.String("seed", seed.ID))

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			log.Warn("recommendation search not attempted", zap.Error(err))
			return 0
		}
	}

	query := SimilarQuery(seed)
	res, err := r.search.Search(ctx, query)
	if err != nil {
		if r.limiter != nil {
			r.limiter.RateLimited()
		}
		log.Warn("recommendation search failed", zap.String("query", query), zap.Error(err))
		return 0
	}
	if r.limiter != nil {
		r.limiter.Success()
	}
	if res.Empty() {
		log.Info("recommendation search returned nothing", zap.String("query", query))
		return 0
	}

	candidates := make([]backend.Track, 0, len(res.Tracks))
	for _, t := range res.Tracks {
		if t.ID == "" || t.ID == seed.ID {
			continue
		}
		candidates = append(candidates, t)
	}

	added := 0
	err = s.Update(func(st *session.State) error {
		if st.RecommendEpoch != epoch {
			return errStale
		}
		if len(st.Queue) > r.QueueThreshold {
			return nil
		}
		for _, t := range candidates {
			if added == r.Fanout {
				break
			}
			if st.Known(t.ID) {
				continue
			}
			t.Requester = ""
			st.EnqueueAuto(t)
			added++
		}
		return nil
	})
	switch {
	case errors.Is(err, session.ErrSessionClosed):
		log.Debug("session gone before recommendations arrived")
	case errors.Is(err, errStale):
		log.Debug("recommendations superseded by a newer request")
	case added > 0:
		log.Info("recommendations queued", zap.Int("added", added))
	}
	return added
}

var errStale = errors.New("recommendation epoch changed")
