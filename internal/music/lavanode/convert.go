package lavanode

import (
	"net/url"
	"strings"
	"time"

	"github.com/disgoorg/disgolink/v3/lavalink"

	"github.com/keshon/jukebox/internal/music/backend"
)

func toTrack(t lavalink.Track) backend.Track {
	out := backend.Track{
		ID:      t.Info.Identifier,
		Title:   t.Info.Title,
		Author:  t.Info.Author,
		Length:  time.Duration(t.Info.Length) * time.Millisecond,
		Encoded: t.Encoded,
	}
	if t.Info.URI != nil {
		out.URI = *t.Info.URI
	}
	if out.ID == "" {
		out.ID = t.Encoded
	}
	return out
}

func toTracks(in []lavalink.Track) []backend.Track {
	out := make([]backend.Track, 0, len(in))
	for _, t := range in {
		out = append(out, toTrack(t))
	}
	return out
}

func fromTrack(t backend.Track) lavalink.Track {
	out := lavalink.Track{
		Encoded: t.Encoded,
		Info: lavalink.TrackInfo{
			Identifier: t.ID,
			Title:      t.Title,
			Author:     t.Author,
			Length:     lavalink.Duration(t.Length / time.Millisecond),
		},
	}
	if t.URI != "" {
		uri := t.URI
		out.Info.URI = &uri
	}
	return out
}

func toEndReason(r lavalink.TrackEndReason) backend.EndReason {
	switch r {
	case lavalink.TrackEndReasonFinished:
		return backend.EndFinished
	case lavalink.TrackEndReasonLoadFailed:
		return backend.EndLoadFailed
	case lavalink.TrackEndReasonReplaced:
		return backend.EndReplaced
	case lavalink.TrackEndReasonCleanup:
		return backend.EndCleanup
	default:
		return backend.EndStopped
	}
}

// identifier turns user input into something the node can load. Links are
// passed through, anything else becomes a prefixed search.
func identifier(query, prefix string) string {
	query = strings.TrimSpace(query)
	if u, err := url.Parse(query); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return query
	}
	if prefix == "" {
		return query
	}
	return strings.TrimSuffix(prefix, ":") + ":" + query
}
