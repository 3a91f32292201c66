// Package backend defines the narrow contract the playback core needs from an
// audio node. Concrete nodes (Lavalink) live in their own packages.
package backend

import (
	"context"
	"time"
)

// Track is a playable reference returned by a search.
type Track struct {
	ID        string
	Title     string
	Author    string
	URI       string
	Length    time.Duration
	Encoded   string // opaque payload the node needs to play the track
	Requester string
}

// Display returns a short human label for the track.
func (t Track) Display() string {
	switch {
	case t.Title != "" && t.Author != "":
		return t.Title + " — " + t.Author
	case t.Title != "":
		return t.Title
	case t.URI != "":
		return t.URI
	default:
		return "Unknown track"
	}
}

type LoadType string

const (
	LoadSingle   LoadType = "single"
	LoadPlaylist LoadType = "playlist"
	LoadSearch   LoadType = "search"
	LoadNoResult LoadType = "noResult"
)

// SearchResult is what a node returns for a query or URL.
type SearchResult struct {
	LoadType     LoadType
	PlaylistName string
	Tracks       []Track
}

// Empty reports whether the result carries nothing playable.
func (r SearchResult) Empty() bool {
	return r.LoadType == LoadNoResult || len(r.Tracks) == 0
}

// EndReason mirrors the node's reason for a track ending.
type EndReason string

const (
	EndFinished   EndReason = "finished"
	EndLoadFailed EndReason = "loadFailed"
	EndStopped    EndReason = "stopped"
	EndReplaced   EndReason = "replaced"
	EndCleanup    EndReason = "cleanup"
)

// MayStartNext reports whether the queue should advance after this reason.
func (r EndReason) MayStartNext() bool {
	return r == EndFinished || r == EndLoadFailed
}

// Backend is the audio node as seen by the session core.
// The node holds no queue: Play replaces whatever is playing.
type Backend interface {
	Ready() bool
	Search(ctx context.Context, query string) (SearchResult, error)
	Connect(ctx context.Context, guildID, voiceChannelID string) error
	Play(ctx context.Context, guildID string, track Track) error
	Destroy(ctx context.Context, guildID string) error
}

// EventHandler receives asynchronous playback signals from a node.
type EventHandler interface {
	OnTrackStart(guildID string, track Track)
	OnTrackEnd(guildID string, track Track, reason EndReason)
	OnPlayerClosed(guildID string)
}
