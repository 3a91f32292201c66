package player

import (
	"context"

	"github.com/keshon/jukebox/internal/music/backend"
)

type PlayerStatus string

const (
	StatusPlaying PlayerStatus = "Now Playing"
	StatusNextUp  PlayerStatus = "Next Up"
	StatusAdded   PlayerStatus = "Track(s) Added"
	StatusSkipped PlayerStatus = "Track Skipped"
	StatusStopped PlayerStatus = "Playback Stopped"
	StatusError   PlayerStatus = "Error"
)

func (status PlayerStatus) StringEmoji() string {
	m := map[PlayerStatus]string{
		StatusPlaying: "▶️",
		StatusNextUp:  "⏭️",
		StatusAdded:   "🎶",
		StatusSkipped: "⏩",
		StatusStopped: "⏹",
		StatusError:   "❌",
	}
	return m[status]
}

// Notification is an unsolicited message about a guild's playback, posted to
// the text channel the session was started from.
type Notification struct {
	GuildID   string
	ChannelID string
	Status    PlayerStatus
	Track     backend.Track
	Detail    string
}

// Notifier delivers notifications to users.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }
