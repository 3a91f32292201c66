package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/pkg/retrylimit"
)

// Notifier posts playback notifications to the session's text channel.
type Notifier struct {
	send  func(ctx context.Context, channelID string, e *discordgo.MessageEmbed) error
	lim   *retrylimit.AdaptiveLimiter
	retry retrylimit.RetryConfig
	log   *zap.Logger
}

func (b *Bot) Notifier() *Notifier {
	return newNotifier(func(ctx context.Context, channelID string, e *discordgo.MessageEmbed) error {
		_, err := b.dg.ChannelMessageSendEmbed(channelID, e, discordgo.WithContext(ctx))
		return err
	}, b.log)
}

func newNotifier(send func(context.Context, string, *discordgo.MessageEmbed) error, log *zap.Logger) *Notifier {
	n := &Notifier{
		send:  send,
		lim:   retrylimit.NewAdaptiveLimiter(5, 1, 10, 0.5, 0.5),
		retry: retrylimit.DefaultRetryConfig(),
		log:   log.Named("notify"),
	}
	n.retry.OnRetry = func(attempt int, err error) {
		n.log.Warn("notification retry", zap.Int("attempt", attempt), zap.Error(err))
	}
	return n
}

func (n *Notifier) Notify(ctx context.Context, note player.Notification) error {
	e := notificationEmbed(note)
	return retrylimit.WithRetry(ctx, func() error {
		return classify(n.send(ctx, note.ChannelID, e))
	}, n.lim, n.retry)
}

func notificationEmbed(note player.Notification) *discordgo.MessageEmbed {
	title := strings.TrimSpace(note.Status.StringEmoji() + " " + string(note.Status))

	var lines []string
	switch {
	case note.Status == player.StatusStopped:
		lines = append(lines, "Disconnected from voice.")
	case note.Track.URI != "":
		lines = append(lines, fmt.Sprintf("[%s](%s)", note.Track.Display(), note.Track.URI))
	default:
		lines = append(lines, note.Track.Display())
	}
	if note.Track.Requester != "" && note.Status == player.StatusPlaying {
		lines = append(lines, fmt.Sprintf("Requested by <@%s>", note.Track.Requester))
	}
	if note.Detail != "" {
		lines = append(lines, note.Detail)
	}
	return embed(title, strings.Join(lines, "\n"))
}

type restStatus struct {
	err  error
	code int
}

func (e *restStatus) Error() string   { return e.err.Error() }
func (e *restStatus) Unwrap() error   { return e.err }
func (e *restStatus) StatusCode() int { return e.code }

// classify exposes the HTTP status of a REST failure to the retry loop.
// Client errors other than 429 are not retried.
func classify(err error) error {
	var rest *discordgo.RESTError
	if err == nil || !errors.As(err, &rest) || rest.Response == nil {
		return err
	}
	wrapped := &restStatus{err: err, code: rest.Response.StatusCode}
	if retrylimit.Retryable(wrapped) {
		return wrapped
	}
	return retrylimit.Fatal(wrapped)
}
