// Package music implements the chat commands of the group jukebox.
package music

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/pkg/cmd"
)

const (
	group    = "music"
	category = "🎵 Music"
)

// Player is the part of player.Manager the commands drive.
type Player interface {
	Play(ctx context.Context, req player.PlayRequest) (player.PlayResult, error)
	Genre(ctx context.Context, req player.PlayRequest, genre string) (player.PlayResult, error)
	Vote(ctx context.Context, req player.VoteRequest) (player.VoteResult, error)
	Queue(guildID string) (player.QueueView, error)
	Stop(ctx context.Context, guildID string) error
}

// Assistant turns a mood description into a search query.
type Assistant interface {
	SearchQuery(ctx context.Context, description string) (string, error)
}

// Commands returns every music command wired to p. a may be nil, in which
// case vibe searches for the description as typed.
func Commands(p Player, a Assistant) []cmd.Command {
	return []cmd.Command{
		&PlayCommand{Player: p},
		&GenreCommand{Player: p},
		&VibeCommand{Player: p, Assistant: a},
		&VoteCommand{Player: p},
		&QueueCommand{Player: p},
		&StopCommand{Player: p},
	}
}

type base struct{}

func (base) Group() string    { return group }
func (base) Category() string { return category }

// UserMessage maps an error to what the caller is told.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, player.ErrNotInVoice):
		return "❌ You need to be in a voice channel!"
	case errors.Is(err, player.ErrEmptyQuery):
		return "❌ Tell me what to play!"
	case errors.Is(err, player.ErrBackendUnavailable):
		return "❌ Music system is not ready yet. Please try again in a moment."
	case errors.Is(err, player.ErrNoResults):
		return "❌ No results found!"
	case errors.Is(err, player.ErrNothingPlaying):
		return "❌ Nothing is playing!"
	case errors.Is(err, player.ErrQueueEmpty):
		return "❌ Queue is empty!"
	default:
		return "❌ An error occurred!"
	}
}

// expected reports whether err is a user-facing condition rather than a fault.
func expected(err error) bool {
	for _, target := range []error{
		player.ErrNotInVoice,
		player.ErrEmptyQuery,
		player.ErrBackendUnavailable,
		player.ErrNoResults,
		player.ErrNothingPlaying,
		player.ErrQueueEmpty,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// fail tells the caller what went wrong. Faults are returned so middleware can
// log them; user-facing conditions are not.
func fail(ctx context.Context, env *command.Env, err error) error {
	reply := command.Reply{Description: UserMessage(err), Ephemeral: !expected(err)}
	if rerr := env.Responder.Reply(ctx, reply); rerr != nil {
		return errors.Join(err, rerr)
	}
	if expected(err) {
		return nil
	}
	return err
}

func playRequest(inv *cmd.Invocation, env *command.Env) player.PlayRequest {
	req := player.PlayRequest{
		GuildID:       inv.GuildID,
		TextChannelID: inv.ChannelID,
		CallerID:      inv.CallerID,
	}
	if env.Voice != nil {
		req.VoiceChannelID, _ = env.Voice.UserVoiceChannel(inv.GuildID, inv.CallerID)
	}
	return req
}

func addedMessage(res player.PlayResult) string {
	if res.IsPlaylist {
		return fmt.Sprintf("✅ Added playlist with %d tracks!", len(res.Added))
	}
	return fmt.Sprintf("✅ Added **%s** to the queue!", res.Added[0].Title)
}

func stringOption(name, description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        name,
		Description: description,
		Required:    true,
	}
}

func formatQueue(view player.QueueView) string {
	var sb strings.Builder
	if view.Current != nil {
		fmt.Fprintf(&sb, "**Now Playing:**\n%s\n\n", view.Current.Title)
	}
	if len(view.Upcoming) > 0 {
		sb.WriteString("**Up Next:**\n")
		for i, e := range view.Upcoming {
			fmt.Fprintf(&sb, "%d. %s", i+1, e.Title)
			if e.Auto {
				sb.WriteString(" ✨")
			}
			sb.WriteByte('\n')
		}
		if view.More > 0 {
			fmt.Fprintf(&sb, "\n...and %d more", view.More)
		}
	}
	return strings.TrimSpace(sb.String())
}
