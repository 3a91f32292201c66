// Package command holds what every chat command shares: how it describes
// itself to Discord, how it answers, and how it asks about voice channels.
package command

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/pkg/cmd"
)

var ErrNoEnv = errors.New("invocation carries no command environment")

// SlashProvider is implemented by commands registered as slash commands.
type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}

// Categorized commands are grouped in listings.
type Categorized interface {
	Group() string
	Category() string
}

// Reply is a command's answer to its caller.
type Reply struct {
	Title       string
	Description string
	Ephemeral   bool
}

// Responder answers one invocation. Defer acknowledges a slow command; Reply
// may be called after Defer.
type Responder interface {
	Defer(ctx context.Context) error
	Reply(ctx context.Context, r Reply) error
}

// Voice answers questions about voice channels in a guild.
type Voice interface {
	// UserVoiceChannel returns the voice channel userID is connected to.
	UserVoiceChannel(guildID, userID string) (string, bool)
	// ListenerCount counts non-bot members in a voice channel.
	ListenerCount(guildID, channelID string) int
}

// Env is what adapters put in cmd.Invocation.Data.
type Env struct {
	Responder Responder
	Voice     Voice
	// Username is the caller's display name, used for history only.
	Username string
}

// EnvFrom extracts the Env an adapter attached to inv.
func EnvFrom(inv *cmd.Invocation) (*Env, error) {
	env, ok := inv.Data.(*Env)
	if !ok || env == nil || env.Responder == nil {
		return nil, ErrNoEnv
	}
	return env, nil
}
