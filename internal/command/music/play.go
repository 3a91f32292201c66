package music

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/pkg/cmd"
)

type PlayCommand struct {
	base
	Player Player
}

func (c *PlayCommand) Name() string        { return "play" }
func (c *PlayCommand) Description() string { return "Play a song or playlist" }

func (c *PlayCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options:     []*discordgo.ApplicationCommandOption{stringOption("query", "Song name or URL")},
	}
}

func (c *PlayCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	env, err := command.EnvFrom(inv)
	if err != nil {
		return err
	}
	req := playRequest(inv, env)
	req.Query = inv.Option("query")
	if req.VoiceChannelID == "" {
		return fail(ctx, env, player.ErrNotInVoice)
	}
	if err := env.Responder.Defer(ctx); err != nil {
		return err
	}

	res, err := c.Player.Play(ctx, req)
	if err != nil {
		return fail(ctx, env, err)
	}
	return env.Responder.Reply(ctx, command.Reply{Description: addedMessage(res)})
}
