package music

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/pkg/cmd"
)

type GenreCommand struct {
	base
	Player Player
}

func (c *GenreCommand) Name() string        { return "genre" }
func (c *GenreCommand) Description() string { return "Play music by genre" }

func (c *GenreCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options:     []*discordgo.ApplicationCommandOption{stringOption("genre", "Genre name (e.g., jazz, rock, edm)")},
	}
}

func (c *GenreCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	env, err := command.EnvFrom(inv)
	if err != nil {
		return err
	}
	req := playRequest(inv, env)
	genre := inv.Option("genre")
	if req.VoiceChannelID == "" {
		return fail(ctx, env, player.ErrNotInVoice)
	}
	if err := env.Responder.Defer(ctx); err != nil {
		return err
	}

	res, err := c.Player.Genre(ctx, req, genre)
	if errors.Is(err, player.ErrNoResults) {
		return env.Responder.Reply(ctx, command.Reply{Description: fmt.Sprintf("❌ No %s music found!", genre)})
	}
	if err != nil {
		return fail(ctx, env, err)
	}
	return env.Responder.Reply(ctx, command.Reply{
		Description: fmt.Sprintf("✅ Playing %s music: **%s**", genre, res.Added[0].Title),
	})
}
