package music

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/pkg/cmd"
)

type QueueCommand struct {
	base
	Player Player
}

func (c *QueueCommand) Name() string        { return "queue" }
func (c *QueueCommand) Description() string { return "Show the current queue" }

func (c *QueueCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

func (c *QueueCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	env, err := command.EnvFrom(inv)
	if err != nil {
		return err
	}
	view, err := c.Player.Queue(inv.GuildID)
	if err != nil {
		return fail(ctx, env, err)
	}
	return env.Responder.Reply(ctx, command.Reply{Description: formatQueue(view)})
}
