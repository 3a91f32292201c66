package music

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/pkg/cmd"
)

type StopCommand struct {
	base
	Player Player
}

func (c *StopCommand) Name() string        { return "stop" }
func (c *StopCommand) Description() string { return "Stop playing and clear the queue" }

func (c *StopCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

func (c *StopCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	env, err := command.EnvFrom(inv)
	if err != nil {
		return err
	}
	if err := c.Player.Stop(ctx, inv.GuildID); err != nil {
		return fail(ctx, env, err)
	}
	return env.Responder.Reply(ctx, command.Reply{Description: "⏹️ Stopped and disconnected!"})
}
