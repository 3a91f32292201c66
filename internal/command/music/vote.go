package music

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/vote"
	"github.com/keshon/jukebox/pkg/cmd"
)

type VoteCommand struct {
	base
	Player Player
}

func (c *VoteCommand) Name() string        { return "vote" }
func (c *VoteCommand) Description() string { return "Vote to skip the current song" }

func (c *VoteCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

func (c *VoteCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	env, err := command.EnvFrom(inv)
	if err != nil {
		return err
	}
	req := player.VoteRequest{GuildID: inv.GuildID, VoterID: inv.CallerID}
	if env.Voice != nil {
		if ch, ok := env.Voice.UserVoiceChannel(inv.GuildID, inv.CallerID); ok {
			req.VoiceChannelID = ch
			req.Listeners = env.Voice.ListenerCount(inv.GuildID, ch)
		}
	}

	res, err := c.Player.Vote(ctx, req)
	if errors.Is(err, player.ErrNotInVoice) {
		return env.Responder.Reply(ctx, command.Reply{Description: "❌ You need to be in the voice channel to skip!"})
	}
	if err != nil {
		return fail(ctx, env, err)
	}
	return env.Responder.Reply(ctx, command.Reply{Description: voteMessage(res)})
}

func voteMessage(res player.VoteResult) string {
	switch res.Kind {
	case vote.AlreadyVoted:
		return "❌ You already voted to skip!"
	case vote.VoteRegistered:
		return fmt.Sprintf("🗳️ Skip vote registered! (%d/%d votes needed)", res.Count, res.Required)
	}
	if res.Stopped {
		return "⏭️ Skipped! Queue is empty, stopping playback."
	}
	return "⏭️ Skipped!"
}
