package music

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/pkg/cmd"
)

// DefaultAssistantBudget bounds the assistant call when the command context
// has no deadline of its own.
const DefaultAssistantBudget = 10 * time.Second

// VibeCommand plays something matching a described mood.
type VibeCommand struct {
	base
	Player    Player
	Assistant Assistant
	// AssistantBudget caps the assistant call. It never takes more than half
	// of the time left on the command context so the search still runs.
	AssistantBudget time.Duration
}

func (c *VibeCommand) Name() string        { return "vibe" }
func (c *VibeCommand) Description() string { return "Describe a mood and get matching music" }

func (c *VibeCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options:     []*discordgo.ApplicationCommandOption{stringOption("description", "How are you feeling?")},
	}
}

func (c *VibeCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	env, err := command.EnvFrom(inv)
	if err != nil {
		return err
	}
	req := playRequest(inv, env)
	description := inv.Option("description")
	if req.VoiceChannelID == "" {
		return fail(ctx, env, player.ErrNotInVoice)
	}
	if description == "" {
		return fail(ctx, env, player.ErrEmptyQuery)
	}
	if err := env.Responder.Defer(ctx); err != nil {
		return err
	}

	req.Query = c.query(ctx, description)
	res, err := c.Player.Play(ctx, req)
	if err != nil {
		return fail(ctx, env, err)
	}
	return env.Responder.Reply(ctx, command.Reply{
		Description: fmt.Sprintf("🔮 Searching for `%s`\n%s", req.Query, addedMessage(res)),
	})
}

// query falls back to the description when the assistant is missing or fails.
func (c *VibeCommand) query(ctx context.Context, description string) string {
	if c.Assistant == nil {
		return description
	}
	actx, cancel := context.WithTimeout(ctx, c.budget(ctx))
	defer cancel()
	q, err := c.Assistant.SearchQuery(actx, description)
	if err != nil || q == "" {
		return description
	}
	return q
}

func (c *VibeCommand) budget(ctx context.Context) time.Duration {
	b := c.AssistantBudget
	if b <= 0 {
		b = DefaultAssistantBudget
	}
	if deadline, ok := ctx.Deadline(); ok {
		if half := time.Until(deadline) / 2; half < b {
			b = half
		}
	}
	return b
}
