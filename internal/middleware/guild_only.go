package middleware

import (
	"context"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/pkg/cmd"
)

// WithGuildOnly answers direct-message invocations with a short notice
// instead of running the command.
func WithGuildOnly() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			if inv.GuildID != "" {
				return c.Run(ctx, inv)
			}
			if env, err := command.EnvFrom(inv); err == nil {
				return env.Responder.Reply(ctx, command.Reply{
					Description: "This command only works in a server.",
					Ephemeral:   true,
				})
			}
			return nil
		})
	}
}
