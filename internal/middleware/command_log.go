package middleware

import (
	"context"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/storage"
	"github.com/keshon/jukebox/pkg/cmd"
)

// History persists command invocations.
type History interface {
	AppendCommand(guildID string, rec storage.CommandRecord) error
}

// WithCommandLogger logs every run and appends it to the guild's command
// history. A failed history write is logged and never fails the command.
func WithCommandLogger(history History, log *zap.Logger) cmd.Middleware {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			start := time.Now()
			err := c.Run(ctx, inv)

			fields := []zap.Field{
				zap.String("command", c.Name()),
				zap.String("guild", inv.GuildID),
				zap.String("caller", inv.CallerID),
				zap.Duration("took", time.Since(start)),
			}
			if err != nil {
				log.Error("command failed", append(fields, zap.Error(err))...)
			} else {
				log.Info("command", fields...)
			}

			if history == nil || inv.GuildID == "" {
				return err
			}
			rec := storage.CommandRecord{
				ChannelID: inv.ChannelID,
				UserID:    inv.CallerID,
				Command:   c.Name(),
				Param:     params(inv.Options),
				Datetime:  start.UTC(),
			}
			if env, envErr := command.EnvFrom(inv); envErr == nil {
				rec.Username = env.Username
			}
			if herr := history.AppendCommand(inv.GuildID, rec); herr != nil {
				log.Warn("failed to record command", zap.String("command", c.Name()), zap.Error(herr))
			}
			return err
		})
	}
}

func params(opts map[string]string) string {
	parts := make([]string, 0, len(opts))
	for k, v := range opts {
		parts = append(parts, k+"="+v)
	}
	slices.Sort(parts)
	return strings.Join(parts, " ")
}
