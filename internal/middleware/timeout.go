package middleware

import (
	"context"
	"time"

	"github.com/keshon/jukebox/pkg/cmd"
)

// WithTimeout bounds a command run. A zero d leaves ctx untouched.
func WithTimeout(d time.Duration) cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		if d <= 0 {
			return c
		}
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return c.Run(ctx, inv)
		})
	}
}
