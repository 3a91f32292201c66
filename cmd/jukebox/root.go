package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/keshon/jukebox/internal/command/music"
	"github.com/keshon/jukebox/internal/middleware"
	"github.com/keshon/jukebox/pkg/cmd"
)

const appName = "jukebox"

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:          appName,
		Short:        "Jukebox is a group music bot for Discord voice channels.",
		SilenceUsage: true,
		RunE: func(c *cobra.Command, args []string) error {
			return runBot(c.Context(), envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env", ".env", "optional env file read before the process environment")

	root.AddCommand(newRunCmd(&envFile), newCommandsCmd())
	return root
}

func newRunCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and Lavalink and serve commands",
		RunE: func(c *cobra.Command, args []string) error {
			return runBot(c.Context(), *envFile)
		},
	}
}

// registerCommands adds the chat commands behind the shared middleware.
// The first middleware is the outermost.
func registerCommands(r *cmd.Registry, p music.Player, a music.Assistant, history middleware.History, log *zap.Logger, timeout time.Duration) {
	r.Register(music.Commands(p, a)...)
	r.Use(
		middleware.WithCommandLogger(history, log),
		middleware.WithGuildOnly(),
		middleware.WithTimeout(timeout),
	)
}
