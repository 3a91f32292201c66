package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/keshon/jukebox/internal/ai"
	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/discord"
	"github.com/keshon/jukebox/internal/logger"
	"github.com/keshon/jukebox/internal/music/lavanode"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/recommend"
	"github.com/keshon/jukebox/internal/music/session"
	"github.com/keshon/jukebox/internal/music/vote"
	"github.com/keshon/jukebox/internal/status"
	"github.com/keshon/jukebox/internal/storage"
	"github.com/keshon/jukebox/pkg/cmd"
	"github.com/keshon/jukebox/pkg/jobmgr"
	"github.com/keshon/jukebox/pkg/retrylimit"
)

func runBot(parent context.Context, envFile string) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.LogLevel,
		OutputPath: cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays,
		Compress:   cfg.LogCompress,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	log.Info("starting", zap.String("app", appName))

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// commands are registered once the manager exists, before the gateway opens
	commands := cmd.NewRegistry()
	bot, err := discord.New(cfg, commands, log)
	if err != nil {
		return err
	}
	botID, err := bot.SelfID()
	if err != nil {
		return fmt.Errorf("resolve bot user: %w", err)
	}

	node, err := lavanode.New(botID, lavanode.Config{
		Name:         cfg.LavalinkName,
		Address:      cfg.LavalinkAddress,
		Password:     cfg.LavalinkPassword,
		Secure:       cfg.LavalinkSecure,
		SearchPrefix: cfg.LavalinkSearchPrefix,
	}, bot, log)
	if err != nil {
		return err
	}

	sessions := session.NewRegistry()
	jobs := jobmgr.NewManager(func(s string) { log.Debug("event lanes", zap.String("status", s)) })
	defer jobs.Close()

	mgr := player.New(
		node,
		sessions,
		vote.NewCoordinator(sessions, cfg.VoteThreshold, cfg.VoteBypassListeners),
		recommend.NewRefresher(node, retrylimit.NewAdaptiveLimiter(2, 0.5, 5, 0.5, 0.5), log, cfg.RecommendQueueThreshold, cfg.RecommendFanout),
		historyNotifier(store, bot.Notifier(), log),
		jobs,
		log,
	)
	node.SetEventHandler(mgr)

	vibe := ai.NewVibe(ai.NewChatProvider(cfg.AssistantEndpoint, cfg.AssistantModel, cfg.AssistantTimeout))
	registerCommands(commands, mgr, vibe, store, log, cfg.CommandTimeout)
	bot.Attach(node, mgr)

	errCh := make(chan error, 2)
	running := 1
	go func() { errCh <- bot.Run(ctx) }()
	if cfg.StatusAddr != "" {
		srv := status.New(cfg.StatusAddr, mgr, store, log)
		running++
		go func() { errCh <- srv.Run(ctx) }()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	var runErr error
	select {
	case s := <-sig:
		log.Info("received signal, shutting down", zap.String("signal", s.String()))
	case runErr = <-errCh:
		running--
		if runErr != nil {
			log.Error("component stopped", zap.Error(runErr))
		}
	case <-ctx.Done():
	}
	cancel()

	// give the bot time to leave voice before the process exits
	deadline := time.After(15 * time.Second)
	for ; running > 0; running-- {
		select {
		case err := <-errCh:
			runErr = errors.Join(runErr, err)
		case <-deadline:
			log.Warn("shutdown timed out")
			return runErr
		}
	}
	log.Info("exited cleanly")
	return runErr
}

// historyNotifier records every started track before passing the
// notification on.
func historyNotifier(store *storage.Storage, next player.Notifier, log *zap.Logger) player.Notifier {
	return player.NotifierFunc(func(ctx context.Context, n player.Notification) error {
		if n.Status == player.StatusPlaying {
			rec := storage.TrackRecord{
				ID:        n.Track.ID,
				Title:     n.Track.Title,
				Author:    n.Track.Author,
				URI:       n.Track.URI,
				Requester: n.Track.Requester,
				PlayedAt:  time.Now().UTC(),
			}
			if err := store.AppendTrack(n.GuildID, rec); err != nil {
				log.Warn("failed to record track", zap.String("guild", n.GuildID), zap.Error(err))
			}
		}
		return next.Notify(ctx, n)
	})
}
