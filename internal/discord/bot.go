// Package discord connects the command core and the playback manager to the
// Discord gateway.
package discord

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/pkg/cmd"
)

const shutdownTimeout = 10 * time.Second

// VoiceNode is the audio node the bot forwards its voice credentials to.
type VoiceNode interface {
	Open(ctx context.Context) error
	Close()
	OnVoiceStateUpdate(ctx context.Context, guildID, channelID, sessionID string)
	OnVoiceServerUpdate(ctx context.Context, guildID, token, endpoint string)
}

// PlayerEvents is told when the bot loses its voice connection, and is
// closed before the gateway on shutdown.
type PlayerEvents interface {
	OnPlayerClosed(guildID string)
	Close(ctx context.Context)
}

// Bot is a Discord bot
type Bot struct {
	dg       *discordgo.Session
	cfg      *config.Config
	commands *cmd.Registry
	log      *zap.Logger
	cacheDir string

	node   VoiceNode
	events PlayerEvents

	ctx context.Context
}

// New prepares a gateway session. Nothing is opened until Run.
func New(cfg *config.Config, commands *cmd.Registry, log *zap.Logger) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Bot{
		dg:       dg,
		cfg:      cfg,
		commands: commands,
		log:      log.Named("discord"),
		cacheDir: cfg.CommandCacheDir,
		ctx:      context.Background(),
	}, nil
}

// Attach wires the audio node and the playback manager. Both may be nil.
func (b *Bot) Attach(node VoiceNode, events PlayerEvents) {
	b.node = node
	b.events = events
}

// SelfID resolves the bot's user id over REST, before the gateway is open.
func (b *Bot) SelfID() (string, error) {
	return b.appID()
}

// Run connects to the gateway and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx

	b.dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onGuildCreate)
	b.dg.AddHandler(b.onInteractionCreate)
	b.dg.AddHandler(b.onVoiceStateUpdate)
	b.dg.AddHandler(b.onVoiceServerUpdate)

	if b.node != nil {
		if err := b.node.Open(ctx); err != nil {
			b.log.Error("lavalink node unavailable, music commands will report not ready", zap.Error(err))
		}
		defer b.node.Close()
	}

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	<-ctx.Done()
	b.log.Info("shutdown signal received, cleaning up")

	if b.events != nil {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		b.events.Close(sctx)
	}
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	for _, g := range r.Guilds {
		if b.leaveIfBlacklisted(s, g.ID) {
			continue
		}
		b.syncCommands(g.ID)
	}
	b.log.Info("discord bot is running", zap.String("user", r.User.Username), zap.Int("guilds", len(r.Guilds)))
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	b.log.Info("guild available", zap.String("guild", g.ID), zap.String("name", g.Name))
	if b.leaveIfBlacklisted(s, g.ID) {
		return
	}
	b.syncCommands(g.ID)
}

func (b *Bot) syncCommands(guildID string) {
	if !b.cfg.InitSlashCommands {
		b.log.Debug("slash command registration skipped", zap.String("guild", guildID))
		return
	}
	if err := b.registerCommands(guildID); err != nil {
		b.log.Error("failed to register slash commands", zap.String("guild", guildID), zap.Error(err))
	}
}

func (b *Bot) leaveIfBlacklisted(s *discordgo.Session, guildID string) bool {
	if !b.isGuildBlacklisted(guildID) {
		return false
	}
	b.log.Info("leaving blacklisted guild", zap.String("guild", guildID))
	if err := s.GuildLeave(guildID); err != nil {
		b.log.Error("failed to leave guild", zap.String("guild", guildID), zap.Error(err))
	}
	return true
}

func (b *Bot) isGuildBlacklisted(guildID string) bool {
	return slices.Contains(b.cfg.DiscordGuildBlacklist, guildID)
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	name := i.ApplicationCommandData().Name
	c, ok := b.commands.Get(name)
	if !ok {
		b.log.Warn("unknown command", zap.String("command", name))
		return
	}

	resp := newResponder(s, i)
	inv := buildInvocation(i)
	inv.Data = &command.Env{
		Responder: resp,
		Voice:     b,
		Username:  callerName(i),
	}

	err := c.Run(b.ctx, inv)
	if err != nil && !resp.answered() {
		_ = resp.Reply(b.ctx, command.Reply{Description: "❌ An error occurred!", Ephemeral: true})
	}
	if errors.Is(err, command.ErrNoEnv) {
		b.log.Error("command ran without environment", zap.String("command", name))
	}
}

// onVoiceStateUpdate forwards the bot's own voice session to the node. Losing
// the channel ends the guild's playback.
func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if s.State.User == nil || v.UserID != s.State.User.ID {
		return
	}
	if b.node != nil {
		b.node.OnVoiceStateUpdate(b.ctx, v.GuildID, v.ChannelID, v.SessionID)
	}
	if v.ChannelID == "" && b.events != nil {
		b.log.Debug("bot left voice", zap.String("guild", v.GuildID))
		b.events.OnPlayerClosed(v.GuildID)
	}
}

func (b *Bot) onVoiceServerUpdate(_ *discordgo.Session, v *discordgo.VoiceServerUpdate) {
	if b.node != nil {
		b.node.OnVoiceServerUpdate(b.ctx, v.GuildID, v.Token, v.Endpoint)
	}
}
