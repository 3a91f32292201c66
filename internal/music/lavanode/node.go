// Package lavanode adapts a Lavalink node, reached through disgolink, to the
// backend contract of the playback core.
package lavanode

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/disgoorg/disgolink/v3/disgolink"
	"github.com/disgoorg/disgolink/v3/lavalink"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/keshon/jukebox/internal/music/backend"
	"github.com/keshon/jukebox/pkg/retrylimit"
)

var ErrNoNode = errors.New("no lavalink node connected")

type Config struct {
	Name         string
	Address      string
	Password     string
	Secure       bool
	SearchPrefix string
}

// VoiceJoiner moves the bot in and out of voice channels on the gateway.
// An empty channelID leaves.
type VoiceJoiner interface {
	JoinVoice(guildID, channelID string) error
}

// Node implements backend.Backend on top of a disgolink client.
type Node struct {
	client disgolink.Client
	voice  VoiceJoiner
	cfg    Config
	retry  retrylimit.RetryConfig
	log    *zap.Logger

	mu      sync.RWMutex
	handler backend.EventHandler
}

// New creates the disgolink client for the bot user botID. The node itself is
// added by Open.
func New(botID string, cfg Config, voice VoiceJoiner, log *zap.Logger) (*Node, error) {
	id, err := snowflake.Parse(botID)
	if err != nil {
		return nil, fmt.Errorf("parse bot id: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	n := &Node{
		voice: voice,
		cfg:   cfg,
		retry: retrylimit.DefaultRetryConfig(),
		log:   log.Named("lavalink"),
	}
	n.retry.OnRetry = func(attempt int, err error) {
		n.log.Warn("search retry", zap.Int("attempt", attempt), zap.Error(err))
	}
	n.client = disgolink.New(id,
		disgolink.WithListenerFunc(n.onTrackStart),
		disgolink.WithListenerFunc(n.onTrackEnd),
		disgolink.WithListenerFunc(n.onTrackException),
		disgolink.WithListenerFunc(n.onTrackStuck),
		disgolink.WithListenerFunc(n.onWebSocketClosed),
	)
	return n, nil
}

// SetEventHandler routes node events to h.
func (n *Node) SetEventHandler(h backend.EventHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handler = h
}

// Open connects to the configured node.
func (n *Node) Open(ctx context.Context) error {
	node, err := n.client.AddNode(ctx, disgolink.NodeConfig{
		Name:     n.cfg.Name,
		Address:  n.cfg.Address,
		Password: n.cfg.Password,
		Secure:   n.cfg.Secure,
	})
	if err != nil {
		n.log.Error("node connect failed", zap.String("node", n.cfg.Name), zap.String("address", n.cfg.Address), zap.Error(err))
		return fmt.Errorf("add lavalink node %q: %w", n.cfg.Name, err)
	}
	version, err := node.Version(ctx)
	if err != nil {
		n.log.Warn("node version unavailable", zap.String("node", n.cfg.Name), zap.Error(err))
	}
	n.log.Info("node connected", zap.String("node", n.cfg.Name), zap.String("version", version))
	return nil
}

func (n *Node) Close() {
	n.client.Close()
	n.log.Info("node disconnected", zap.String("node", n.cfg.Name))
}

// Ready reports whether a node is connected.
func (n *Node) Ready() bool {
	node := n.client.BestNode()
	return node != nil && node.Status() == disgolink.StatusConnected
}

func (n *Node) Search(ctx context.Context, query string) (backend.SearchResult, error) {
	node := n.client.BestNode()
	if node == nil {
		return backend.SearchResult{}, ErrNoNode
	}
	return n.search(ctx, query, func(ctx context.Context, id string) (backend.SearchResult, error) {
		return loadTracks(ctx, node, id)
	})
}

type loadFunc func(ctx context.Context, identifier string) (backend.SearchResult, error)

func (n *Node) search(ctx context.Context, query string, load loadFunc) (backend.SearchResult, error) {
	var res backend.SearchResult
	err := retrylimit.WithRetry(ctx, func() error {
		var err error
		res, err = load(ctx, identifier(query, n.cfg.SearchPrefix))
		return err
	}, nil, n.retry)
	if err != nil {
		return backend.SearchResult{}, fmt.Errorf("load tracks: %w", err)
	}
	return res, nil
}

func loadTracks(ctx context.Context, node disgolink.Node, id string) (backend.SearchResult, error) {
	var (
		res     backend.SearchResult
		loadErr error
	)
	node.LoadTracksHandler(ctx, id, disgolink.NewResultHandler(
		func(track lavalink.Track) {
			res.LoadType = backend.LoadSingle
			res.Tracks = []backend.Track{toTrack(track)}
		},
		func(playlist lavalink.Playlist) {
			res.LoadType = backend.LoadPlaylist
			res.PlaylistName = playlist.Info.Name
			res.Tracks = toTracks(playlist.Tracks)
		},
		func(tracks []lavalink.Track) {
			res.LoadType = backend.LoadSearch
			res.Tracks = toTracks(tracks)
		},
		func() {
			res.LoadType = backend.LoadNoResult
		},
		func(err error) {
			loadErr = loadFailed(err)
		},
	))
	return res, loadErr
}

// loadFailed marks exceptions reported by the node as final. Those are
// verdicts on the track ("video unavailable"), asking again will not help.
// Transport errors stay retryable.
func loadFailed(err error) error {
	var (
		ex  lavalink.Exception
		exp *lavalink.Exception
	)
	if errors.As(err, &ex) || errors.As(err, &exp) {
		return retrylimit.Fatal(err)
	}
	return err
}

func (n *Node) Connect(ctx context.Context, guildID, voiceChannelID string) error {
	if err := n.voice.JoinVoice(guildID, voiceChannelID); err != nil {
		return fmt.Errorf("join voice %s: %w", voiceChannelID, err)
	}
	return nil
}

func (n *Node) Play(ctx context.Context, guildID string, track backend.Track) error {
	id, err := snowflake.Parse(guildID)
	if err != nil {
		return fmt.Errorf("parse guild id: %w", err)
	}
	if err := n.client.Player(id).Update(ctx, lavalink.WithTrack(fromTrack(track))); err != nil {
		return fmt.Errorf("update player: %w", err)
	}
	return nil
}

// Destroy removes the node player and leaves voice.
func (n *Node) Destroy(ctx context.Context, guildID string) error {
	id, err := snowflake.Parse(guildID)
	if err != nil {
		return fmt.Errorf("parse guild id: %w", err)
	}
	var errs []error
	if p := n.client.ExistingPlayer(id); p != nil {
		if err := p.Destroy(ctx); err != nil {
			errs = append(errs, fmt.Errorf("destroy player: %w", err))
		}
	}
	if err := n.voice.JoinVoice(guildID, ""); err != nil {
		errs = append(errs, fmt.Errorf("leave voice: %w", err))
	}
	return errors.Join(errs...)
}

// OnVoiceStateUpdate forwards the bot's own voice state to the node. An
// empty channelID means the bot left voice.
func (n *Node) OnVoiceStateUpdate(ctx context.Context, guildID, channelID, sessionID string) {
	gid, err := snowflake.Parse(guildID)
	if err != nil {
		return
	}
	var cid *snowflake.ID
	if channelID != "" {
		if id, err := snowflake.Parse(channelID); err == nil {
			cid = &id
		}
	}
	n.client.OnVoiceStateUpdate(ctx, gid, cid, sessionID)
}

func (n *Node) OnVoiceServerUpdate(ctx context.Context, guildID, token, endpoint string) {
	gid, err := snowflake.Parse(guildID)
	if err != nil {
		return
	}
	n.client.OnVoiceServerUpdate(ctx, gid, token, endpoint)
}

func (n *Node) events() backend.EventHandler {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.handler
}

func (n *Node) onTrackStart(p disgolink.Player, e lavalink.TrackStartEvent) {
	n.trackStart(p.GuildID().String(), e.Track)
}

func (n *Node) onTrackEnd(p disgolink.Player, e lavalink.TrackEndEvent) {
	n.trackEnd(p.GuildID().String(), e.Track, e.Reason)
}

func (n *Node) onTrackException(p disgolink.Player, e lavalink.TrackExceptionEvent) {
	n.log.Warn("track exception",
		zap.String("guild", p.GuildID().String()),
		zap.String("track", e.Track.Info.Identifier),
		zap.String("message", e.Exception.Message))
}

func (n *Node) onTrackStuck(p disgolink.Player, e lavalink.TrackStuckEvent) {
	n.log.Warn("track stuck", zap.String("guild", p.GuildID().String()), zap.String("track", e.Track.Info.Identifier))
}

func (n *Node) onWebSocketClosed(p disgolink.Player, e lavalink.WebSocketClosedEvent) {
	n.voiceClosed(p.GuildID().String(), e.Code, e.Reason, e.ByRemote)
}

// Discord voice close codes after which the call is gone for good.
const (
	closeDisconnected   = 4014
	closeCallTerminated = 4022
)

// voiceClosed tears the session down only when the bot actually lost the
// call. Other closes are resumed by the node.
func (n *Node) voiceClosed(guildID string, code int, reason string, byRemote bool) {
	fields := []zap.Field{
		zap.String("guild", guildID),
		zap.Int("code", code),
		zap.String("reason", reason),
		zap.Bool("by_remote", byRemote),
	}
	switch code {
	case closeDisconnected, closeCallTerminated:
		n.log.Info("voice connection lost", fields...)
		n.playerClosed(guildID)
	default:
		n.log.Warn("voice websocket closed", fields...)
	}
}

func (n *Node) trackStart(guildID string, t lavalink.Track) {
	if h := n.events(); h != nil {
		h.OnTrackStart(guildID, toTrack(t))
	}
}

func (n *Node) trackEnd(guildID string, t lavalink.Track, reason lavalink.TrackEndReason) {
	if h := n.events(); h != nil {
		h.OnTrackEnd(guildID, toTrack(t), toEndReason(reason))
	}
}

func (n *Node) playerClosed(guildID string) {
	if h := n.events(); h != nil {
		h.OnPlayerClosed(guildID)
	}
}
