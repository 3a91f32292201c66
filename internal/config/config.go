package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DiscordToken          string   `env:"DISCORD_TOKEN"`
	DiscordGuildBlacklist []string `env:"DISCORD_GUILD_BLACKLIST" envSeparator:","`
	InitSlashCommands     bool     `env:"INIT_SLASH_COMMANDS" envDefault:"true"`

	LavalinkName         string `env:"LAVALINK_NAME" envDefault:"main"`
	LavalinkAddress      string `env:"LAVALINK_ADDRESS"`
	LavalinkPassword     string `env:"LAVALINK_PASSWORD" envDefault:"youshallnotpass"`
	LavalinkSecure       bool   `env:"LAVALINK_SECURE"`
	LavalinkSearchPrefix string `env:"LAVALINK_SEARCH_PREFIX" envDefault:"ytsearch"`

	VoteThreshold           int           `env:"VOTE_THRESHOLD" envDefault:"2"`
	VoteBypassListeners     int           `env:"VOTE_BYPASS_LISTENERS" envDefault:"2"`
	RecommendQueueThreshold int           `env:"RECOMMEND_QUEUE_THRESHOLD" envDefault:"3"`
	RecommendFanout         int           `env:"RECOMMEND_FANOUT" envDefault:"1"`
	CommandTimeout          time.Duration `env:"COMMAND_TIMEOUT" envDefault:"30s"`

	AssistantEndpoint string        `env:"ASSISTANT_ENDPOINT" envDefault:"https://text.pollinations.ai/openai"`
	AssistantModel    string        `env:"ASSISTANT_MODEL" envDefault:"openai"`
	AssistantTimeout  time.Duration `env:"ASSISTANT_TIMEOUT" envDefault:"25s"`

	StoragePath string `env:"STORAGE_PATH" envDefault:"datastore.json"`
	StatusAddr  string `env:"STATUS_ADDR"`

	// CommandCacheDir holds per-guild hashes of registered slash commands.
	CommandCacheDir string `env:"COMMAND_CACHE_DIR" envDefault:"data/commands"`

	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"100"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"3"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"28"`
	LogCompress   bool   `env:"LOG_COMPRESS" envDefault:"true"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	return parse(env.Options{})
}

// FromMap builds a Config from explicit variables only.
func FromMap(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.DiscordGuildBlacklist = compact(cfg.DiscordGuildBlacklist)
	return &cfg, nil
}

// Validate reports every missing or invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.DiscordToken == "" {
		errs = append(errs, errors.New("DISCORD_TOKEN is not set"))
	}
	if c.LavalinkAddress == "" {
		errs = append(errs, errors.New("LAVALINK_ADDRESS is not set"))
	} else if _, _, err := net.SplitHostPort(c.LavalinkAddress); err != nil {
		errs = append(errs, fmt.Errorf("LAVALINK_ADDRESS must be host:port: %w", err))
	}
	if c.VoteThreshold < 1 {
		errs = append(errs, fmt.Errorf("VOTE_THRESHOLD must be at least 1, got %d", c.VoteThreshold))
	}
	if c.VoteBypassListeners < 0 {
		errs = append(errs, fmt.Errorf("VOTE_BYPASS_LISTENERS must not be negative, got %d", c.VoteBypassListeners))
	}
	if c.RecommendQueueThreshold < 0 {
		errs = append(errs, fmt.Errorf("RECOMMEND_QUEUE_THRESHOLD must not be negative, got %d", c.RecommendQueueThreshold))
	}
	if c.RecommendFanout < 1 {
		errs = append(errs, fmt.Errorf("RECOMMEND_FANOUT must be at least 1, got %d", c.RecommendFanout))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel))
	}
	return errors.Join(errs...)
}

func compact(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
