package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMap_Defaults(t *testing.T) {
	cfg, err := FromMap(map[string]string{
		"DISCORD_TOKEN":    "token",
		"LAVALINK_ADDRESS": "localhost:2333",
	})
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.InitSlashCommands)
	assert.Equal(t, "main", cfg.LavalinkName)
	assert.Equal(t, "youshallnotpass", cfg.LavalinkPassword)
	assert.Equal(t, "ytsearch", cfg.LavalinkSearchPrefix)
	assert.Equal(t, 2, cfg.VoteThreshold)
	assert.Equal(t, 2, cfg.VoteBypassListeners)
	assert.Equal(t, 3, cfg.RecommendQueueThreshold)
	assert.Equal(t, 1, cfg.RecommendFanout)
	assert.Equal(t, 30*time.Second, cfg.CommandTimeout)
	assert.Equal(t, "datastore.json", cfg.StoragePath)
	assert.Empty(t, cfg.StatusAddr)
	assert.Empty(t, cfg.DiscordGuildBlacklist)
}

func TestFromMap_Overrides(t *testing.T) {
	cfg, err := FromMap(map[string]string{
		"DISCORD_TOKEN":           "token",
		"LAVALINK_ADDRESS":        "lavalink:443",
		"LAVALINK_SECURE":         "true",
		"DISCORD_GUILD_BLACKLIST": "1, 2,,3 ",
		"VOTE_THRESHOLD":          "3",
		"COMMAND_TIMEOUT":         "5s",
		"LOG_LEVEL":               "debug",
	})
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.LavalinkSecure)
	assert.Equal(t, []string{"1", "2", "3"}, cfg.DiscordGuildBlacklist)
	assert.Equal(t, 3, cfg.VoteThreshold)
	assert.Equal(t, 5*time.Second, cfg.CommandTimeout)
}

func TestFromMap_BadValue(t *testing.T) {
	_, err := FromMap(map[string]string{"VOTE_THRESHOLD": "many"})
	assert.Error(t, err)
}

func TestValidate_ReportsEverything(t *testing.T) {
	cfg, err := FromMap(map[string]string{
		"LAVALINK_ADDRESS": "no-port",
		"RECOMMEND_FANOUT": "0",
		"LOG_LEVEL":        "loud",
	})
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"DISCORD_TOKEN", "LAVALINK_ADDRESS", "RECOMMEND_FANOUT", "LOG_LEVEL"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoad_ReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LAVALINK_NAME=from-file\n"), 0o600))
	t.Setenv("LAVALINK_NAME", "")
	require.NoError(t, os.Unsetenv("LAVALINK_NAME"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.LavalinkName)
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}
