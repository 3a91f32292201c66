package discord

import (
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/pkg/cmd"
)

// registerCommands syncs slash commands for a guild with Discord:
// deletes obsolete ones, creates/updates commands whose definition has changed.
func (b *Bot) registerCommands(guildID string) error {
	appID, err := b.appID()
	if err != nil {
		return err
	}

	remote, err := b.dg.ApplicationCommands(appID, guildID)
	if err != nil {
		return fmt.Errorf("list commands: %w", err)
	}
	local := buildCommandDefinitions(b.commands)
	hashes := b.loadCommandHashes(guildID)

	b.deleteObsoleteCommands(appID, guildID, remote, local, hashes)
	b.upsertChangedCommands(appID, guildID, local, hashes)

	b.saveCommandHashes(guildID, hashes)
	return nil
}

// buildCommandDefinitions returns ApplicationCommand definitions for all registered commands.
func buildCommandDefinitions(r *cmd.Registry) []*discordgo.ApplicationCommand {
	var defs []*discordgo.ApplicationCommand
	for _, c := range r.GetAll() {
		if def := commandDefinition(c); def != nil {
			defs = append(defs, def)
		}
	}
	return defs
}

func (b *Bot) deleteObsoleteCommands(appID, guildID string, remote, local []*discordgo.ApplicationCommand, hashes map[string]string) {
	wanted := make(map[string]struct{}, len(local))
	for _, d := range local {
		wanted[d.Name] = struct{}{}
	}
	for _, rc := range remote {
		if _, ok := wanted[rc.Name]; ok {
			continue
		}
		b.log.Info("deleting obsolete command", zap.String("guild", guildID), zap.String("command", rc.Name))
		if err := b.dg.ApplicationCommandDelete(appID, guildID, rc.ID); err != nil {
			b.log.Error("failed to delete command", zap.String("guild", guildID), zap.String("command", rc.Name), zap.Error(err))
			continue
		}
		delete(hashes, rc.Name)
	}
}

// upsertChangedCommands creates or updates commands whose hash differs from the cached value.
func (b *Bot) upsertChangedCommands(appID, guildID string, defs []*discordgo.ApplicationCommand, hashes map[string]string) {
	changed := changedCommands(defs, hashes)
	if len(changed) == 0 {
		return
	}

	b.log.Info("registering changed commands", zap.String("guild", guildID), zap.Int("count", len(changed)))
	for _, d := range changed {
		if _, err := b.dg.ApplicationCommandCreate(appID, guildID, d); err != nil {
			b.log.Error("failed to register command", zap.String("guild", guildID), zap.String("command", d.Name), zap.Error(err))
		} else {
			hashes[d.Name] = hashCommand(d)
		}
		time.Sleep(25 * time.Millisecond) // stay well under Discord's rate limit
	}
}

func changedCommands(defs []*discordgo.ApplicationCommand, hashes map[string]string) []*discordgo.ApplicationCommand {
	var changed []*discordgo.ApplicationCommand
	for _, d := range defs {
		if hashes[d.Name] != hashCommand(d) {
			changed = append(changed, d)
		}
	}
	return changed
}

// commandDefinition extracts the ApplicationCommand definition from a registered command,
// walking through middleware wrappers via cmd.Root.
func commandDefinition(c cmd.Command) *discordgo.ApplicationCommand {
	slash, ok := cmd.Root(c).(command.SlashProvider)
	if !ok {
		return nil
	}
	def := slash.SlashDefinition()
	if def != nil && def.Type == 0 {
		def.Type = discordgo.ChatApplicationCommand
	}
	return def
}

// appID returns the bot's application ID, fetching from Discord if not cached in State.
func (b *Bot) appID() (string, error) {
	if b.dg.State != nil && b.dg.State.User != nil && b.dg.State.User.ID != "" {
		return b.dg.State.User.ID, nil
	}
	u, err := b.dg.User("@me")
	if err != nil {
		return "", fmt.Errorf("failed to fetch bot user: %w", err)
	}
	return u.ID, nil
}

// --- Command hash cache ---

func (b *Bot) commandHashPath(guildID string) string {
	return filepath.Join(b.cacheDir, guildID+".json")
}

func (b *Bot) loadCommandHashes(guildID string) map[string]string {
	out := make(map[string]string)
	if data, err := os.ReadFile(b.commandHashPath(guildID)); err == nil {
		_ = json.Unmarshal(data, &out)
	}
	return out
}

func (b *Bot) saveCommandHashes(guildID string, hashes map[string]string) {
	path := b.commandHashPath(guildID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		b.log.Warn("command cache unavailable", zap.String("path", path), zap.Error(err))
		return
	}
	data, err := json.MarshalIndent(hashes, "", "  ")
	if err == nil {
		err = os.WriteFile(path, data, 0o644)
	}
	if err != nil {
		b.log.Warn("failed to save command cache", zap.String("path", path), zap.Error(err))
	}
}

// --- Command hashing ---

// hashCommand returns a deterministic SHA-1 of a command's stable fields.
// Used to skip re-registration when nothing has changed.
func hashCommand(c *discordgo.ApplicationCommand) string {
	stable := map[string]interface{}{
		"name":        c.Name,
		"description": c.Description,
		"type":        c.Type,
	}
	if len(c.Options) > 0 {
		stable["options"] = normalizeOptions(c.Options)
	}
	data, _ := json.Marshal(stable)
	sum := sha1.Sum(data)
	return fmt.Sprintf("%x", sum)
}

func normalizeOptions(opts []*discordgo.ApplicationCommandOption) []map[string]interface{} {
	out := make([]map[string]interface{}, len(opts))
	for i, o := range opts {
		entry := map[string]interface{}{
			"name":        o.Name,
			"description": o.Description,
			"type":        o.Type,
			"required":    o.Required,
		}
		if len(o.Choices) > 0 {
			choices := make([]map[string]interface{}, len(o.Choices))
			for j, ch := range o.Choices {
				choices[j] = map[string]interface{}{"name": ch.Name, "value": ch.Value}
			}
			entry["choices"] = choices
		}
		if len(o.Options) > 0 {
			entry["options"] = normalizeOptions(o.Options)
		}
		out[i] = entry
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i]["name"].(string) < out[j]["name"].(string)
	})
	return out
}
