package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// JoinVoice asks the gateway to move the bot into channelID, or out of voice
// when channelID is empty. Audio itself is carried by the Lavalink node.
func (b *Bot) JoinVoice(guildID, channelID string) error {
	if err := b.dg.ChannelVoiceJoinManual(guildID, channelID, false, true); err != nil {
		return fmt.Errorf("voice state update: %w", err)
	}
	return nil
}

// UserVoiceChannel returns the voice channel userID is connected to.
func (b *Bot) UserVoiceChannel(guildID, userID string) (string, bool) {
	guild, err := b.dg.State.Guild(guildID)
	if err != nil {
		return "", false
	}
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return vs.ChannelID, true
		}
	}
	return "", false
}

// ListenerCount counts the humans in a voice channel.
func (b *Bot) ListenerCount(guildID, channelID string) int {
	guild, err := b.dg.State.Guild(guildID)
	if err != nil {
		return 0
	}
	return countListeners(guild.VoiceStates, channelID, func(vs *discordgo.VoiceState) bool {
		if vs.Member != nil && vs.Member.User != nil {
			return vs.Member.User.Bot
		}
		if m, err := b.dg.State.Member(guildID, vs.UserID); err == nil && m.User != nil {
			return m.User.Bot
		}
		return false
	})
}

func countListeners(states []*discordgo.VoiceState, channelID string, isBot func(*discordgo.VoiceState) bool) int {
	n := 0
	for _, vs := range states {
		if vs.ChannelID != channelID || isBot(vs) {
			continue
		}
		n++
	}
	return n
}
