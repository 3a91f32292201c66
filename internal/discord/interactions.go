package discord

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/pkg/cmd"
)

const EmbedColor = 0xb01e66

// buildInvocation turns a slash command interaction into a transport-neutral
// invocation. Data is left for the caller to fill.
func buildInvocation(i *discordgo.InteractionCreate) *cmd.Invocation {
	data := i.ApplicationCommandData()
	inv := &cmd.Invocation{
		Command:   data.Name,
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		CallerID:  callerID(i),
		Options:   make(map[string]string, len(data.Options)),
	}
	for _, o := range data.Options {
		if o.Type == discordgo.ApplicationCommandOptionString {
			inv.Options[o.Name] = o.StringValue()
			continue
		}
		inv.Options[o.Name] = fmt.Sprint(o.Value)
	}
	return inv
}

func callerUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func callerID(i *discordgo.InteractionCreate) string {
	if u := callerUser(i); u != nil {
		return u.ID
	}
	return ""
}

func callerName(i *discordgo.InteractionCreate) string {
	u := callerUser(i)
	switch {
	case u == nil:
		return ""
	case u.GlobalName != "":
		return u.GlobalName
	default:
		return u.Username
	}
}

func embed(title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       EmbedColor,
	}
}

// interactionResponder answers one interaction. After Defer, replies go out
// as followups.
type interactionResponder struct {
	s *discordgo.Session
	i *discordgo.InteractionCreate

	mu       sync.Mutex
	deferred bool
	replied  bool
}

func newResponder(s *discordgo.Session, i *discordgo.InteractionCreate) *interactionResponder {
	return &interactionResponder{s: s, i: i}
}

func (r *interactionResponder) Defer(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deferred || r.replied {
		return nil
	}
	err := r.s.InteractionRespond(r.i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("defer interaction: %w", err)
	}
	r.deferred = true
	return nil
}

func (r *interactionResponder) Reply(ctx context.Context, rep command.Reply) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := embed(rep.Title, rep.Description)
	var flags discordgo.MessageFlags
	if rep.Ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}

	var err error
	if r.deferred || r.replied {
		_, err = r.s.FollowupMessageCreate(r.i.Interaction, true, &discordgo.WebhookParams{
			Embeds: []*discordgo.MessageEmbed{e},
			Flags:  flags,
		}, discordgo.WithContext(ctx))
	} else {
		err = r.s.InteractionRespond(r.i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Embeds: []*discordgo.MessageEmbed{e},
				Flags:  flags,
			},
		}, discordgo.WithContext(ctx))
	}
	if err != nil {
		return fmt.Errorf("reply to interaction: %w", err)
	}
	r.replied = true
	return nil
}

func (r *interactionResponder) answered() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.replied
}
