// Package cmd provides a transport-agnostic command core: a command is something
// with a name, description, and Run(ctx, invocation). How it is registered and
// dispatched (Discord slash, CLI, HTTP) is defined by adapters that wrap this.
package cmd

import (
	"context"
	"strings"
)

// Invocation is one call of a command as delivered by an adapter. Options
// holds named arguments; Data is the adapter's own payload (responder, raw
// event) and is never inspected by the core.
type Invocation struct {
	Command   string
	GuildID   string
	ChannelID string
	CallerID  string
	Options   map[string]string
	Data      any
}

// Option returns the trimmed value of a named option, or "".
func (inv *Invocation) Option(name string) string {
	if inv == nil || inv.Options == nil {
		return ""
	}
	return strings.TrimSpace(inv.Options[name])
}

// Command is the universal contract: identity plus execution. Permissions, flags,
// subcommands, and transport-specific registration stay in adapters.
type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}
