package docs

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/jukebox/pkg/cmd"
)

type docCmd struct{ name, cat string }

func (d docCmd) Name() string                              { return d.name }
func (d docCmd) Description() string                       { return d.name + " things" }
func (d docCmd) Run(context.Context, *cmd.Invocation) error { return nil }
func (d docCmd) Group() string                             { return "g" }
func (d docCmd) Category() string                          { return d.cat }

func registry() *cmd.Registry {
	r := cmd.NewRegistry()
	r.Register(docCmd{"stop", "🎵 Music"}, docCmd{"play", "🎵 Music"}, docCmd{"about", "ℹ️ Info"})
	return r
}

func TestCommandSections(t *testing.T) {
	want := "### ℹ️ Info\n\n- **/about** — about things\n\n### 🎵 Music\n\n- **/play** — play things\n- **/stop** — stop things\n"
	assert.Equal(t, want, CommandSections(registry()))
}

func TestRender_Template(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, "# Jukebox\n\n{{.CommandSections}}", registry()))
	assert.Contains(t, buf.String(), "# Jukebox\n\n### ℹ️ Info")

	assert.Error(t, Render(&buf, "{{.Broken", registry()))
}
