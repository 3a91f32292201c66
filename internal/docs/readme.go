// Package docs renders the command reference for the README and the CLI.
package docs

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"text/template"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/pkg/cmd"
)

// CommandSections lists registered commands as markdown, one section per
// category, categories and commands in name order.
func CommandSections(registry *cmd.Registry) string {
	commands := registry.GetAll()
	sort.SliceStable(commands, func(i, j int) bool {
		ci, cj := category(commands[i]), category(commands[j])
		if ci == cj {
			return commands[i].Name() < commands[j].Name()
		}
		return ci < cj
	})

	var buf bytes.Buffer
	current := ""
	for i, c := range commands {
		if cat := category(c); i == 0 || cat != current {
			if i > 0 {
				buf.WriteString("\n")
			}
			current = cat
			fmt.Fprintf(&buf, "### %s\n\n", current)
		}
		fmt.Fprintf(&buf, "- **/%s** — %s\n", c.Name(), c.Description())
	}
	return buf.String()
}

// Render writes the command reference to w. With a template, the sections are
// available as {{.CommandSections}}; without one they are written as is.
func Render(w io.Writer, tmpl string, registry *cmd.Registry) error {
	sections := CommandSections(registry)
	if tmpl == "" {
		_, err := io.WriteString(w, sections)
		return err
	}

	t, err := template.New("readme").Parse(tmpl)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}
	data := struct {
		CommandSections string
	}{
		CommandSections: sections,
	}
	return t.Execute(w, data)
}

func category(c cmd.Command) string {
	if meta, ok := cmd.Root(c).(command.Categorized); ok {
		return meta.Category()
	}
	return "Other"
}
