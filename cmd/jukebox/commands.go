package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/keshon/jukebox/internal/docs"
	"github.com/keshon/jukebox/pkg/cmd"
)

// newCommandsCmd prints the chat command reference, or renders it into a
// README template.
func newCommandsCmd() *cobra.Command {
	var tmplPath, outPath string

	c := &cobra.Command{
		Use:   "commands",
		Short: "Print the chat command reference",
		RunE: func(c *cobra.Command, args []string) error {
			registry := cmd.NewRegistry()
			registerCommands(registry, nil, nil, nil, nil, 0)

			var tmpl string
			if tmplPath != "" {
				data, err := os.ReadFile(tmplPath)
				if err != nil {
					return fmt.Errorf("read template: %w", err)
				}
				tmpl = string(data)
			}

			if outPath == "" {
				return docs.Render(c.OutOrStdout(), tmpl, registry)
			}
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create %s: %w", outPath, err)
			}
			defer f.Close()
			return docs.Render(f, tmpl, registry)
		},
	}
	c.Flags().StringVar(&tmplPath, "template", "", "README template exposing {{.CommandSections}}")
	c.Flags().StringVar(&outPath, "out", "", "write to this file instead of stdout")
	return c
}
