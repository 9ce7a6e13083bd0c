package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/recera/lowcode/cmd/lowcode/internal/ui"
	"github.com/recera/lowcode/pkg/compiler"
	"github.com/recera/lowcode/pkg/markup"
	"github.com/recera/lowcode/pkg/model"
)

func newInspectCommand(flags *globalFlags) *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "inspect <page file | file.vue>",
		Short: "Browse a page's node tree with each node's markup and style",
		Long: `Opens an interactive tree browser over a page. Each node shows the
markup generated for its subtree and its compiled style rule. A .vue
document is parsed first. --plain prints the same information instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(flags)
			if err != nil {
				return err
			}
			page, err := loadAny(p, args[0])
			if err != nil {
				return err
			}

			items := ui.Items(page, markup.Options{Class: p.cfg.ClassMode(), Reserved: page.Globals.Declared()})
			if plain {
				out := cmd.OutOrStdout()
				for _, it := range items {
					fmt.Fprintln(out, it.Label())
					if it.Style != "" {
						fmt.Fprint(out, indent(it.Style, it.Depth+2))
					}
				}
				return nil
			}
			return ui.Run(page.Name, items)
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "Print the tree instead of opening the browser")

	return cmd
}

// loadAny reads a page file or parses a .vue document.
func loadAny(p *project, path string) (*model.Page, error) {
	if !strings.EqualFold(filepath.Ext(path), ".vue") {
		return model.LoadPage(path)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	page, _, err := compiler.Parse(path, string(src), p.reg)
	if err != nil {
		return nil, err
	}
	page.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return page, nil
}

func indent(s string, depth int) string {
	pad := strings.Repeat("  ", depth)
	var b strings.Builder
	for _, line := range strings.SplitAfter(s, "\n") {
		if line != "" {
			b.WriteString(pad + line)
		}
	}
	return b.String()
}
