package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/recera/lowcode/pkg/compiler"
	"github.com/recera/lowcode/pkg/model"
)

func newParseCommand(flags *globalFlags) *cobra.Command {
	var (
		out    string
		format string
		name   string
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "parse <file.vue>",
		Short: "Parse a .vue document back into a page file",
		Long: `Parses a single-file component document into a page model. Constructs
the page model cannot represent are skipped and reported as diagnostics;
--strict turns any diagnostic into a failure.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(flags)
			if err != nil {
				return err
			}

			file := args[0]
			src, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			page, diags, err := compiler.Parse(file, string(src), p.reg)
			if err != nil {
				return err
			}
			page.Name = name
			if page.Name == "" {
				page.Name = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
			}

			if out != "" {
				if err := model.SavePage(out, page); err != nil {
					return fmt.Errorf("failed to write %s: %w", out, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "✅ %s → %s\n", file, out)
			} else {
				data, err := model.Encode(page, model.Format(format))
				if err != nil {
					return err
				}
				cmd.OutOrStdout().Write(data)
			}

			if len(diags) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠️  %d construct(s) skipped\n", len(diags))
				if strict {
					return fmt.Errorf("%s: %s", file, diags[0])
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the page to this file (.yaml, .yml or .json)")
	cmd.Flags().StringVarP(&format, "format", "f", string(model.FormatYAML), "Format when printing: yaml or json")
	cmd.Flags().StringVar(&name, "name", "", "Page name (defaults to the file name)")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when anything was skipped")

	return cmd
}
