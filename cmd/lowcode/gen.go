package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newGenCommand(flags *globalFlags) *cobra.Command {
	var (
		style   string
		class   string
		outDir  string
		minify  bool
		noCache bool
		stdout  bool
	)

	cmd := &cobra.Command{
		Use:   "gen [page files...]",
		Short: "Generate .vue documents from page files",
		Long: `Reads page files (.yaml, .yml or .json) and writes one single-file
component document per page into the output directory. Without arguments
every page under the configured pages directory is generated.

Documents are cached by content hash; unchanged pages are served from the
cache unless --no-cache is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(flags)
			if err != nil {
				return err
			}

			// CLI takes precedence over lowcode.yaml
			if cmd.Flags().Changed("style") {
				p.cfg.Generate.Style = style
			}
			if cmd.Flags().Changed("class") {
				p.cfg.Generate.Class = class
			}
			if cmd.Flags().Changed("minify") {
				p.cfg.Generate.Minify = minify
			}
			if outDir != "" {
				p.cfg.OutDir = outDir
			}
			if err := p.cfg.Validate(); err != nil {
				return err
			}

			files := args
			if len(files) == 0 {
				if files, err = p.pageFiles(); err != nil {
					return err
				}
			}
			if len(files) == 0 {
				return fmt.Errorf("no page files found in %s", p.pagesDir())
			}

			b := newBuilder(p, noCache)
			defer b.close()

			startTime := time.Now()
			cached := 0
			for _, file := range files {
				res, err := b.build(file)
				if err != nil {
					return err
				}
				if stdout {
					fmt.Fprint(cmd.OutOrStdout(), res.Document)
					continue
				}
				dst, err := b.write(res)
				if err != nil {
					return fmt.Errorf("failed to write %s: %w", res.Name, err)
				}
				note := ""
				if res.Cached {
					cached++
					note = " (cached)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✅ %s → %s%s\n", p.rel(file), p.rel(dst), note)
			}

			if !stdout {
				fmt.Fprintf(cmd.OutOrStdout(), "\n✨ Generated %d documents (%d cached) in %v\n",
					len(files), cached, time.Since(startTime).Round(time.Millisecond))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&style, "style", "", "Script API style: composition or options")
	cmd.Flags().StringVar(&class, "class", "", "Class tokens: styled, always or never")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (overrides lowcode.yaml)")
	cmd.Flags().BoolVar(&minify, "minify", false, "Minify the style block")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Bypass the output cache")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "Print documents instead of writing files")

	return cmd
}
