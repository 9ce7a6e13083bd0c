package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/recera/lowcode/internal/store"
	"github.com/recera/lowcode/pkg/model"
)

func newSnapshotCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save, list and restore versioned page snapshots",
		Long: `Keeps versioned copies of pages in a SQLite database. Snapshots store
node styles in compact form; restoring merges the defaults back.`,
	}

	cmd.AddCommand(newSnapshotSaveCommand(flags))
	cmd.AddCommand(newSnapshotListCommand(flags))
	cmd.AddCommand(newSnapshotRestoreCommand(flags))

	return cmd
}

func openStore(flags *globalFlags) (*project, *store.Store, error) {
	p, err := loadProject(flags)
	if err != nil {
		return nil, nil, err
	}
	s, err := store.Open(p.resolve(p.cfg.Store.Path))
	if err != nil {
		return nil, nil, err
	}
	return p, s, nil
}

func newSnapshotSaveCommand(flags *globalFlags) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "save <page file | file.vue>...",
		Short: "Save the current state of pages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, s, err := openStore(flags)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := context.Background()
			for _, path := range args {
				page, err := loadAny(p, path)
				if err != nil {
					return err
				}
				snap, created, err := s.Save(ctx, page, message)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				if !created {
					fmt.Fprintf(cmd.OutOrStdout(), "• %s unchanged since v%d\n", snap.Page, snap.Version)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✅ %s saved as v%d\n", snap.Page, snap.Version)

				if keep := p.cfg.Store.Keep; keep > 0 {
					if _, err := s.Prune(ctx, snap.Page, keep); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Note stored with the snapshot")

	return cmd
}

func newSnapshotListCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list [page]",
		Short: "List snapshots, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := openStore(flags)
			if err != nil {
				return err
			}
			defer s.Close()

			page := ""
			if len(args) == 1 {
				page = args[0]
			}
			snaps, err := s.List(context.Background(), page)
			if err != nil {
				return err
			}
			if len(snaps) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No snapshots")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PAGE\tVERSION\tSAVED\tHASH\tMESSAGE")
			for _, snap := range snaps {
				fmt.Fprintf(w, "%s\tv%d\t%s\t%s\t%s\n",
					snap.Page, snap.Version, snap.Created.Format("2006-01-02 15:04:05"), snap.Hash[:12], snap.Message)
			}
			return w.Flush()
		},
	}
}

func newSnapshotRestoreCommand(flags *globalFlags) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "restore <page> [version]",
		Short: "Write a snapshot back to a page file",
		Long: `Restores a snapshot (the latest when no version is given) into a page
file. The default destination is <pagesDir>/<page>.yaml.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, s, err := openStore(flags)
			if err != nil {
				return err
			}
			defer s.Close()

			version := 0
			if len(args) == 2 {
				v, err := strconv.Atoi(trimV(args[1]))
				if err != nil || v < 1 {
					return fmt.Errorf("invalid version %q", args[1])
				}
				version = v
			}

			page, err := s.Restore(context.Background(), args[0], version)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if out == "" {
				out = filepath.Join(p.pagesDir(), page.Name+".yaml")
			}
			if err := model.SavePage(out, page); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ %s restored to %s\n", page.Name, p.rel(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Destination page file")

	return cmd
}

func trimV(s string) string {
	if len(s) > 1 && (s[0] == 'v' || s[0] == 'V') {
		return s[1:]
	}
	return s
}
