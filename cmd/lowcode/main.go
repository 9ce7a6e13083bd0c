package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/recera/lowcode/internal/cache"
	"github.com/recera/lowcode/internal/store"
	"github.com/recera/lowcode/pkg/compiler"
	"github.com/recera/lowcode/pkg/live"
)

var (
	version = "0.1.0-preview"
	commit  = "dev"
	date    = "unknown"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	cwd      string
	registry string
	verbose  bool
}

func main() {
	var flags globalFlags

	var rootCmd = &cobra.Command{
		Use:   "lowcode",
		Short: "lowcode - page models to single-file components and back",
		Long: `lowcode converts low-code page models (a node tree plus page globals)
into Vue-style single-file component documents, and parses such documents
back into page models.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(flags.verbose)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.cwd, "cwd", "C", ".", "Project directory holding lowcode.yaml")
	rootCmd.PersistentFlags().StringVar(&flags.registry, "registry", "", "Component registry file (overrides lowcode.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newGenCommand(&flags))
	rootCmd.AddCommand(newParseCommand(&flags))
	rootCmd.AddCommand(newDevCommand(&flags))
	rootCmd.AddCommand(newInspectCommand(&flags))
	rootCmd.AddCommand(newSnapshotCommand(&flags))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	l := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(l)
	compiler.SetLogger(l)
	cache.SetLogger(l)
	store.SetLogger(l)
	live.SetLogger(l)
}
