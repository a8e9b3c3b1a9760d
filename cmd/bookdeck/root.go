package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/breakingbooks/bookdeck/version"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "bookdeck",
	Short: "Turn an EPUB into a printable deck of concept cards",
	Long: `Bookdeck reads an EPUB, segments it into parts and chapters along its
table of contents, and generates one card per unit with LLM-written
summaries and AI illustrations, merged into a single PDF deck.

The pipeline includes:
  - TOC-driven book segmentation with footnote and citation cleanup
  - Structured-output text enrichment (description, quotes, comment)
  - Illustration generation with per-unit failure isolation
  - Card rendering with placeholder fallback and deck assembly`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.bookdeck/config.yaml)",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "enable debug logging",
	)

	rootCmd.AddCommand(versionCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}
