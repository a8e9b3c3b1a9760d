package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/breakingbooks/bookdeck/internal/cache"
	"github.com/breakingbooks/bookdeck/internal/config"
	"github.com/breakingbooks/bookdeck/internal/pipeline"
	"github.com/breakingbooks/bookdeck/internal/providers"
)

var (
	genOutputDir  string
	genTOCOnly    bool
	genSkipImages bool
	genPrintable  bool
	genNoCache    bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <book.epub>",
	Short: "Generate a card deck from an EPUB",
	Long: `Generate a card deck PDF from an EPUB file.

The book is split along its table of contents into parts and chapters,
each unit is enriched with generated text and an illustration, and the
cards are merged into a single PDF. Units whose enrichment fails render
as placeholder cards and are listed in the run manifest.

Examples:
  bookdeck generate book.epub                      # Full deck in the current directory
  bookdeck generate book.epub --output ./decks     # Custom output directory
  bookdeck generate book.epub --toc-only           # Only the table of contents card
  bookdeck generate book.epub --printable          # Also emit a 2-up A4 sheet PDF`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		text := providers.NewOpenAIEnrichment(providers.OpenAIConfig{
			APIKey:    cfg.Providers.OpenAI.APIKey,
			Model:     cfg.Providers.OpenAI.Model,
			RateLimit: cfg.Providers.OpenAI.RateLimit,
			Timeout:   time.Duration(cfg.Providers.OpenAI.TimeoutS) * time.Second,
		})
		image := providers.NewRunwareImageClient(providers.RunwareConfig{
			APIKey:    cfg.Providers.Runware.APIKey,
			Model:     cfg.Providers.Runware.Model,
			RateLimit: cfg.Providers.Runware.RateLimit,
			Timeout:   time.Duration(cfg.Providers.Runware.TimeoutS) * time.Second,
		})
		store := cache.New(cache.Config{
			Dir:      cfg.Cache.Dir,
			Disabled: cfg.Cache.Disabled || genNoCache,
			Logger:   logger,
		})

		outputDir := genOutputDir
		if outputDir == "" {
			outputDir = cfg.Pipeline.OutputDir
		}

		p := pipeline.New(text, image, store, pipeline.Config{
			Workers:        cfg.Pipeline.Workers,
			RetryAttempts:  cfg.Pipeline.RetryAttempts,
			RetryBaseDelay: cfg.Pipeline.RetryBaseDelayDuration(),
			MaxQuotes:      cfg.Pipeline.MaxQuotes,
		}, logger)

		res, err := p.Run(cmd.Context(), pipeline.Options{
			EPUBPath:   args[0],
			OutputDir:  outputDir,
			TOCOnly:    genTOCOnly,
			SkipImages: genSkipImages,
			Printable:  genPrintable,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Deck: %s (%d pages)\n", res.DeckPath, res.Pages)
		if res.PrintablePath != "" {
			fmt.Printf("Printable: %s\n", res.PrintablePath)
		}
		if len(res.Failed) > 0 {
			fmt.Printf("%d units failed, see %s\n", len(res.Failed), res.ManifestPath)
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVarP(&genOutputDir, "output", "o", "", "output directory (default from config)")
	generateCmd.Flags().BoolVar(&genTOCOnly, "toc-only", false, "render only the table of contents card")
	generateCmd.Flags().BoolVar(&genSkipImages, "skip-images", false, "skip illustration generation")
	generateCmd.Flags().BoolVar(&genPrintable, "printable", false, "also emit a 2-up A4 imposition of the deck")
	generateCmd.Flags().BoolVar(&genNoCache, "no-cache", false, "bypass the enrichment cache")

	rootCmd.AddCommand(generateCmd)
}
