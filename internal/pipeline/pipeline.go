// Package pipeline wires the stages together: segment the EPUB, enrich
// every unit, render one page per unit, and assemble the deck PDF plus its
// run artifacts (failure manifest and structure dump).
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/breakingbooks/bookdeck/internal/book"
	"github.com/breakingbooks/bookdeck/internal/cache"
	"github.com/breakingbooks/bookdeck/internal/deck"
	"github.com/breakingbooks/bookdeck/internal/enrich"
	"github.com/breakingbooks/bookdeck/internal/providers"
	"github.com/breakingbooks/bookdeck/internal/render"
	"github.com/breakingbooks/bookdeck/internal/segment"
)

// Config holds pipeline-level settings.
type Config struct {
	Workers        int
	RetryAttempts  uint
	RetryBaseDelay time.Duration
	MaxQuotes      int
}

// Options configure one run.
type Options struct {
	EPUBPath   string
	OutputDir  string
	TOCOnly    bool
	SkipImages bool
	Printable  bool
}

// Result reports what a run produced.
type Result struct {
	Book          *book.Book
	DeckPath      string
	PrintablePath string
	ManifestPath  string
	StructurePath string
	Pages         int
	Failed        []enrich.UnitFailure
}

// Pipeline runs the full EPUB-to-deck flow.
type Pipeline struct {
	text   providers.EnrichmentClient
	image  providers.ImageClient
	store  *cache.Store
	cfg    Config
	logger *slog.Logger
}

// New creates a Pipeline.
func New(text providers.EnrichmentClient, image providers.ImageClient, store *cache.Store, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		text:   text,
		image:  image,
		store:  store,
		cfg:    cfg,
		logger: logger.With("component", "pipeline"),
	}
}

// Run executes the pipeline for one EPUB. Structural failures (unreadable
// input, broken assembly) abort with an error; per-unit enrichment failures
// degrade to placeholder pages and are listed in Result.Failed.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()

	b, err := segment.New(p.logger).SegmentFile(opts.EPUBPath)
	if err != nil {
		return nil, err
	}

	res := &Result{Book: b}

	var manifest *enrich.Manifest
	if !opts.TOCOnly {
		o := enrich.New(p.text, p.image, p.store, enrich.Config{
			Workers:        p.cfg.Workers,
			Attempts:       p.cfg.RetryAttempts,
			RetryBaseDelay: p.cfg.RetryBaseDelay,
			MaxQuotes:      p.cfg.MaxQuotes,
			SkipImages:     opts.SkipImages,
			Logger:         p.logger,
		})
		manifest, err = o.Run(ctx, b)
		if err != nil {
			return nil, err
		}
		res.Failed = manifest.Failed
	}

	pages, err := p.renderPages(b, opts.TOCOnly)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	base := outputBase(opts.EPUBPath)
	res.DeckPath = filepath.Join(opts.OutputDir, base+"-deck.pdf")

	asm := deck.New(p.logger)
	if opts.TOCOnly {
		err = asm.AssemblePages(pages, res.DeckPath)
	} else {
		err = asm.Assemble(b, pages, res.DeckPath)
	}
	if err != nil {
		return nil, err
	}

	if res.Pages, err = deck.PageCount(res.DeckPath); err != nil {
		return nil, fmt.Errorf("count deck pages: %w", err)
	}

	if opts.Printable {
		res.PrintablePath = filepath.Join(opts.OutputDir, base+"-deck-printable.pdf")
		if err := deck.Impose(res.DeckPath, res.PrintablePath); err != nil {
			return nil, err
		}
	}

	res.StructurePath = filepath.Join(opts.OutputDir, base+"-structure.json")
	if err := writeStructure(b, res.StructurePath); err != nil {
		return nil, err
	}

	if manifest != nil {
		res.ManifestPath = filepath.Join(opts.OutputDir, base+"-manifest.yaml")
		if err := writeManifest(b, manifest, res.ManifestPath); err != nil {
			return nil, err
		}
	}

	p.logger.Info("run complete",
		"book", b.Title,
		"pages", res.Pages,
		"failed_units", len(res.Failed),
		"elapsed", time.Since(start).Round(time.Millisecond))

	return res, nil
}

// renderPages draws every deck page: the TOC, and unless tocOnly each
// section card and concept card.
func (p *Pipeline) renderPages(b *book.Book, tocOnly bool) ([]deck.RenderedPage, error) {
	r := render.New(p.logger)

	png, err := r.Render(render.TOCPage(b))
	if err != nil {
		return nil, fmt.Errorf("render toc: %w", err)
	}
	pages := []deck.RenderedPage{{Kind: render.KindTOC, UnitID: "toc", PNG: png}}
	if tocOnly {
		return pages, nil
	}

	for _, sec := range b.Sections {
		png, err := r.Render(render.SectionCardPage(sec))
		if err != nil {
			return nil, fmt.Errorf("render section %s: %w", sec.ID, err)
		}
		pages = append(pages, deck.RenderedPage{
			Kind:         render.KindSectionCard,
			UnitID:       sec.ID,
			SectionIndex: sec.Index,
			PNG:          png,
		})

		for _, ch := range sec.Chapters {
			png, err := r.Render(render.ConceptCardPage(sec, ch))
			if err != nil {
				return nil, fmt.Errorf("render chapter %s: %w", ch.ID, err)
			}
			pages = append(pages, deck.RenderedPage{
				Kind:         render.KindConceptCard,
				UnitID:       ch.ID,
				SectionIndex: ch.SectionIndex,
				ChapterIndex: ch.Index,
				PNG:          png,
			})
		}
	}
	return pages, nil
}

// runManifest is the YAML artifact describing one run.
type runManifest struct {
	Book        string               `yaml:"book"`
	GeneratedAt time.Time            `yaml:"generated_at"`
	Failed      []enrich.UnitFailure `yaml:"failed"`
	Summary     struct {
		Units          int     `yaml:"units"`
		FailedUnits    int     `yaml:"failed_units"`
		TextCacheHits  int     `yaml:"text_cache_hits"`
		ImageCacheHits int     `yaml:"image_cache_hits"`
		CostUSD        float64 `yaml:"cost_usd"`
	} `yaml:"summary"`
}

func writeManifest(b *book.Book, m *enrich.Manifest, path string) error {
	rm := runManifest{
		Book:        b.Title,
		GeneratedAt: time.Now().UTC(),
		Failed:      m.Failed,
	}
	rm.Summary.Units = b.SectionCount() + b.ChapterCount()
	rm.Summary.FailedUnits = len(m.Failed)
	rm.Summary.TextCacheHits = m.TextCacheHits
	rm.Summary.ImageCacheHits = m.ImageCacheHits
	rm.Summary.CostUSD = m.CostUSD

	data, err := yaml.Marshal(rm)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func writeStructure(b *book.Book, path string) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal structure: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write structure: %w", err)
	}
	return nil
}

func outputBase(epubPath string) string {
	base := filepath.Base(epubPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
