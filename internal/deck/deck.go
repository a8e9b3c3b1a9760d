// Package deck assembles rendered pages into the final printable PDF. Page
// order is a pure function of tree position, never of rendering or
// enrichment completion order: the table of contents first, then each
// section's divider card followed by its concept cards.
package deck

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/breakingbooks/bookdeck/internal/book"
	"github.com/breakingbooks/bookdeck/internal/render"
)

// RenderedPage is one page ready for assembly.
type RenderedPage struct {
	Kind         render.PageKind
	UnitID       string
	SectionIndex int
	ChapterIndex int
	PNG          []byte
}

// AssemblyError is a fatal deck-construction failure: missing or duplicate
// pages, or a PDF operation error.
type AssemblyError struct {
	Message string
	Err     error
}

func (e *AssemblyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("deck assembly failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("deck assembly failed: %s", e.Message)
}

func (e *AssemblyError) Unwrap() error { return e.Err }

// orderKey ranks a page for deck order. The TOC leads; within the body,
// a section's card precedes its chapters.
func orderKey(p RenderedPage) (int, int, int) {
	if p.Kind == render.KindTOC {
		return 0, 0, 0
	}
	if p.Kind == render.KindSectionCard {
		return 1, p.SectionIndex, 0
	}
	return 1, p.SectionIndex, p.ChapterIndex + 1
}

// Sort orders pages into deck order in place.
func Sort(pages []RenderedPage) {
	sort.SliceStable(pages, func(i, j int) bool {
		ia, ib, ic := orderKey(pages[i])
		ja, jb, jc := orderKey(pages[j])
		if ia != ja {
			return ia < ja
		}
		if ib != jb {
			return ib < jb
		}
		return ic < jc
	})
}

// Validate checks that the page set covers the book exactly: one TOC page,
// one section card per section, one concept card per chapter, no extras.
func Validate(b *book.Book, pages []RenderedPage) error {
	tocs := 0
	sections := make(map[int]int)
	chapters := make(map[[2]int]int)

	for _, p := range pages {
		switch p.Kind {
		case render.KindTOC:
			tocs++
		case render.KindSectionCard:
			sections[p.SectionIndex]++
		case render.KindConceptCard:
			chapters[[2]int{p.SectionIndex, p.ChapterIndex}]++
		default:
			return &AssemblyError{Message: fmt.Sprintf("page with unknown kind %q", p.Kind)}
		}
	}

	if tocs != 1 {
		return &AssemblyError{Message: fmt.Sprintf("expected 1 toc page, have %d", tocs)}
	}
	for si, sec := range b.Sections {
		if n := sections[si]; n != 1 {
			return &AssemblyError{Message: fmt.Sprintf("section %s has %d cards, want 1", sec.ID, n)}
		}
		for ci, ch := range sec.Chapters {
			if n := chapters[[2]int{si, ci}]; n != 1 {
				return &AssemblyError{Message: fmt.Sprintf("chapter %s has %d cards, want 1", ch.ID, n)}
			}
		}
	}

	want := 1 + b.SectionCount() + b.ChapterCount()
	if len(pages) != want {
		return &AssemblyError{Message: fmt.Sprintf("have %d pages, want %d", len(pages), want)}
	}
	return nil
}

// Assembler merges rendered pages into one PDF.
type Assembler struct {
	logger *slog.Logger
}

// New creates an Assembler.
func New(logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{logger: logger.With("component", "assembler")}
}

// Assemble validates page coverage against the book, orders the pages, and
// writes the merged deck PDF to outPath.
func (a *Assembler) Assemble(b *book.Book, pages []RenderedPage, outPath string) error {
	if err := Validate(b, pages); err != nil {
		return err
	}
	return a.AssemblePages(pages, outPath)
}

// AssemblePages orders and merges pages without coverage validation. Used
// for partial decks such as TOC-only output.
func (a *Assembler) AssemblePages(pages []RenderedPage, outPath string) error {
	if len(pages) == 0 {
		return &AssemblyError{Message: "no pages to assemble"}
	}
	Sort(pages)

	tmpDir, err := os.MkdirTemp(filepath.Dir(outPath), "deck-pages-")
	if err != nil {
		return &AssemblyError{Message: "create staging dir", Err: err}
	}
	defer os.RemoveAll(tmpDir)

	pagePDFs := make([]string, 0, len(pages))
	for i, p := range pages {
		pdfPath := filepath.Join(tmpDir, fmt.Sprintf("page-%04d.pdf", i))
		if err := render.ToPDF(p.PNG, p.Kind, pdfPath); err != nil {
			return &AssemblyError{Message: fmt.Sprintf("convert page %s", p.UnitID), Err: err}
		}
		pagePDFs = append(pagePDFs, pdfPath)
	}

	if err := api.MergeCreateFile(pagePDFs, outPath, false, nil); err != nil {
		return &AssemblyError{Message: "merge pages", Err: err}
	}

	a.logger.Info("deck assembled", "pages", len(pages), "path", outPath)
	return nil
}

// PageCount returns the number of pages in an assembled deck file.
func PageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return api.PageCount(f, nil)
}
