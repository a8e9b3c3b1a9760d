// Package book defines the structural model of a segmented book: an ordered
// tree of sections and chapters plus the generated-asset bookkeeping that the
// enrichment pipeline fills in. The tree's shape is fixed at segmentation
// time; enrichment only writes content fields.
package book

import (
	"fmt"
	"strings"
	"unicode"
)

// UnitKind distinguishes the two structural levels that get enriched and
// rendered.
type UnitKind string

const (
	UnitSection UnitKind = "section"
	UnitChapter UnitKind = "chapter"
)

// Book is the root of the segmented tree. Sections keep their source order.
type Book struct {
	Title    string     `json:"title"`
	Sections []*Section `json:"sections"`
}

// Section represents one book part. Position is the index within the Book.
type Section struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Index int    `json:"index"`

	// Raw introduction text extracted at segmentation time.
	Raw string `json:"-"`

	// Color is the display color assigned from the theme palette,
	// a stable function of Index.
	Color Color `json:"color"`

	Chapters []*Chapter `json:"chapters"`

	// Generated content, written by the enrichment orchestrator. Title is
	// an optional override of the TOC name for display.
	Title        string `json:"title,omitempty"`
	Introduction string `json:"introduction,omitempty"`
	Illustration string `json:"illustration,omitempty"`
	Image        []byte `json:"-"`

	Text   GeneratedAsset `json:"text_asset"`
	Visual GeneratedAsset `json:"visual_asset"`
}

// Chapter represents one concept card. Position is (section index, index
// within the section). A chapter is owned by exactly one section.
type Chapter struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	SectionIndex int    `json:"section_index"`
	Index        int    `json:"index"`

	// Raw text excerpt extracted at segmentation time.
	Raw string `json:"-"`

	// Generated content. Title is an optional override of the TOC name
	// for display.
	Title        string   `json:"title,omitempty"`
	Description  string   `json:"description,omitempty"`
	Quotes       []string `json:"quotes,omitempty"`
	Comment      string   `json:"comment,omitempty"`
	Illustration string   `json:"illustration,omitempty"`
	Image        []byte   `json:"-"`

	Text   GeneratedAsset `json:"text_asset"`
	Visual GeneratedAsset `json:"visual_asset"`
}

// UnitRef identifies one enrichable unit in the tree. Chapter is -1 when the
// ref points at a section.
type UnitRef struct {
	Kind    UnitKind
	Section int
	Chapter int
}

// Units returns every enrichable unit in tree order: all sections first,
// then every chapter section by section. Execution order downstream is
// irrelevant; the refs exist so results can be written back to the correct
// tree position.
func (b *Book) Units() []UnitRef {
	refs := make([]UnitRef, 0, b.SectionCount()+b.ChapterCount())
	for si := range b.Sections {
		refs = append(refs, UnitRef{Kind: UnitSection, Section: si, Chapter: -1})
	}
	for si, sec := range b.Sections {
		for ci := range sec.Chapters {
			refs = append(refs, UnitRef{Kind: UnitChapter, Section: si, Chapter: ci})
		}
	}
	return refs
}

// SectionAt returns the section for a ref. Panics on out-of-range refs;
// refs are only produced by Units() over the same tree.
func (b *Book) SectionAt(ref UnitRef) *Section {
	return b.Sections[ref.Section]
}

// ChapterAt returns the chapter for a chapter ref, or nil for section refs.
func (b *Book) ChapterAt(ref UnitRef) *Chapter {
	if ref.Kind != UnitChapter {
		return nil
	}
	return b.Sections[ref.Section].Chapters[ref.Chapter]
}

// UnitID returns the deterministic identity of the unit a ref points at.
func (b *Book) UnitID(ref UnitRef) string {
	if ref.Kind == UnitSection {
		return b.Sections[ref.Section].ID
	}
	return b.Sections[ref.Section].Chapters[ref.Chapter].ID
}

// SectionCount returns the number of sections.
func (b *Book) SectionCount() int {
	return len(b.Sections)
}

// ChapterCount returns the total number of chapters across all sections.
func (b *Book) ChapterCount() int {
	n := 0
	for _, sec := range b.Sections {
		n += len(sec.Chapters)
	}
	return n
}

// DisplayTitle returns the generated card title, falling back to the TOC
// name when enrichment produced none.
func (s *Section) DisplayTitle() string {
	if s.Title != "" {
		return s.Title
	}
	return s.Name
}

// DisplayTitle returns the generated card title, falling back to the TOC
// name when enrichment produced none.
func (c *Chapter) DisplayTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return c.Name
}

// SectionID derives the deterministic identity for a section from its
// position and title.
func SectionID(index int, name string) string {
	return fmt.Sprintf("s%02d-%s", index, slug(name))
}

// ChapterID derives the deterministic identity for a chapter from its
// position and title.
func ChapterID(sectionIndex, index int, name string) string {
	return fmt.Sprintf("s%02d.c%02d-%s", sectionIndex, index, slug(name))
}

// slug reduces a title to a short file-safe fragment.
func slug(s string) string {
	var sb strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
			lastDash = false
		case !lastDash:
			sb.WriteByte('-')
			lastDash = true
		}
		if sb.Len() >= 40 {
			break
		}
	}
	return strings.Trim(sb.String(), "-")
}
