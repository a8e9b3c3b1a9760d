// Package segment turns an EPUB archive into the structural book tree the
// rest of the pipeline works on. Top-level navigation entries become
// sections and their children become chapters; a flat table of contents
// yields one section per entry with the entry itself as the single chapter.
package segment

import (
	"io"
	"log/slog"
	"strings"

	"github.com/breakingbooks/bookdeck/internal/book"
)

// Segmenter builds book trees from EPUB files.
type Segmenter struct {
	logger *slog.Logger
}

// New creates a Segmenter.
func New(logger *slog.Logger) *Segmenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Segmenter{logger: logger.With("component", "segmenter")}
}

// SegmentFile segments an EPUB file on disk.
func (s *Segmenter) SegmentFile(epubPath string) (*book.Book, error) {
	ef, err := openEPUB(epubPath)
	if err != nil {
		return nil, &SegmentationError{Path: epubPath, Message: "unreadable EPUB container", Err: err}
	}
	defer ef.close()

	return s.build(ef, epubPath)
}

// Segment segments an EPUB archive from an in-memory reader. Name is used
// for error reporting only.
func (s *Segmenter) Segment(r io.ReaderAt, size int64, name string) (*book.Book, error) {
	ef, err := newEPUB(r, size)
	if err != nil {
		return nil, &SegmentationError{Path: name, Message: "unreadable EPUB container", Err: err}
	}
	return s.build(ef, name)
}

func (s *Segmenter) build(ef *epubFile, src string) (*book.Book, error) {
	if len(ef.toc) == 0 {
		return nil, &SegmentationError{Path: src, Message: "no table of contents"}
	}

	ranges := computeTextRanges(ef.toc, len(ef.spine))

	b := &book.Book{Title: ef.title}
	if b.Title == "" {
		b.Title = "Untitled"
	}

	for i := range ef.toc {
		entry := &ef.toc[i]
		si := len(b.Sections)
		name := entry.Title
		if name == "" {
			name = "Untitled"
		}

		sec := &book.Section{
			ID:    book.SectionID(si, name),
			Name:  name,
			Index: si,
			Color: book.SectionColor(si),
			Raw:   s.rangeText(ef, ranges[entry]),
		}

		if len(entry.Children) == 0 {
			// Flat TOC entry: the section is its own single chapter and
			// shares its text range.
			sec.Chapters = append(sec.Chapters, &book.Chapter{
				ID:           book.ChapterID(si, 0, name),
				Name:         name,
				SectionIndex: si,
				Index:        0,
				Raw:          sec.Raw,
			})
		}
		for j := range entry.Children {
			child := &entry.Children[j]
			ci := len(sec.Chapters)
			chName := child.Title
			if chName == "" {
				chName = "Untitled"
			}
			sec.Chapters = append(sec.Chapters, &book.Chapter{
				ID:           book.ChapterID(si, ci, chName),
				Name:         chName,
				SectionIndex: si,
				Index:        ci,
				Raw:          s.rangeText(ef, ranges[child]),
			})
		}

		// A section whose own documents hold no prose still needs text for
		// enrichment; borrow the first chapter's.
		if strings.TrimSpace(sec.Raw) == "" && len(sec.Chapters) > 0 {
			sec.Raw = sec.Chapters[0].Raw
		}

		b.Sections = append(b.Sections, sec)
	}

	if b.SectionCount() == 0 {
		return nil, &SegmentationError{Path: src, Message: "zero sections after segmentation"}
	}

	s.logger.Info("segmented book",
		"title", b.Title,
		"sections", b.SectionCount(),
		"chapters", b.ChapterCount())

	return b, nil
}

// rangeText extracts and cleans the text of a contiguous spine range.
func (s *Segmenter) rangeText(ef *epubFile, r spineRange) string {
	var parts []string
	for i := r.start; i < r.end && i < len(ef.spine); i++ {
		data, err := ef.readFile(ef.spine[i])
		if err != nil {
			s.logger.Warn("unreadable spine document", "path", ef.spine[i], "error", err)
			continue
		}
		text, err := cleanText(data)
		if err != nil {
			s.logger.Warn("unparseable spine document", "path", ef.spine[i], "error", err)
			continue
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// spineRange is a half-open range of spine positions belonging to one TOC
// node.
type spineRange struct {
	start, end int
}

// computeTextRanges assigns each TOC node the spine range from its own start
// document up to the start of the next node in reading order. A parent's
// range ends where its first child begins, so a section's own range covers
// only its introduction. Ranges are keyed by node identity, so entries that
// repeat a title and path still get their own range.
func computeTextRanges(toc []tocEntry, spineLen int) map[*tocEntry]spineRange {
	var order []*tocEntry
	var flatten func(entries []tocEntry)
	flatten = func(entries []tocEntry) {
		for i := range entries {
			order = append(order, &entries[i])
			flatten(entries[i].Children)
		}
	}
	flatten(toc)

	ranges := make(map[*tocEntry]spineRange, len(order))
	for i, e := range order {
		if e.SpineIndex < 0 {
			ranges[e] = spineRange{}
			continue
		}
		end := spineLen
		for _, next := range order[i+1:] {
			if next.SpineIndex > e.SpineIndex {
				end = next.SpineIndex
				break
			}
			if next.SpineIndex == e.SpineIndex {
				// Next node starts in the same document; this node's text is
				// that one document.
				end = e.SpineIndex + 1
				break
			}
		}
		ranges[e] = spineRange{start: e.SpineIndex, end: end}
	}
	return ranges
}
