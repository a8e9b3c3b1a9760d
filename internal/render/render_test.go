package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/breakingbooks/bookdeck/internal/book"
)

func testSection(t *testing.T, withImage bool) *book.Section {
	t.Helper()
	sec := &book.Section{
		ID:           book.SectionID(0, "Part One"),
		Name:         "Part One",
		Index:        0,
		Color:        book.SectionColor(0),
		Introduction: "What this part of the book is about, in a few sentences of generated prose.",
	}
	sec.Text.MarkSucceeded()
	if withImage {
		sec.Image = solidPNG(t, 384, 640)
		sec.Visual.MarkSucceeded()
	}
	ch := &book.Chapter{
		ID:           book.ChapterID(0, 0, "The First Idea"),
		Name:         "The First Idea",
		SectionIndex: 0,
		Index:        0,
		Description:  "A concise explanation of the first idea in the book.",
		Quotes:       []string{"A direct quote from the text.", "Another memorable line."},
		Comment:      "A short editorial remark.",
	}
	ch.Text.MarkSucceeded()
	if withImage {
		ch.Image = solidPNG(t, 768, 384)
		ch.Visual.MarkSucceeded()
	}
	sec.Chapters = []*book.Chapter{ch}
	return sec
}

func solidPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{200, 120, 80, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func decodeDims(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode rendered page: %v", err)
	}
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestRenderConceptCard(t *testing.T) {
	sec := testSection(t, true)
	r := New(nil)

	data, err := r.Render(ConceptCardPage(sec, sec.Chapters[0]))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if w, h := decodeDims(t, data); w != CardWidth || h != CardHeight {
		t.Errorf("card dims = %dx%d, want %dx%d", w, h, CardWidth, CardHeight)
	}
}

func TestRenderSectionCard(t *testing.T) {
	sec := testSection(t, true)
	r := New(nil)

	data, err := r.Render(SectionCardPage(sec))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if w, h := decodeDims(t, data); w != CardWidth || h != CardHeight {
		t.Errorf("card dims = %dx%d", w, h)
	}
}

func TestRenderTOC(t *testing.T) {
	b := &book.Book{Title: "Test Book", Sections: []*book.Section{testSection(t, false)}}
	r := New(nil)

	data, err := r.Render(TOCPage(b))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if w, h := decodeDims(t, data); w != TOCWidth || h != TOCHeight {
		t.Errorf("toc dims = %dx%d", w, h)
	}
}

func TestRenderPlaceholders(t *testing.T) {
	t.Run("failed image asset", func(t *testing.T) {
		sec := testSection(t, false)
		ch := sec.Chapters[0]
		ch.Visual.MarkFailed("generation rejected")

		data, err := New(nil).Render(ConceptCardPage(sec, ch))
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if len(data) == 0 {
			t.Fatal("placeholder page is empty")
		}
	})

	t.Run("failed text asset", func(t *testing.T) {
		sec := testSection(t, false)
		ch := sec.Chapters[0]
		ch.Description = ""
		ch.Quotes = nil
		ch.Comment = ""
		ch.Text.MarkFailed("enrichment rejected")

		data, err := New(nil).Render(ConceptCardPage(sec, ch))
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if len(data) == 0 {
			t.Fatal("placeholder page is empty")
		}
	})

	t.Run("fully absent assets", func(t *testing.T) {
		sec := &book.Section{Name: "Bare", Color: book.SectionColor(3)}
		data, err := New(nil).Render(SectionCardPage(sec))
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if len(data) == 0 {
			t.Fatal("placeholder page is empty")
		}
	})

	t.Run("corrupt image bytes", func(t *testing.T) {
		sec := testSection(t, false)
		ch := sec.Chapters[0]
		ch.Image = []byte("not a png")
		ch.Visual.MarkSucceeded()

		data, err := New(nil).Render(ConceptCardPage(sec, ch))
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if len(data) == 0 {
			t.Fatal("page is empty")
		}
	})
}

func TestRenderDeterministic(t *testing.T) {
	sec := testSection(t, true)
	r := New(nil)

	a, err := r.Render(ConceptCardPage(sec, sec.Chapters[0]))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	b, err := r.Render(ConceptCardPage(sec, sec.Chapters[0]))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("identical input should produce identical page bytes")
	}
}

func TestRenderInvalidPage(t *testing.T) {
	r := New(nil)
	if _, err := r.Render(Page{Kind: KindConceptCard}); err == nil {
		t.Error("expected error for concept card without chapter")
	}
	if _, err := r.Render(Page{Kind: "poster"}); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestRenderUsesTitleOverride(t *testing.T) {
	r := New(nil)

	sec := testSection(t, false)
	ch := sec.Chapters[0]

	base, err := r.Render(ConceptCardPage(sec, ch))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	ch.Title = "A Better Card Title"
	titled, err := r.Render(ConceptCardPage(sec, ch))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if bytes.Equal(base, titled) {
		t.Error("concept card ignores the generated title")
	}

	secBase, err := r.Render(SectionCardPage(sec))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	sec.Title = "A Better Part Title"
	secTitled, err := r.Render(SectionCardPage(sec))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if bytes.Equal(secBase, secTitled) {
		t.Error("section card ignores the generated title")
	}
}

func TestPageSizePt(t *testing.T) {
	w, h := PageSizePt(KindConceptCard)
	if w != book.A5LandscapeWidthPt || h != book.A5LandscapeHeightPt {
		t.Errorf("card size = %.2fx%.2f", w, h)
	}
	tw, th := PageSizePt(KindTOC)
	if tw != book.A4PortraitWidthPt || th != book.A4PortraitHeightPt {
		t.Errorf("toc page = %.3fx%.3f pt, want A4 portrait %.3fx%.3f",
			tw, th, book.A4PortraitWidthPt, book.A4PortraitHeightPt)
	}
}
