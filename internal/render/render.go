// Package render rasterizes one deck page per unit: a concept card for each
// chapter, a section card for each section, and a table-of-contents page for
// the book. All drawing happens on fixed-size pixel canvases with embedded
// fonts, so identical input produces identical PNG bytes. Units whose
// generated assets failed get an explicit placeholder instead of breaking
// the deck.
package render

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"

	"github.com/breakingbooks/bookdeck/internal/book"
)

// Canvas dimensions in pixels. Cards are A5 landscape at 180 dpi, the TOC
// page A4 portrait at the same scale.
const (
	CardWidth  = 1488
	CardHeight = 1050
	TOCWidth   = 1488
	TOCHeight  = 2104
)

const placeholderText = "content unavailable"

// PageKind tags the page variants.
type PageKind string

const (
	KindTOC         PageKind = "toc"
	KindSectionCard PageKind = "section-card"
	KindConceptCard PageKind = "concept-card"
)

// Page is one renderable deck page. Exactly the fields for its kind are set.
type Page struct {
	Kind    PageKind
	Book    *book.Book
	Section *book.Section
	Chapter *book.Chapter
}

// TOCPage builds the table-of-contents page for a book.
func TOCPage(b *book.Book) Page {
	return Page{Kind: KindTOC, Book: b}
}

// SectionCardPage builds the divider card page for a section.
func SectionCardPage(sec *book.Section) Page {
	return Page{Kind: KindSectionCard, Section: sec}
}

// ConceptCardPage builds the concept card page for a chapter. The section
// supplies the color theme.
func ConceptCardPage(sec *book.Section, ch *book.Chapter) Page {
	return Page{Kind: KindConceptCard, Section: sec, Chapter: ch}
}

// Renderer draws deck pages.
type Renderer struct {
	logger *slog.Logger
}

// New creates a Renderer.
func New(logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{logger: logger.With("component", "renderer")}
}

// Render draws one page and returns it as PNG bytes.
func (r *Renderer) Render(p Page) ([]byte, error) {
	if err := loadFonts(); err != nil {
		return nil, err
	}

	switch p.Kind {
	case KindTOC:
		if p.Book == nil {
			return nil, fmt.Errorf("toc page without book")
		}
		return r.renderTOC(p.Book)
	case KindSectionCard:
		if p.Section == nil {
			return nil, fmt.Errorf("section card without section")
		}
		return r.renderSectionCard(p.Section)
	case KindConceptCard:
		if p.Section == nil || p.Chapter == nil {
			return nil, fmt.Errorf("concept card without section and chapter")
		}
		return r.renderConceptCard(p.Section, p.Chapter)
	default:
		return nil, fmt.Errorf("unknown page kind %q", p.Kind)
	}
}

// renderConceptCard draws a chapter card: color title band, description and
// quotes on the left, the illustration on the right.
func (r *Renderer) renderConceptCard(sec *book.Section, ch *book.Chapter) ([]byte, error) {
	dc := gg.NewContext(CardWidth, CardHeight)
	theme := hexToColor(sec.Color.Hex)

	dc.SetColor(color.White)
	dc.Clear()

	// Title band.
	const bandH = 150.0
	dc.SetColor(theme)
	dc.DrawRectangle(0, 0, CardWidth, bandH)
	dc.Fill()

	dc.SetFontFace(newFace(boldFont, 52))
	dc.SetColor(color.White)
	dc.DrawStringWrapped(ch.DisplayTitle(), 56, bandH/2, 0, 0.5, CardWidth-112, 1.1, gg.AlignLeft)

	const (
		margin   = 56.0
		colSplit = 0.56
		imgX     = CardWidth*colSplit + 28
		imgY     = bandH + 48
		imgW     = CardWidth - imgX - margin
		imgH     = imgW / 2 // matches the generated 2:1 banner
	)

	r.drawImageSlot(dc, ch.Image, ch.Visual, imgX, imgY, imgW, imgH, theme)

	// Description column.
	textW := CardWidth*colSplit - margin - 28
	y := bandH + 64.0

	desc := ch.Description
	if desc == "" {
		desc = placeholderText
	}
	dc.SetFontFace(newFace(regularFont, 34))
	dc.SetColor(color.Black)
	dc.DrawStringWrapped(desc, margin, y, 0, 0, textW, 1.35, gg.AlignLeft)
	y += wrappedHeight(dc, desc, textW, 1.35) + 44

	// Quotes, each with a color accent bar.
	dc.SetFontFace(newFace(italicFont, 28))
	for _, q := range ch.Quotes {
		if y > CardHeight-120 {
			break
		}
		quote := "“" + q + "”"
		h := wrappedHeight(dc, quote, textW-28, 1.3)
		dc.SetColor(theme)
		dc.DrawRectangle(margin, y, 8, h)
		dc.Fill()
		dc.SetColor(color.RGBA{60, 60, 60, 255})
		dc.DrawStringWrapped(quote, margin+28, y, 0, 0, textW-28, 1.3, gg.AlignLeft)
		y += h + 28
	}

	// Comment under the image.
	if ch.Comment != "" {
		dc.SetFontFace(newFace(italicFont, 26))
		dc.SetColor(color.RGBA{90, 90, 90, 255})
		dc.DrawStringWrapped(ch.Comment, imgX, imgY+imgH+36, 0, 0, imgW, 1.3, gg.AlignLeft)
	}

	// Footer: position marker.
	dc.SetFontFace(newFace(regularFont, 24))
	dc.SetColor(theme)
	dc.DrawString(fmt.Sprintf("%s  ·  %d.%d", sec.Name, sec.Index+1, ch.Index+1),
		margin, CardHeight-40)

	return encodePNG(dc)
}

// renderSectionCard draws a section divider card: full-width color field
// with the section title, the introduction text, and a portrait
// illustration.
func (r *Renderer) renderSectionCard(sec *book.Section) ([]byte, error) {
	dc := gg.NewContext(CardWidth, CardHeight)
	theme := hexToColor(sec.Color.Hex)

	dc.SetColor(color.White)
	dc.Clear()

	const bandH = 240.0
	dc.SetColor(theme)
	dc.DrawRectangle(0, 0, CardWidth, bandH)
	dc.Fill()

	dc.SetFontFace(newFace(boldFont, 72))
	dc.SetColor(color.White)
	dc.DrawStringWrapped(sec.DisplayTitle(), 56, bandH/2, 0, 0.5, CardWidth-112, 1.1, gg.AlignLeft)

	const (
		margin = 56.0
		imgW   = 420.0
		imgH   = imgW * 640 / 384 // matches the generated portrait panel
	)
	imgX := CardWidth - imgW - margin
	imgY := bandH + 48.0

	r.drawImageSlot(dc, sec.Image, sec.Visual, imgX, imgY, imgW, imgH, theme)

	intro := sec.Introduction
	if intro == "" {
		intro = placeholderText
	}
	textW := imgX - margin - 48
	dc.SetFontFace(newFace(regularFont, 36))
	dc.SetColor(color.Black)
	dc.DrawStringWrapped(intro, margin, bandH+72, 0, 0, textW, 1.4, gg.AlignLeft)

	dc.SetFontFace(newFace(regularFont, 24))
	dc.SetColor(theme)
	dc.DrawString(fmt.Sprintf("Part %d  ·  %d chapters", sec.Index+1, len(sec.Chapters)),
		margin, CardHeight-40)

	return encodePNG(dc)
}

// renderTOC draws the deck overview page: the book title and every section
// with its chapters, each section keyed by its color swatch.
func (r *Renderer) renderTOC(b *book.Book) ([]byte, error) {
	dc := gg.NewContext(TOCWidth, TOCHeight)

	dc.SetColor(color.White)
	dc.Clear()

	const margin = 72.0
	y := 120.0

	dc.SetFontFace(newFace(boldFont, 58))
	dc.SetColor(color.Black)
	dc.DrawStringWrapped(b.Title, TOCWidth/2, y, 0.5, 0, TOCWidth-2*margin, 1.15, gg.AlignCenter)
	y += wrappedHeight(dc, b.Title, TOCWidth-2*margin, 1.15) + 72

	sectionFace := newFace(boldFont, 34)
	chapterFace := newFace(regularFont, 27)

	for _, sec := range b.Sections {
		if y > TOCHeight-140 {
			// Very long books overflow a single overview page; the listing
			// stays truncated rather than shrinking below legibility.
			dc.SetFontFace(chapterFace)
			dc.SetColor(color.RGBA{120, 120, 120, 255})
			dc.DrawString("…", margin, y)
			break
		}

		theme := hexToColor(sec.Color.Hex)
		dc.SetColor(theme)
		dc.DrawRectangle(margin, y-24, 28, 28)
		dc.Fill()

		dc.SetFontFace(sectionFace)
		dc.SetColor(color.Black)
		dc.DrawString(sec.Name, margin+48, y)
		y += 52

		dc.SetFontFace(chapterFace)
		dc.SetColor(color.RGBA{60, 60, 60, 255})
		for _, ch := range sec.Chapters {
			if y > TOCHeight-110 {
				break
			}
			dc.DrawString(fmt.Sprintf("%d.%d  %s", sec.Index+1, ch.Index+1, ch.Name), margin+72, y)
			y += 40
		}
		y += 28
	}

	return encodePNG(dc)
}

// drawImageSlot draws the unit illustration scaled and center-cropped into
// the slot, or a placeholder panel when the image is absent or failed.
func (r *Renderer) drawImageSlot(dc *gg.Context, data []byte, asset book.GeneratedAsset, x, y, w, h float64, theme color.Color) {
	if len(data) > 0 {
		img, _, err := image.Decode(bytes.NewReader(data))
		if err == nil {
			dc.DrawImage(fitImage(img, int(w), int(h)), int(x), int(y))
			return
		}
		r.logger.Warn("undecodable unit image", "unit", asset.UnitID, "error", err)
	}
	drawPlaceholder(dc, x, y, w, h)
}

// drawPlaceholder fills the slot with a neutral panel and an explicit
// unavailable marker.
func drawPlaceholder(dc *gg.Context, x, y, w, h float64) {
	dc.SetColor(color.RGBA{235, 235, 235, 255})
	dc.DrawRectangle(x, y, w, h)
	dc.Fill()
	dc.SetColor(color.RGBA{180, 180, 180, 255})
	dc.SetLineWidth(2)
	dc.DrawRectangle(x, y, w, h)
	dc.Stroke()

	dc.SetFontFace(newFace(regularFont, 26))
	dc.SetColor(color.RGBA{140, 140, 140, 255})
	dc.DrawStringAnchored(placeholderText, x+w/2, y+h/2, 0.5, 0.5)
}

// fitImage scales the source to cover the slot and center-crops the
// overflow.
func fitImage(src image.Image, w, h int) image.Image {
	sb := src.Bounds()
	sw, sh := sb.Dx(), sb.Dy()
	if sw == 0 || sh == 0 {
		return image.NewRGBA(image.Rect(0, 0, w, h))
	}

	// Scale so the smaller relative dimension fills the slot.
	scale := float64(w) / float64(sw)
	if s := float64(h) / float64(sh); s > scale {
		scale = s
	}
	tw, th := int(float64(sw)*scale+0.5), int(float64(sh)*scale+0.5)

	scaled := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, sb, draw.Over, nil)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	off := image.Point{X: (tw - w) / 2, Y: (th - h) / 2}
	draw.Draw(dst, dst.Bounds(), scaled, off, draw.Src)
	return dst
}

// wrappedHeight measures the height DrawStringWrapped will occupy.
func wrappedHeight(dc *gg.Context, s string, width, lineSpacing float64) float64 {
	lines := dc.WordWrap(s, width)
	fh := dc.FontHeight()
	return float64(len(lines)) * fh * lineSpacing
}

// hexToColor parses a #RRGGBB theme color. Malformed values fall back to a
// neutral gray rather than failing the page.
func hexToColor(s string) color.Color {
	s = strings.TrimPrefix(s, "#")
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 3 {
		return color.RGBA{128, 128, 128, 255}
	}
	return color.RGBA{raw[0], raw[1], raw[2], 255}
}

func encodePNG(dc *gg.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode page: %w", err)
	}
	return buf.Bytes(), nil
}
