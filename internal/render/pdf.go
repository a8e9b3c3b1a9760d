package render

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/breakingbooks/bookdeck/internal/book"
)

// PageSizePt returns the physical page size in points for a page kind.
// Cards are A5 landscape, the TOC page A4 portrait, matching the sheet
// sizes of the printed deck.
func PageSizePt(kind PageKind) (w, h float64) {
	if kind == KindTOC {
		return book.A4PortraitWidthPt, book.A4PortraitHeightPt
	}
	return book.A5LandscapeWidthPt, book.A5LandscapeHeightPt
}

// ToPDF wraps rendered PNG bytes into a single-page PDF at the exact
// physical page size for the kind, written to outPath.
func ToPDF(png []byte, kind PageKind, outPath string) error {
	w, h := PageSizePt(kind)

	tmp, err := os.CreateTemp(filepath.Dir(outPath), "page-*.png")
	if err != nil {
		return fmt.Errorf("create temp image: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(png); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp image: %w", err)
	}

	desc := fmt.Sprintf("dim:%.2f %.2f, pos:full", w, h)
	imp, err := api.Import(desc, types.POINTS)
	if err != nil {
		return fmt.Errorf("build import config: %w", err)
	}

	if err := api.ImportImagesFile([]string{tmpPath}, outPath, imp, nil); err != nil {
		return fmt.Errorf("import page image: %w", err)
	}
	return nil
}
