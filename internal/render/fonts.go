package render

import (
	"fmt"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
)

var (
	fontsOnce   sync.Once
	fontsErr    error
	regularFont *truetype.Font
	boldFont    *truetype.Font
	italicFont  *truetype.Font
)

// loadFonts parses the embedded Go fonts once. Rendering never depends on
// fonts installed on the host.
func loadFonts() error {
	fontsOnce.Do(func() {
		if regularFont, fontsErr = truetype.Parse(goregular.TTF); fontsErr != nil {
			fontsErr = fmt.Errorf("parse regular font: %w", fontsErr)
			return
		}
		if boldFont, fontsErr = truetype.Parse(gobold.TTF); fontsErr != nil {
			fontsErr = fmt.Errorf("parse bold font: %w", fontsErr)
			return
		}
		if italicFont, fontsErr = truetype.Parse(goitalic.TTF); fontsErr != nil {
			fontsErr = fmt.Errorf("parse italic font: %w", fontsErr)
		}
	})
	return fontsErr
}

func newFace(f *truetype.Font, size float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}
