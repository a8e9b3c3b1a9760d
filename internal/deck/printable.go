package deck

import (
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Impose writes a print-ready version of an assembled deck: two card pages
// per A4 portrait sheet, so a deck of A5 landscape cards cuts cleanly in
// half.
func Impose(deckPath, outPath string) error {
	nup, err := api.PDFNUpConfig(2, "formsize:A4, orientation:rd, border:off, margin:10", nil)
	if err != nil {
		return &AssemblyError{Message: "build imposition config", Err: err}
	}
	if err := api.NUpFile([]string{deckPath}, outPath, nil, nup, nil); err != nil {
		return &AssemblyError{Message: "impose deck", Err: err}
	}
	return nil
}
