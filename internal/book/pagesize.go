package book

// PDF page sizes in points (1 point = 1/72 inch). Card pages are A5
// landscape, table-of-contents pages A4 portrait. These come from the print
// target and must match exactly so the merged deck is uniformly paginated.
const (
	A4PortraitWidthPt  = 595.276
	A4PortraitHeightPt = 841.890

	A5LandscapeWidthPt  = 595.276
	A5LandscapeHeightPt = 419.528
)
