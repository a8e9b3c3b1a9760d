package book

// Color is a named display color used for consistent visual tagging of a
// section and its chapters' cards.
type Color struct {
	Name string `json:"name"`
	Hex  string `json:"hex"`
}

// palette holds contrasting theme colors. Assignment is a stable function of
// section index so re-runs tag the same section with the same color.
var palette = []Color{
	{Name: "Deep Teal", Hex: "#1F6F6B"},
	{Name: "Burnt Sienna", Hex: "#B5542C"},
	{Name: "Indigo", Hex: "#3B4B8C"},
	{Name: "Moss Green", Hex: "#5A7D2A"},
	{Name: "Plum", Hex: "#7B3B6E"},
	{Name: "Amber", Hex: "#C28E1C"},
	{Name: "Slate Blue", Hex: "#4A6FA5"},
	{Name: "Brick Red", Hex: "#9E3A38"},
}

// SectionColor returns the theme color for a section index.
func SectionColor(index int) Color {
	if index < 0 {
		index = 0
	}
	return palette[index%len(palette)]
}

// PaletteSize returns the number of distinct theme colors.
func PaletteSize() int {
	return len(palette)
}
