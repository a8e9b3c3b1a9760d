package book

import (
	"testing"
)

func testBook() *Book {
	b := &Book{Title: "Test Book"}
	for si := 0; si < 3; si++ {
		sec := &Section{
			ID:    SectionID(si, "Part"),
			Name:  "Part",
			Index: si,
			Color: SectionColor(si),
		}
		for ci := 0; ci < si+1; ci++ {
			sec.Chapters = append(sec.Chapters, &Chapter{
				ID:           ChapterID(si, ci, "Idea"),
				Name:         "Idea",
				SectionIndex: si,
				Index:        ci,
			})
		}
		b.Sections = append(b.Sections, sec)
	}
	return b
}

func TestUnits(t *testing.T) {
	b := testBook()

	units := b.Units()
	if len(units) != b.SectionCount()+b.ChapterCount() {
		t.Fatalf("expected %d units, got %d", b.SectionCount()+b.ChapterCount(), len(units))
	}

	// Sections first, in order.
	for i := 0; i < 3; i++ {
		if units[i].Kind != UnitSection || units[i].Section != i {
			t.Errorf("unit %d: expected section %d, got %+v", i, i, units[i])
		}
	}

	// Then chapters grouped by section, in order.
	prev := UnitRef{Section: -1, Chapter: -1}
	for _, ref := range units[3:] {
		if ref.Kind != UnitChapter {
			t.Fatalf("expected chapter ref, got %+v", ref)
		}
		if ref.Section < prev.Section {
			t.Errorf("chapter refs out of section order: %+v after %+v", ref, prev)
		}
		if ref.Section == prev.Section && ref.Chapter != prev.Chapter+1 {
			t.Errorf("chapter refs out of order within section: %+v after %+v", ref, prev)
		}
		prev = ref
	}
}

func TestUnitID(t *testing.T) {
	b := testBook()

	seen := map[string]bool{}
	for _, ref := range b.Units() {
		id := b.UnitID(ref)
		if id == "" {
			t.Fatalf("empty unit ID for %+v", ref)
		}
		if seen[id] {
			t.Fatalf("duplicate unit ID %q", id)
		}
		seen[id] = true
	}
}

func TestIDDeterministic(t *testing.T) {
	a := ChapterID(1, 2, "The Precipice: A Study")
	b := ChapterID(1, 2, "The Precipice: A Study")
	if a != b {
		t.Fatalf("IDs differ: %q vs %q", a, b)
	}
	if a == ChapterID(1, 3, "The Precipice: A Study") {
		t.Fatal("IDs must differ by position")
	}
}

func TestSlug(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Hello, World!", "hello-world"},
		{"  spaced   out  ", "spaced-out"},
		{"déjà vu", "déjà-vu"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := slug(tc.in); got != tc.want {
			t.Errorf("slug(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSectionColorStable(t *testing.T) {
	for i := 0; i < 20; i++ {
		if SectionColor(i) != SectionColor(i) {
			t.Fatalf("color for index %d not stable", i)
		}
	}

	// Adjacent sections get distinct colors.
	for i := 0; i < PaletteSize()-1; i++ {
		if SectionColor(i) == SectionColor(i+1) {
			t.Errorf("sections %d and %d share a color", i, i+1)
		}
	}
}

func TestAssetTransitions(t *testing.T) {
	a := GeneratedAsset{Kind: AssetText, UnitID: "u1", Status: StatusPending}

	a.MarkFailed("rate limited")
	if a.Succeeded() || a.Error == "" {
		t.Fatalf("expected failed asset with error, got %+v", a)
	}

	a.MarkSucceeded()
	if !a.Succeeded() || a.Error != "" {
		t.Fatalf("expected succeeded asset without error, got %+v", a)
	}
}

func TestDisplayTitle(t *testing.T) {
	sec := &Section{Name: "Part One"}
	if got := sec.DisplayTitle(); got != "Part One" {
		t.Errorf("DisplayTitle() = %q, want TOC name", got)
	}
	sec.Title = "The Opening Act"
	if got := sec.DisplayTitle(); got != "The Opening Act" {
		t.Errorf("DisplayTitle() = %q, want generated title", got)
	}

	ch := &Chapter{Name: "Chapter One"}
	if got := ch.DisplayTitle(); got != "Chapter One" {
		t.Errorf("DisplayTitle() = %q, want TOC name", got)
	}
	ch.Title = "A Fresh Start"
	if got := ch.DisplayTitle(); got != "A Fresh Start" {
		t.Errorf("DisplayTitle() = %q, want generated title", got)
	}
}
