package providers

import (
	"fmt"
	"strings"
)

// Prompt templates for unit enrichment. The chapter prompt produces one
// concept card; the section prompt produces a section introduction.

const chapterPromptTemplate = `# Instruction
You are reading an excerpt of a book covering one concept. Create a single card that captures the key idea of this excerpt. The card has a title, a description, an illustration description and a set of quotes containing, supporting or embodying the idea.

## Guidelines:
0. ! Use the language of the book for all your responses, e.g. if the book is in French, use French for all your responses.
1. The card represents ONE distinct, atomic idea from the text.
2. Use clear, precise language in the description (at most 3 sentences).
3. Create a simple, precise description of a PHOTOGRAPHIC illustration that gives understanding of the idea at first glance. The description should always be in English.
4. The illustration should be of a scene or situation representative of the idea; there should be NO LABEL, NO DIAGRAM and NO TEXT.
5. Extract 1 to %d direct quotes that best exemplify the idea. Ensure quotes are full sentences that can be read standalone.
6. Add a short editorial comment only when the excerpt calls for context; otherwise leave it empty.

# Book excerpt

%s
`

const sectionPromptTemplate = `# Instruction
You are reading the opening of a section of a book. Write an introduction card for this section: a title, an introduction to the key questions of this section (as the description), an illustration description and a set of quotes.

## Guidelines:
0. ! Use the language of the book for all your responses.
1. The description clearly articulates the thematic questions this section explores.
2. The illustration is a detailed, evocative description of a landscape that captures the section's emotional essence. It should always be in English and contain NO LABEL, NO DIAGRAM and NO TEXT.
3. Extract 1 to %d key quotes that highlight important moments or revelations.
4. Leave the comment empty.

# Section opening

%s
`

// buildPrompt composes the enrichment prompt for a unit.
func buildPrompt(req *EnrichmentRequest) string {
	maxQuotes := req.MaxQuotes
	if maxQuotes <= 0 {
		maxQuotes = 5
	}
	text := strings.TrimSpace(req.RawText)
	if req.UnitKind == "section" {
		return fmt.Sprintf(sectionPromptTemplate, maxQuotes, text)
	}
	return fmt.Sprintf(chapterPromptTemplate, maxQuotes, text)
}

// negativeImagePrompt steers the image backend away from text artifacts.
const negativeImagePrompt = "Text, label, diagram, blurry, low quality, distorted"
