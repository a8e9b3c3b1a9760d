package providers

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// enrichmentSchemaJSON is the output contract sent to the LLM as a
// structured-output response format and enforced locally before a response
// is accepted. Every property is required because strict structured outputs
// demand it; optional fields carry empty strings.
const enrichmentSchemaJSON = `{
  "type": "object",
  "properties": {
    "title": {
      "type": "string",
      "description": "Concise title that captures the core idea in a few words."
    },
    "description": {
      "type": "string",
      "description": "Concise explanation of the idea, at most three sentences."
    },
    "illustration": {
      "type": "string",
      "description": "Detailed description of a visual representing the idea, without any text elements."
    },
    "quotes": {
      "type": "array",
      "items": {"type": "string"},
      "description": "1-5 direct verbatim quotes from the text where the idea appears."
    },
    "comment": {
      "type": "string",
      "description": "Optional short editorial comment; empty string when none."
    }
  },
  "required": ["title", "description", "illustration", "quotes", "comment"],
  "additionalProperties": false
}`

var enrichmentSchema = jsonschema.MustCompileString("enrichment.json", enrichmentSchemaJSON)

// enrichmentSchemaMap returns the schema as a generic map for embedding in a
// response_format request field.
func enrichmentSchemaMap() map[string]any {
	var m map[string]any
	// The schema constant is known-good JSON; see enrichmentSchema above.
	_ = json.Unmarshal([]byte(enrichmentSchemaJSON), &m)
	return m
}

// validateEnrichment checks a raw LLM response against the enrichment output
// contract and decodes it.
func validateEnrichment(raw []byte) (*EnrichmentResult, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}
	if err := enrichmentSchema.Validate(v); err != nil {
		return nil, fmt.Errorf("response violates enrichment schema: %w", err)
	}

	var res EnrichmentResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("failed to decode enrichment response: %w", err)
	}
	return &res, nil
}
