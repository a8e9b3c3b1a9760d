package providers

import (
	"strings"
	"testing"
)

func TestValidateEnrichment(t *testing.T) {
	t.Run("valid response", func(t *testing.T) {
		raw := `{
			"title": "The Map Is Not the Territory",
			"description": "Models of reality are always simplifications.",
			"illustration": "A hand-drawn map dissolving into a real landscape.",
			"quotes": ["All models are wrong, but some are useful."],
			"comment": ""
		}`

		res, err := validateEnrichment([]byte(raw))
		if err != nil {
			t.Fatalf("validateEnrichment() error = %v", err)
		}
		if res.Title != "The Map Is Not the Territory" {
			t.Errorf("unexpected title: %q", res.Title)
		}
		if len(res.Quotes) != 1 {
			t.Errorf("expected 1 quote, got %d", len(res.Quotes))
		}
		if res.Comment != "" {
			t.Errorf("expected empty comment, got %q", res.Comment)
		}
	})

	t.Run("not JSON", func(t *testing.T) {
		_, err := validateEnrichment([]byte("here is your card: ..."))
		if err == nil {
			t.Fatal("expected error for non-JSON response")
		}
		if !strings.Contains(err.Error(), "not valid JSON") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("missing required field", func(t *testing.T) {
		raw := `{"title": "T", "description": "D", "quotes": [], "comment": ""}`
		_, err := validateEnrichment([]byte(raw))
		if err == nil {
			t.Fatal("expected schema violation for missing illustration")
		}
	})

	t.Run("wrong quote type", func(t *testing.T) {
		raw := `{
			"title": "T",
			"description": "D",
			"illustration": "I",
			"quotes": [42],
			"comment": ""
		}`
		_, err := validateEnrichment([]byte(raw))
		if err == nil {
			t.Fatal("expected schema violation for numeric quote")
		}
	})

	t.Run("extra property rejected", func(t *testing.T) {
		raw := `{
			"title": "T",
			"description": "D",
			"illustration": "I",
			"quotes": [],
			"comment": "",
			"extra": true
		}`
		_, err := validateEnrichment([]byte(raw))
		if err == nil {
			t.Fatal("expected schema violation for extra property")
		}
	})
}

func TestEnrichmentSchemaMap(t *testing.T) {
	m := enrichmentSchemaMap()
	if m["type"] != "object" {
		t.Errorf("schema type = %v, want object", m["type"])
	}
	props, ok := m["properties"].(map[string]any)
	if !ok {
		t.Fatal("schema has no properties map")
	}
	for _, field := range []string{"title", "description", "illustration", "quotes", "comment"} {
		if _, ok := props[field]; !ok {
			t.Errorf("schema missing property %q", field)
		}
	}
}

func TestBuildPrompt(t *testing.T) {
	t.Run("chapter prompt embeds text", func(t *testing.T) {
		p := buildPrompt(&EnrichmentRequest{RawText: "the quick brown fox", UnitKind: "chapter"})
		if !strings.Contains(p, "the quick brown fox") {
			t.Error("prompt does not embed raw text")
		}
	})

	t.Run("section prompt differs from chapter prompt", func(t *testing.T) {
		c := buildPrompt(&EnrichmentRequest{RawText: "x", UnitKind: "chapter"})
		s := buildPrompt(&EnrichmentRequest{RawText: "x", UnitKind: "section"})
		if c == s {
			t.Error("expected distinct prompts per unit kind")
		}
	})

	t.Run("default quote cap", func(t *testing.T) {
		p := buildPrompt(&EnrichmentRequest{RawText: "x", UnitKind: "chapter"})
		if !strings.Contains(p, "5") {
			t.Error("prompt does not mention default quote cap")
		}
	})
}
