// Package providers contains the clients for the external generative
// services the pipeline depends on: text enrichment (LLM completion) and
// image generation. The rest of the pipeline depends only on the interfaces
// and request/response contracts defined here.
package providers

import (
	"context"
	"time"
)

// EnrichmentClient is the text-enrichment service boundary. Implementations
// are stateless and idempotent per unit; retry policy lives in the caller.
type EnrichmentClient interface {
	// EnrichUnit derives card content from one unit's raw text.
	EnrichUnit(ctx context.Context, req *EnrichmentRequest) (*EnrichmentResult, error)

	// Name returns the client identifier (e.g., "openai").
	Name() string
}

// ImageClient is the image-generation service boundary.
type ImageClient interface {
	// GenerateImage produces one image for a prompt at the requested size.
	GenerateImage(ctx context.Context, req *ImageRequest) (*ImageResult, error)

	// Name returns the client identifier (e.g., "runware").
	Name() string
}

// EnrichmentRequest carries one unit's raw text to the enrichment service.
// RawText must be non-empty after footnote/citation stripping.
type EnrichmentRequest struct {
	RawText  string `json:"raw_text"`
	UnitKind string `json:"unit_kind"` // "section" or "chapter"

	// MaxQuotes caps the number of extracted key quotes.
	MaxQuotes int `json:"max_quotes,omitempty"`

	// Request tracking
	RequestID string `json:"-"`
}

// EnrichmentResult is the structured record the enrichment service returns.
type EnrichmentResult struct {
	// Content
	Title        string   `json:"title,omitempty"`
	Description  string   `json:"description"`
	Quotes       []string `json:"quotes"`
	Comment      string   `json:"comment,omitempty"`
	Illustration string   `json:"illustration,omitempty"` // visual prompt for the image stage

	// Token counts and cost
	PromptTokens     int     `json:"prompt_tokens,omitempty"`
	CompletionTokens int     `json:"completion_tokens,omitempty"`
	CostUSD          float64 `json:"cost_usd,omitempty"`

	// Provider info
	Provider  string        `json:"provider,omitempty"`
	ModelUsed string        `json:"model_used,omitempty"`
	Execution time.Duration `json:"-"`
}

// ImageRequest asks for one generated image. Width and height fix the
// template's expected aspect ratio.
type ImageRequest struct {
	Prompt string `json:"prompt"`
	Width  int    `json:"width"`
	Height int    `json:"height"`

	// Request tracking
	RequestID string `json:"-"`
}

// ImageResult holds encoded image bytes from the generation service.
type ImageResult struct {
	Data   []byte `json:"-"`
	Format string `json:"format,omitempty"` // "png" or "jpeg"

	CostUSD   float64       `json:"cost_usd,omitempty"`
	Provider  string        `json:"provider,omitempty"`
	Execution time.Duration `json:"-"`
}
