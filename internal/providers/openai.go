package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"golang.org/x/time/rate"
)

const (
	OpenAIName         = "openai"
	openAIDefaultModel = "gpt-4o-mini"

	// Pricing approximations in USD per 1M tokens.
	openAIInputCostPer1M  = 0.15
	openAIOutputCostPer1M = 0.60
)

// OpenAIConfig holds configuration for the OpenAI enrichment client.
type OpenAIConfig struct {
	APIKey     string
	Model      string        // "gpt-4o-mini" (default)
	RateLimit  float64       // Requests per second
	MaxRetries int           // Retry attempts for SDK transport
	Timeout    time.Duration // Per-call timeout
	BaseURL    string        // Optional (tests)
	HTTPClient *http.Client  // Optional (tests)
}

// OpenAIEnrichment implements EnrichmentClient using the official OpenAI SDK
// with structured outputs.
type OpenAIEnrichment struct {
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	client  openai.Client
}

// NewOpenAIEnrichment creates a new OpenAI enrichment client.
func NewOpenAIEnrichment(cfg OpenAIConfig) *OpenAIEnrichment {
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	if cfg.RateLimit <= 0 {
		// Default to ~120 RPM.
		cfg.RateLimit = 2.0
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIEnrichment{
		model:   cfg.Model,
		timeout: cfg.Timeout,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		client:  openai.NewClient(opts...),
	}
}

// Name returns the client identifier.
func (c *OpenAIEnrichment) Name() string {
	return OpenAIName
}

// EnrichUnit derives card content from one unit's raw text via a chat
// completion with a JSON-schema response format. The response is validated
// locally before being accepted.
func (c *OpenAIEnrichment) EnrichUnit(ctx context.Context, req *EnrichmentRequest) (*EnrichmentResult, error) {
	start := time.Now()

	if strings.TrimSpace(req.RawText) == "" {
		return nil, &EnrichmentError{
			Class:   ClassInvalidInput,
			Message: "unit raw text is empty after cleaning",
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &EnrichmentError{Class: ClassTimeout, Message: "rate limit wait cancelled", Err: err}
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(buildPrompt(req)),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "unit_enrichment",
					Schema: enrichmentSchemaMap(),
					Strict: openai.Bool(true),
				},
			},
		},
	}

	resp, err := c.client.Chat.Completions.New(callCtx, params)
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &EnrichmentError{Class: ClassUnknown, Message: "completion returned no choices"}
	}

	choice := resp.Choices[0]
	if choice.FinishReason == "content_filter" {
		return nil, &EnrichmentError{
			Class:   ClassContentRejected,
			Message: "completion stopped by content filter",
		}
	}

	result, err := validateEnrichment([]byte(choice.Message.Content))
	if err != nil {
		return nil, &EnrichmentError{Class: ClassInvalidInput, Message: "malformed completion", Err: err}
	}

	result.PromptTokens = int(resp.Usage.PromptTokens)
	result.CompletionTokens = int(resp.Usage.CompletionTokens)
	result.CostUSD = float64(resp.Usage.PromptTokens)*(openAIInputCostPer1M/1e6) +
		float64(resp.Usage.CompletionTokens)*(openAIOutputCostPer1M/1e6)
	result.Provider = OpenAIName
	result.ModelUsed = string(resp.Model)
	result.Execution = time.Since(start)

	return result, nil
}

// mapOpenAIError converts SDK errors into classified enrichment errors.
func mapOpenAIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &EnrichmentError{Class: ClassTimeout, Message: "completion timed out", Err: err}
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		class := classifyStatus(apiErr.StatusCode)
		if apiErr.StatusCode == http.StatusBadRequest &&
			strings.Contains(strings.ToLower(apiErr.Message), "content") &&
			strings.Contains(strings.ToLower(apiErr.Message), "policy") {
			class = ClassContentRejected
		}

		retryAfter := time.Duration(0)
		if apiErr.StatusCode == http.StatusTooManyRequests && apiErr.Response != nil {
			retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}

		return &EnrichmentError{
			Class:      class,
			Message:    fmt.Sprintf("OpenAI error (status %d): %s", apiErr.StatusCode, apiErr.Message),
			RetryAfter: retryAfter,
			Err:        err,
		}
	}

	return &EnrichmentError{Class: ClassUnknown, Message: "completion request failed", Err: err}
}
