package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func enrichmentCompletionJSON(t *testing.T, content string) []byte {
	t.Helper()
	resp := map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{
			{
				"index": 0,
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     200,
			"completion_tokens": 80,
			"total_tokens":      280,
		},
	}
	out, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal completion: %v", err)
	}
	return out
}

func TestOpenAIEnrichmentSuccess(t *testing.T) {
	var payload map[string]any

	unitJSON := `{
		"title": "Compounding",
		"description": "Small consistent gains dominate over long horizons.",
		"illustration": "A single seed growing into a vast branching tree.",
		"quotes": ["Time is the friend of the wonderful business."],
		"comment": ""
	}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("unmarshal body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(enrichmentCompletionJSON(t, unitJSON))
	}))
	defer server.Close()

	client := NewOpenAIEnrichment(OpenAIConfig{
		APIKey:    "test-key",
		BaseURL:   server.URL,
		RateLimit: 1000,
	})

	result, err := client.EnrichUnit(context.Background(), &EnrichmentRequest{
		RawText:  "Chapter text about compounding returns.",
		UnitKind: "chapter",
	})
	if err != nil {
		t.Fatalf("EnrichUnit() error = %v", err)
	}
	if result.Title != "Compounding" {
		t.Errorf("Title = %q", result.Title)
	}
	if len(result.Quotes) != 1 {
		t.Errorf("expected 1 quote, got %d", len(result.Quotes))
	}
	if result.PromptTokens != 200 || result.CompletionTokens != 80 {
		t.Errorf("tokens = %d/%d", result.PromptTokens, result.CompletionTokens)
	}
	if result.CostUSD <= 0 {
		t.Errorf("expected non-zero cost estimate, got %f", result.CostUSD)
	}
	if result.Provider != OpenAIName {
		t.Errorf("Provider = %q", result.Provider)
	}

	if got, _ := payload["model"].(string); got != openAIDefaultModel {
		t.Fatalf("expected model %s, got %q", openAIDefaultModel, got)
	}
	rf, _ := payload["response_format"].(map[string]any)
	if got, _ := rf["type"].(string); got != "json_schema" {
		t.Fatalf("expected json_schema response format, got %q", got)
	}
}

func TestOpenAIEnrichmentRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limit","type":"rate_limit_error","param":"","code":"rate_limit"}}`))
	}))
	defer server.Close()

	client := NewOpenAIEnrichment(OpenAIConfig{
		APIKey:    "test-key",
		BaseURL:   server.URL,
		RateLimit: 1000,
	})

	_, err := client.EnrichUnit(context.Background(), &EnrichmentRequest{
		RawText:  "text",
		UnitKind: "chapter",
	})
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
	if got := ClassOf(err); got != ClassRateLimited {
		t.Fatalf("ClassOf() = %v, want %v", got, ClassRateLimited)
	}
	if got := RetryAfterOf(err); got != 3*time.Second {
		t.Fatalf("RetryAfterOf() = %v, want 3s", got)
	}
}

func TestOpenAIEnrichmentContentFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{
				{
					"index":         0,
					"message":       map[string]any{"role": "assistant", "content": ""},
					"finish_reason": "content_filter",
				},
			},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 0, "total_tokens": 10},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewOpenAIEnrichment(OpenAIConfig{APIKey: "k", BaseURL: server.URL, RateLimit: 1000})

	_, err := client.EnrichUnit(context.Background(), &EnrichmentRequest{RawText: "text", UnitKind: "section"})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := ClassOf(err); got != ClassContentRejected {
		t.Fatalf("ClassOf() = %v, want %v", got, ClassContentRejected)
	}
	if IsTransient(err) {
		t.Error("content-rejected error should not be transient")
	}
}

func TestOpenAIEnrichmentMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(enrichmentCompletionJSON(t, "Sure! Here is your card: ..."))
	}))
	defer server.Close()

	client := NewOpenAIEnrichment(OpenAIConfig{APIKey: "k", BaseURL: server.URL, RateLimit: 1000})

	_, err := client.EnrichUnit(context.Background(), &EnrichmentRequest{RawText: "text", UnitKind: "chapter"})
	if err == nil {
		t.Fatal("expected error for non-JSON completion")
	}
	if got := ClassOf(err); got != ClassInvalidInput {
		t.Fatalf("ClassOf() = %v, want %v", got, ClassInvalidInput)
	}
}

func TestOpenAIEnrichmentEmptyInput(t *testing.T) {
	client := NewOpenAIEnrichment(OpenAIConfig{APIKey: "k", RateLimit: 1000})

	_, err := client.EnrichUnit(context.Background(), &EnrichmentRequest{RawText: "   \n ", UnitKind: "chapter"})
	if err == nil {
		t.Fatal("expected validation error for empty text")
	}
	if got := ClassOf(err); got != ClassInvalidInput {
		t.Fatalf("ClassOf() = %v, want %v", got, ClassInvalidInput)
	}
}
