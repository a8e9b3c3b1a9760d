package providers

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"
	"time"
)

const MockName = "mock"

// MockEnrichment is an EnrichmentClient for testing.
type MockEnrichment struct {
	// Configurable behavior
	Latency     time.Duration
	ErrSequence []error // Returned per call in order, nil entries succeed
	Result      *EnrichmentResult

	// State
	mu           sync.Mutex
	requests     []*EnrichmentRequest
	requestCount atomic.Int64
}

// NewMockEnrichment creates a new mock enrichment client with sensible defaults.
func NewMockEnrichment() *MockEnrichment {
	return &MockEnrichment{
		Result: &EnrichmentResult{
			Title:        "Mock Title",
			Description:  "A mock description of the unit.",
			Quotes:       []string{"A memorable mock quote."},
			Comment:      "A mock comment.",
			Illustration: "A mock scene without any text.",
		},
	}
}

// Name returns the client identifier.
func (c *MockEnrichment) Name() string {
	return MockName
}

// EnrichUnit returns the configured result, or the next error in ErrSequence.
func (c *MockEnrichment) EnrichUnit(ctx context.Context, req *EnrichmentRequest) (*EnrichmentResult, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			return nil, &EnrichmentError{Class: ClassTimeout, Message: ctx.Err().Error(), Err: ctx.Err()}
		}
	}

	if idx := int(count) - 1; idx < len(c.ErrSequence) && c.ErrSequence[idx] != nil {
		return nil, c.ErrSequence[idx]
	}

	result := *c.Result
	if req.RequestID != "" {
		// Echo the request identity so distinct units produce distinct
		// prompts, the way real enrichment output varies per unit.
		result.Illustration = result.Illustration + " [" + req.RequestID + "]"
	}
	result.Provider = MockName
	result.ModelUsed = "mock-model"
	result.CostUSD = 0.001
	result.Execution = time.Since(start)
	return &result, nil
}

// Requests returns a copy of all recorded requests.
func (c *MockEnrichment) Requests() []*EnrichmentRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*EnrichmentRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// RequestCount returns the number of requests made.
func (c *MockEnrichment) RequestCount() int64 {
	return c.requestCount.Load()
}

// Reset clears recorded state.
func (c *MockEnrichment) Reset() {
	c.mu.Lock()
	c.requests = nil
	c.mu.Unlock()
	c.requestCount.Store(0)
}

// Verify interface
var _ EnrichmentClient = (*MockEnrichment)(nil)

// MockImage is an ImageClient for testing.
type MockImage struct {
	Latency     time.Duration
	ErrSequence []error

	mu           sync.Mutex
	requests     []*ImageRequest
	requestCount atomic.Int64
}

// NewMockImage creates a new mock image client.
func NewMockImage() *MockImage {
	return &MockImage{}
}

// Name returns the client identifier.
func (c *MockImage) Name() string {
	return MockName
}

// GenerateImage returns a solid-color PNG at the requested dimensions, or the
// next error in ErrSequence.
func (c *MockImage) GenerateImage(ctx context.Context, req *ImageRequest) (*ImageResult, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			return nil, &IllustrationError{Class: ClassTimeout, Message: ctx.Err().Error(), Err: ctx.Err()}
		}
	}

	if idx := int(count) - 1; idx < len(c.ErrSequence) && c.ErrSequence[idx] != nil {
		return nil, c.ErrSequence[idx]
	}

	width, height := req.Width, req.Height
	if width <= 0 || height <= 0 {
		return nil, &IllustrationError{
			Class:   ClassInvalidInput,
			Message: fmt.Sprintf("invalid image dimensions %dx%d", width, height),
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fill := color.RGBA{R: 180, G: 190, B: 200, A: 255}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, &IllustrationError{Class: ClassUnknown, Message: "failed to encode mock image", Err: err}
	}

	return &ImageResult{
		Data:      buf.Bytes(),
		Format:    "png",
		CostUSD:   0.001,
		Provider:  MockName,
		Execution: time.Since(start),
	}, nil
}

// Requests returns a copy of all recorded requests.
func (c *MockImage) Requests() []*ImageRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ImageRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// RequestCount returns the number of requests made.
func (c *MockImage) RequestCount() int64 {
	return c.requestCount.Load()
}

// Reset clears recorded state.
func (c *MockImage) Reset() {
	c.mu.Lock()
	c.requests = nil
	c.mu.Unlock()
	c.requestCount.Store(0)
}

// Verify interface
var _ ImageClient = (*MockImage)(nil)
