package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	RunwareName           = "runware"
	RunwareBaseURL        = "https://api.runware.ai/v1"
	runwareDefaultModel   = "runware:101@1"
	runwareCostPerImage   = 0.0019 // Flat approximation, API reports actual cost when available
	runwareDefaultTimeout = 180 * time.Second
)

// RunwareConfig holds configuration for the Runware image client.
type RunwareConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Steps      int
	CFGScale   float64
	RateLimit  float64 // Requests per second
	Timeout    time.Duration
	HTTPClient *http.Client // Optional (tests)
}

// RunwareImageClient implements ImageClient against the Runware task API.
type RunwareImageClient struct {
	apiKey   string
	baseURL  string
	model    string
	steps    int
	cfgScale float64
	limiter  *rate.Limiter
	client   *http.Client
}

// NewRunwareImageClient creates a new Runware image generation client.
func NewRunwareImageClient(cfg RunwareConfig) *RunwareImageClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = RunwareBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = runwareDefaultModel
	}
	if cfg.Steps == 0 {
		cfg.Steps = 28
	}
	if cfg.CFGScale == 0 {
		cfg.CFGScale = 3.5
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 1.0
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = runwareDefaultTimeout
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &RunwareImageClient{
		apiKey:   cfg.APIKey,
		baseURL:  cfg.BaseURL,
		model:    cfg.Model,
		steps:    cfg.Steps,
		cfgScale: cfg.CFGScale,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		client:   client,
	}
}

// Name returns the client identifier.
func (c *RunwareImageClient) Name() string {
	return RunwareName
}

// GenerateImage renders one illustration for the given prompt. The response
// carries the image inline as base64 so no second fetch is needed.
func (c *RunwareImageClient) GenerateImage(ctx context.Context, req *ImageRequest) (*ImageResult, error) {
	start := time.Now()

	if strings.TrimSpace(req.Prompt) == "" {
		return nil, &IllustrationError{Class: ClassInvalidInput, Message: "image prompt is empty"}
	}
	width, height := req.Width, req.Height
	if width <= 0 || height <= 0 {
		return nil, &IllustrationError{
			Class:   ClassInvalidInput,
			Message: fmt.Sprintf("invalid image dimensions %dx%d", width, height),
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &IllustrationError{Class: ClassTimeout, Message: "rate limit wait cancelled", Err: err}
	}

	task := runwareTask{
		TaskType:       "imageInference",
		TaskUUID:       uuid.NewString(),
		PositivePrompt: req.Prompt,
		NegativePrompt: negativeImagePrompt,
		Model:          c.model,
		Width:          width,
		Height:         height,
		Steps:          c.steps,
		CFGScale:       c.cfgScale,
		NumberResults:  1,
		OutputType:     "base64Data",
		OutputFormat:   "PNG",
	}

	resp, err := c.doRequest(ctx, []runwareTask{task})
	if err != nil {
		return nil, err
	}

	var image *runwareImage
	for i := range resp.Data {
		if resp.Data[i].TaskUUID == task.TaskUUID && resp.Data[i].ImageBase64Data != "" {
			image = &resp.Data[i]
			break
		}
	}
	if image == nil {
		return nil, &IllustrationError{Class: ClassUnknown, Message: "response contained no image data"}
	}

	data, err := base64.StdEncoding.DecodeString(image.ImageBase64Data)
	if err != nil {
		return nil, &IllustrationError{Class: ClassUnknown, Message: "undecodable image payload", Err: err}
	}

	cost := image.Cost
	if cost == 0 {
		cost = runwareCostPerImage
	}

	return &ImageResult{
		Data:      data,
		Format:    "png",
		CostUSD:   cost,
		Provider:  RunwareName,
		Execution: time.Since(start),
	}, nil
}

// doRequest posts a task array to the Runware API and classifies failures.
func (c *RunwareImageClient) doRequest(ctx context.Context, tasks []runwareTask) (*runwareResponse, error) {
	bodyBytes, err := json.Marshal(tasks)
	if err != nil {
		return nil, &IllustrationError{Class: ClassUnknown, Message: "failed to marshal request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, &IllustrationError{Class: ClassUnknown, Message: "failed to create request", Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		class := ClassUnknown
		if ctx.Err() != nil {
			class = ClassTimeout
		}
		return nil, &IllustrationError{Class: class, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &IllustrationError{Class: ClassUnknown, Message: "failed to read response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(respBody)
		var errResp runwareErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && len(errResp.Errors) > 0 {
			msg = errResp.Errors[0].Message
		}

		class := classifyStatus(resp.StatusCode)
		if strings.Contains(strings.ToLower(msg), "nsfw") ||
			strings.Contains(strings.ToLower(msg), "content moderation") {
			class = ClassContentRejected
		}

		return nil, &IllustrationError{
			Class:      class,
			Message:    fmt.Sprintf("Runware error (status %d): %s", resp.StatusCode, msg),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var rwResp runwareResponse
	if err := json.Unmarshal(respBody, &rwResp); err != nil {
		return nil, &IllustrationError{Class: ClassUnknown, Message: "failed to unmarshal response", Err: err}
	}
	if len(rwResp.Errors) > 0 {
		return nil, &IllustrationError{
			Class:   ClassUnknown,
			Message: fmt.Sprintf("Runware task error: %s", rwResp.Errors[0].Message),
		}
	}

	return &rwResp, nil
}

// Runware API types

type runwareTask struct {
	TaskType       string  `json:"taskType"`
	TaskUUID       string  `json:"taskUUID"`
	PositivePrompt string  `json:"positivePrompt"`
	NegativePrompt string  `json:"negativePrompt,omitempty"`
	Model          string  `json:"model"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Steps          int     `json:"steps,omitempty"`
	CFGScale       float64 `json:"CFGScale,omitempty"`
	NumberResults  int     `json:"numberResults"`
	OutputType     string  `json:"outputType"`
	OutputFormat   string  `json:"outputFormat"`
}

type runwareImage struct {
	TaskUUID        string  `json:"taskUUID"`
	ImageUUID       string  `json:"imageUUID"`
	ImageBase64Data string  `json:"imageBase64Data"`
	Cost            float64 `json:"cost,omitempty"`
}

type runwareResponse struct {
	Data   []runwareImage `json:"data"`
	Errors []runwareError `json:"errors,omitempty"`
}

type runwareError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	TaskUUID string `json:"taskUUID,omitempty"`
}

type runwareErrorResponse struct {
	Errors []runwareError `json:"errors"`
}

// Verify interface
var _ ImageClient = (*RunwareImageClient)(nil)
